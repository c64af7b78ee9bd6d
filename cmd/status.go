package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GenAmed/pointage/internal/storage"
	"github.com/GenAmed/pointage/internal/tracker"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tracking state and pending sync count",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer eng.close()

	state, entry := eng.tracker.State()
	switch state {
	case tracker.Tracking:
		fmt.Printf("Clocked in on worksite %q since %s.\n", entry.WorksiteID, entry.StartTime)
	case tracker.OnBreak:
		b := entry.OpenBreak()
		fmt.Printf("On break since %s (clocked in on %q at %s).\n",
			b.StartTime, entry.WorksiteID, entry.StartTime)
	default:
		fmt.Println("Not clocked in.")
	}

	pending, err := storage.Pending(eng.queue)
	if err != nil {
		return err
	}
	fmt.Printf("Pending sync: %d entr%s.\n", len(pending), plural(len(pending)))

	if eng.monitor.IsOnline() {
		fmt.Println("Backend: reachable.")
	} else {
		fmt.Println("Backend: offline.")
	}
	return nil
}
