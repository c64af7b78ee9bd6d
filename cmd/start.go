package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var startComment string

var startCmd = &cobra.Command{
	Use:   "start [worksite]",
	Short: "Clock in against a worksite",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStart,
}

func init() {
	startCmd.Flags().StringVar(&startComment, "comment", "", "Optional comment")
}

func runStart(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer eng.close()

	worksite := eng.cfg.DefaultWorksite
	if len(args) == 1 {
		worksite = args[0]
	}

	entry, err := eng.tracker.StartTracking(cmd.Context(), worksite, startComment)
	if err != nil {
		return err
	}

	fmt.Printf("Clocked in at %s on worksite %q\n", entry.StartTime, entry.WorksiteID)
	if entry.StartCoordinates.Degraded() {
		fmt.Println("No position available offline; a degraded fix was recorded.")
	}
	if !eng.monitor.IsOnline() {
		fmt.Println("Offline: the punch is queued and will sync on reconnect.")
	}
	return nil
}
