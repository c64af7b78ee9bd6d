package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GenAmed/pointage/internal/model"
	"github.com/GenAmed/pointage/internal/timecalc"
)

var stopComment string

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Clock out",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopComment, "comment", "", "Append a comment to the entry")
}

func runStop(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer eng.close()

	entry, err := eng.tracker.EndTracking(cmd.Context(), stopComment)
	if err != nil {
		return err
	}

	worked, breaks := dayTotals(entry)
	fmt.Printf("Clocked out at %s. Worked %s", *entry.EndTime, timecalc.FormatMinutes(worked))
	if breaks > 0 {
		fmt.Printf(" (breaks: %s)", timecalc.FormatMinutes(breaks))
	}
	fmt.Println()
	if !eng.monitor.IsOnline() {
		fmt.Println("Offline: the entry is queued and will sync on reconnect.")
	}
	return nil
}

// dayTotals computes worked and break minutes for a closed entry from its
// wall-clock values. Entries with unparsable times report zero.
func dayTotals(entry *model.TimeEntry) (worked, breaks int) {
	for _, b := range entry.Breaks {
		if b.DurationMinutes != nil {
			breaks += *b.DurationMinutes
		}
	}
	if entry.EndTime == nil {
		return 0, breaks
	}
	span, err := timecalc.MinutesBetween(entry.StartTime, *entry.EndTime)
	if err != nil {
		return 0, breaks
	}
	worked = span - breaks
	if worked < 0 {
		worked = 0
	}
	return worked, breaks
}
