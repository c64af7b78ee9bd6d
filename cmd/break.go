package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var breakCmd = &cobra.Command{
	Use:   "break",
	Short: "Manage breaks on the current entry",
}

var breakStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a break",
	Args:  cobra.NoArgs,
	RunE:  runBreakStart,
}

var breakEndCmd = &cobra.Command{
	Use:   "end",
	Short: "End the current break",
	Args:  cobra.NoArgs,
	RunE:  runBreakEnd,
}

func init() {
	breakCmd.AddCommand(breakStartCmd)
	breakCmd.AddCommand(breakEndCmd)
}

func runBreakStart(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer eng.close()

	if err := eng.tracker.StartBreak(); err != nil {
		return err
	}
	fmt.Println("Break started.")
	return nil
}

func runBreakEnd(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer eng.close()

	if err := eng.tracker.EndBreak(); err != nil {
		return err
	}

	_, entry := eng.tracker.State()
	if entry != nil && len(entry.Breaks) > 0 {
		last := entry.Breaks[len(entry.Breaks)-1]
		if last.DurationMinutes != nil {
			fmt.Printf("Break ended after %d minutes.\n", *last.DurationMinutes)
			return nil
		}
	}
	fmt.Println("Break ended.")
	return nil
}
