package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/GenAmed/pointage/internal/model"
	"github.com/GenAmed/pointage/internal/timecalc"
)

var listAll bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List locally stored entries",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listAll, "all", false, "Show the whole local history, not just today")
}

func runList(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer eng.close()

	entries, err := eng.queue.List()
	if err != nil {
		return err
	}

	today := timecalc.DayKey(time.Now())
	shown := 0
	var currentDay string
	for _, e := range entries {
		if !listAll && e.Date != today {
			continue
		}
		if e.Date != currentDay {
			fmt.Println(e.Date)
			currentDay = e.Date
		}
		printEntry(e)
		shown++
	}
	if shown == 0 {
		fmt.Println("No entries found.")
	}
	return nil
}

func printEntry(e model.TimeEntry) {
	endStr := "ongoing"
	if e.EndTime != nil {
		endStr = *e.EndTime
	}
	status := "pending"
	if e.SyncStatus == model.SyncSynced {
		status = "synced"
	}
	worked, breaks := dayTotals(&e)
	durStr := ""
	if e.EndTime != nil {
		durStr = fmt.Sprintf("  %s worked", timecalc.FormatMinutes(worked))
		if breaks > 0 {
			durStr += fmt.Sprintf(", %s break", timecalc.FormatMinutes(breaks))
		}
	}
	fmt.Printf("%s-%s  %s%s  [%s]\n", e.StartTime, endStr, e.WorksiteID, durStr, status)
}
