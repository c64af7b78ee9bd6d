package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push pending entries to the backend now",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer eng.close()

	if eng.syncer == nil {
		return fmt.Errorf("no backend configured or not authenticated: set remote.url and run `pointage login`")
	}
	if !eng.monitor.IsOnline() {
		return fmt.Errorf("backend unreachable; entries stay queued")
	}

	res, err := eng.syncer.SyncPending(cmd.Context())
	if err != nil {
		return err
	}
	switch {
	case res.Synced == 0 && res.Failed == 0:
		fmt.Println("Nothing to sync.")
	case res.Complete():
		fmt.Printf("Synced %d entr%s.\n", res.Synced, plural(res.Synced))
	default:
		fmt.Printf("Synced %d entr%s, %d left pending.\n", res.Synced, plural(res.Synced), res.Failed)
	}
	return nil
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
