package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the session history",
	Long: `Show the requests resolved in the configured session, oldest first.
Only the redis session store keeps history between runs.`,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var release cleanup
	defer func() { _ = release.run() }()

	store, err := newSessionStore(cmd.Context(), cfg, &release)
	if err != nil {
		return err
	}
	session, err := store.Context(cmd.Context(), cfg.Session.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(session)
	}

	if len(session.History) == 0 {
		fmt.Fprintln(out, "No history yet.")
		return nil
	}
	for i, entry := range session.History {
		fmt.Fprintf(out, "%3d  %s\n", i+1, entry)
	}
	return nil
}
