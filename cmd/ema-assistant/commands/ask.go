package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-assistant/core/actions"
	"github.com/koscakluka/ema-assistant/core/intents"
	"github.com/spf13/cobra"
)

var askOpen bool

var askCmd = &cobra.Command{
	Use:   "ask <text>",
	Short: "Resolve a single request",
	Long: `Resolve a single request and print the reply.

Example:
  ema-assistant ask "search golden retriever puppies on google" --open`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askOpen, "open", false, "open the URL the request calls for")
}

type askResult struct {
	Kind      string `json:"kind,omitempty"`
	UserInput string `json:"user_input,omitempty"`
	Reply     string `json:"reply,omitempty"`
	URL       string `json:"url,omitempty"`
	Error     string `json:"error,omitempty"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var release cleanup
	defer func() { _ = release.run() }()

	resolver, _, err := newResolver(cmd.Context(), cfg, &release)
	if err != nil {
		return err
	}

	utterance := intents.NewUtterance(strings.Join(args, " "), intents.SourceManual)
	intent, resolveErr := resolver.Resolve(cmd.Context(), utterance)

	result := askResult{}
	if resolveErr != nil {
		result.Error = resolveErr.Error()
	} else {
		result.Kind = intent.Kind.String()
		result.UserInput = intent.UserInput
		result.Reply = intent.Reply
		if action, ok := actions.ActionFor(intent); ok {
			result.URL = action.URL
			if askOpen {
				if err := (actions.BrowserOpener{}).Open(action.URL); err != nil {
					return fmt.Errorf("failed to open %s: %w", action.URL, err)
				}
			}
		}
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		return resolveErr
	}

	if resolveErr != nil {
		return resolveErr
	}
	fmt.Fprintln(out, result.Reply)
	fmt.Fprintf(out, "kind: %s\n", result.Kind)
	if result.URL != "" {
		fmt.Fprintf(out, "url:  %s\n", result.URL)
	}
	return nil
}
