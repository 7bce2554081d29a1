package commands

import (
	"fmt"
	"os"

	"github.com/koscakluka/ema-assistant/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "ema-assistant",
	Short: "ema-assistant - voice assistant",
	Long: `ema-assistant listens for a request, works out what you want and
answers out loud, opening a browser tab when the request calls for one.

  ema-assistant run             Start the conversation (terminal UI)
  ema-assistant run --headless  Start the conversation with the HTTP surface only
  ema-assistant ask <text>      Resolve a single request
  ema-assistant history         Show the session history`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.ema-assistant/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute(ver string) error {
	version = ver
	return rootCmd.Execute()
}

var version string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ema-assistant %s\n", version)
	},
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		if err := os.Setenv("EMA_CONFIG", cfgFile); err != nil {
			return nil, err
		}
	}
	return config.Load()
}
