package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/config"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/version"

	_ "github.com/essoktani-yazid/stm-ai-gateway/pkg/plugin/assemblyai" // registers the streaming recognizer
	_ "github.com/essoktani-yazid/stm-ai-gateway/pkg/plugin/deepgram"   // registers the Aura synthesizer
	_ "github.com/essoktani-yazid/stm-ai-gateway/pkg/plugin/openai"     // registers completer, Whisper and speech
)

var rootCmd = &cobra.Command{
	Use:   "stm-ai",
	Short: "Smart task manager AI gateway",
	Long: `stm-ai serves the task manager's desktop client over a websocket: it turns
typed or spoken requests into SQL against the task database, asks before
changing anything, and can answer out loud.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file (default $STM_CONFIG)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before the environment")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(pluginCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration named by the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(path, envFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{}

	switch strings.ToLower(cfg.Level) {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Format == "console" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
