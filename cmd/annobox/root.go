package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"annobox/pkg/config"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	// Set by loadConfig before any subcommand runs.
	cfgManager *config.Manager
	logger     *slog.Logger
	levelVar   slog.LevelVar
)

var rootCmd = &cobra.Command{
	Use:   "annobox",
	Short: "Label text items and send the judgments to an annotation server",
	Long: `annobox serves a batch of annotation items as a page of boxes. Each box
shows the item's text, tokens and metadata and records a judgment per
suggested label (yes, no or not sure). A box with a single label submits
on the first click; a box with several labels submits on "Save & Next".

Submissions are posted as JSON to <server_url>/tasks/receive_annotation.

Configuration is read from ./annobox.yaml (or --config), ANNOBOX_*
environment variables and a .env file in the working directory.`,
	Version:           gitRelease,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./annobox.yaml or ~/.annobox/annobox.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn or error",
	)
	rootCmd.PersistentFlags().StringVar(
		&logFormat, "log-format", "", "log format: text or json",
	)

	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return err
	}
	if err := setFlag(mgr, cmd, "log-level", "log.level", logLevel); err != nil {
		return err
	}
	if err := setFlag(mgr, cmd, "log-format", "log.format", logFormat); err != nil {
		return err
	}

	l, err := config.NewLogger(os.Stderr, mgr.Get().Log, &levelVar)
	if err != nil {
		return err
	}
	slog.SetDefault(l)
	if f := mgr.File(); f != "" {
		l.Debug("config loaded", "file", f)
	}

	cfgManager = mgr
	logger = l
	return nil
}

// setFlag copies an explicitly given flag over the configured value.
func setFlag(mgr *config.Manager, cmd *cobra.Command, flag, key string, value any) error {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return mgr.Set(key, value)
}
