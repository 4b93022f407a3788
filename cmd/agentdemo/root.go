package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/rickchristie/agentcore/config"
)

var (
	configPath string
	verbose    bool
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "agentdemo",
		Short:         "Run a demo writing agent with pause, resume and approvals",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(runCmd())
	cmd.AddCommand(resumeCmd())
	cmd.AddCommand(checkpointsCmd())
	return cmd
}

// loadConfig reads --config, or falls back to a local demo setup when no file is
// given.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
		cfg.AgentID = "agentdemo"
		cfg.StateDir = filepath.Join(os.TempDir(), "agentdemo", "state")
		cfg.Checkpoint.Store = config.StoreSQLite
		cfg.Checkpoint.DSN = filepath.Join(os.TempDir(), "agentdemo", "checkpoints.db")
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newLogger(output io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	}
	handler := tint.NewHandler(output, &tint.Options{
		Level:      cfg.SlogLevel(),
		TimeFormat: "15:04:05.000",
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	})
	return slog.New(handler)
}
