package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"goldenbatch/internal/config"
	"goldenbatch/internal/logging"
)

var (
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
)

// flagKeys binds command-line flags to config keys so flags win over the
// config file and the environment.
var flagKeys = map[string]string{
	"artifacts": "artifacts.dir",
	"clusters":  "training.clusters",
	"model":     "training.model_kind",
	"seed":      "training.seed",
	"port":      "server.port",
	"log-level": "logging.level",
}

var rootCmd = &cobra.Command{
	Use:   "goldenbatch",
	Short: "Golden batch signatures and batch deviation analysis",
	Long: "goldenbatch derives a golden operating signature from manufacturing batch history,\n" +
		"trains quality and risk classifiers, and scores new batches against them.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ./config.yaml or ~/.goldenbatch/config.yaml)")
	rootCmd.PersistentFlags().String("artifacts", "", "Artifact directory (overrides artifacts.dir)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(signatureCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

func setup(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	v := config.New(path)

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && f.Changed {
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		}
	})
	if bindErr != nil {
		return bindErr
	}

	loaded, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = loaded

	logger, logCloser, err = logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}
