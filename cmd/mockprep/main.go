package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/snarg/mockprep/internal/config"
)

var version = "dev"

// globalFlags are shared by every subcommand that reads configuration.
type globalFlags struct {
	envFile     string
	logLevel    string
	databaseURL string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var gf globalFlags

	rootCmd := &cobra.Command{
		Use:          "mockprep",
		Short:        "AI mock interview backend",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&gf.envFile, "env-file", "", "path to .env file (default .env)")
	rootCmd.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&gf.databaseURL, "database-url", "", "PostgreSQL connection URL")

	rootCmd.AddCommand(newServeCmd(&gf))
	rootCmd.AddCommand(newNormalizeCmd())
	rootCmd.AddCommand(newReportCmd(&gf))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("mockprep", version)
		},
	}
}

func (gf *globalFlags) overrides() config.Overrides {
	return config.Overrides{
		EnvFile:     gf.envFile,
		LogLevel:    gf.logLevel,
		DatabaseURL: gf.databaseURL,
	}
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(levelName string) zerolog.Logger {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil || levelName == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
}
