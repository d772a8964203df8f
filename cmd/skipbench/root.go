package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/INLOpen/skipmap/internal/cliutil"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Version of skipbench.
	Version = "0.1.0"
)

var (
	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "skipbench",
		Short: "benchmark and profile skipmap",
		Long: fmt.Sprintf(`skipbench (v%s)

Runs generated workloads against skipmap configurations, checks every
run against a builtin map and reports timings and mesh shape.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of skipbench",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "skipbench v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(versionCmd)

	key := "log-level"
	rootCmd.PersistentFlags().String(key, "info", cliutil.WrapString("Log level (debug, info, warn, error). Debug also logs mesh growth and shrink events"))
}

// initConfig loads env files and lets SKIPBENCH_* variables override flags.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("skipbench")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// bindFlags makes the flags of cmd and its parents visible to viper.
func bindFlags(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return viper.BindPFlags(cmd.InheritedFlags())
}

// newLogger builds the text logger configured by log-level.
func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", viper.GetString("log-level"), err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}
