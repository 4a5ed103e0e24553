package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/config"
	"github.com/manimforge/manimforge/internal/logger"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "manimforge",
		Short:         "Compile manim scenes in isolated containers",
		Long:          `manimforge compiles manim scene classes one by one inside throwaway containers and joins the results into a single video.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", defaultConfigPath(), "path to the configuration file (yaml or json)")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before environment overrides; empty disables it")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override logging.level")

	rootCmd.AddCommand(newServeCmd(flags))
	rootCmd.AddCommand(newCompileCmd(flags))
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newCombineCmd(flags))
	return rootCmd
}

func defaultConfigPath() string {
	if p := os.Getenv("MANIMFORGE_CONFIG_PATH"); p != "" {
		return p
	}
	return "manimforge.yaml"
}

// setup loads the configuration and builds the root logger. The returned
// cleanup closes a file log output.
func setup(flags *globalFlags) (*config.ConfigManager, hclog.Logger, func(), error) {
	cm := config.GetConfigManager()
	cm.SetEnvFile(flags.envFile)
	if err := cm.LoadConfig(flags.configPath); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg := cm.GetConfig()

	level := cfg.Logging.Level
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	out, closeOut, err := logger.OpenOutput(cfg.Logging.Output)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open log output: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: out,
		Color:  cfg.Logging.EnableColors,
	})
	logger.SetDefault(log)
	cm.SetLogger(log)

	return cm, log, func() { _ = closeOut() }, nil
}
