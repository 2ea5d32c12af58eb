package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ZentaChain/zerocom/pkg/config"
	"github.com/ZentaChain/zerocom/pkg/logging"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Flags shared by every subcommand.
var (
	configFile string
	debug      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "zerocom",
		Short: "Framed packet protocol server and client",
		Long: `zerocom speaks a small length-prefixed packet protocol over TCP.

Every connection starts with a handshake carrying the protocol version,
followed by ping/pong round trips.

Settings come from config.toml (or $ZEROCOM_CONFIG_FILE) and the
ZEROCOM_DEBUG, ZEROCOM_LOG_FILE and ZEROCOM_LOG_FILE_SIZE_MAX variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (overrides $"+config.EnvConfigFile+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		serverCmd(),
		clientCmd(),
		statusCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration named by --config, or by the environment.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		if err := os.Setenv(config.EnvConfigFile, configFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if debug {
		cfg.Log.Debug = true
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, component string) *logging.Logger {
	return logging.New(logging.Options{
		Debug:       cfg.Log.Debug,
		File:        cfg.Log.File,
		FileMaxSize: cfg.Log.FileMaxSize,
		Component:   component,
	})
}

func printBanner(motd string) {
	fmt.Println("╔═══════════════════════════════════════════════════╗")
	fmt.Printf("║ %-49s ║\n", "zerocom "+version)
	if motd != "" {
		fmt.Printf("║ %-49s ║\n", motd)
	}
	fmt.Println("╚═══════════════════════════════════════════════════╝")
	fmt.Println()
}
