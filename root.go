package main

import (
	"fmt"
	"os"

	"github.com/luispater/feeOptOut/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeoptout",
		Short: "Opt out of McGill student-account fees",
		Long: `feeoptout opens the Minerva fee opt-out page in Chrome, lists the fees that
can be declined, and walks each selected fee through the portal's
confirmation pages.

Log in through the Chrome window on first use; the session cookies are kept
in the configured auth file for later runs.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "Path to the yaml configuration file")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewPopupCmd())
	cmd.AddCommand(NewFeesCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the --config file, falling back to defaults when the
// default path does not exist.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		if os.IsNotExist(err) && !cmd.Flags().Changed("config") {
			log.Debugf("No %s found, using defaults", path)
			cfg = config.Default()
		} else {
			return nil, fmt.Errorf("load configuration error: %w", err)
		}
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	if !cfg.Debug && !verbose {
		log.SetLevel(log.InfoLevel)
	}
	return cfg, nil
}

// logToFile moves logging off the terminal while a full-screen UI owns it.
func logToFile(cfg *config.AppConfig) (func(), error) {
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", cfg.LogFile, err)
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stdout)
		_ = f.Close()
	}, nil
}

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("feeoptout %s\n", version)
		},
	}
}
