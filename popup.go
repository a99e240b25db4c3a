package main

import (
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/luispater/feeOptOut/internal/api"
	"github.com/luispater/feeOptOut/internal/popup"
	"github.com/luispater/feeOptOut/internal/popup/tui"
	"github.com/spf13/cobra"
)

// NewPopupCmd creates the popup command, a terminal popup for a running serve.
func NewPopupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "popup",
		Short: "Pick fees to opt out of through a running agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			agentURL, _ := cmd.Flags().GetString("agent")
			if agentURL == "" {
				agentURL = "http://127.0.0.1:" + cfg.ApiPort
			}

			restore, err := logToFile(cfg)
			if err != nil {
				return err
			}
			defer restore()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ctrl := popup.NewController(api.NewClient(agentURL, nil), popup.OptionsFromConfig(cfg))
			final, err := tea.NewProgram(tui.New(ctx, ctrl), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if m, ok := final.(tui.Model); ok {
				return m.Err()
			}
			return nil
		},
	}
	cmd.Flags().String("agent", "", "Base URL of the agent started with serve")
	return cmd
}
