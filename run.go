package main

import (
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/luispater/feeOptOut/internal/popup"
	"github.com/luispater/feeOptOut/internal/popup/tui"
	"github.com/luispater/feeOptOut/internal/portal"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command: browser, agent and popup in one process.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Open the portal and pick fees to opt out of",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			restore, err := logToFile(cfg)
			if err != nil {
				return err
			}
			defer restore()

			pa, err := startPageAgent(cfg)
			if err != nil {
				return err
			}
			defer pa.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			pa.background(ctx, cfg.Portal.AuthFile)

			tab := popup.LocalTab{
				Page:   pa.page,
				Sender: portal.SessionSender{Handler: pa.handler, Session: portal.NewSession()},
			}
			ctrl := popup.NewController(tab, popup.OptionsFromConfig(cfg))

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
}
