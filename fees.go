package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/luispater/feeOptOut/internal/portal"
	"github.com/luispater/feeOptOut/internal/utils"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewFeesCmd creates the fees command, which prints the opt-out-able fees.
func NewFeesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fees",
		Short: "Print the fees that can be opted out of",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			wait, _ := cmd.Flags().GetDuration("wait")

			pa, err := startPageAgent(cfg)
			if err != nil {
				return err
			}
			defer pa.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()
			if err = waitForFeeList(ctx, pa.agent); err != nil {
				return err
			}

			fees, err := pa.agent.ExtractFees(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderFees(fees))
			return nil
		},
	}
	cmd.Flags().Duration("wait", 3*time.Minute, "How long to wait for the fee list (time to log in)")
	return cmd
}

func waitForFeeList(ctx context.Context, agent *portal.Agent) error {
	for {
		kind, err := agent.ClassifyPage(ctx)
		if err == nil && kind == portal.KindMain {
			return nil
		}
		log.Info("Waiting for the fee opt-out page, log in through the browser window...")
		if err = utils.Sleep(ctx, 2*time.Second); err != nil {
			return fmt.Errorf("fee list did not appear: %w", err)
		}
	}
}

func renderFees(fees []portal.Fee) string {
	if len(fees) == 0 {
		return "No opt-out fees found on this page."
	}
	rows := make([][]string, 0, len(fees))
	for i, fee := range fees {
		rows = append(rows, []string{strconv.Itoa(i + 1), fee.Name, strconv.Itoa(fee.RowIndex)})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Fee", "Row").
		Rows(rows...).
		String()
}
