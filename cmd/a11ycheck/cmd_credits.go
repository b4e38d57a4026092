// This file contains the credit store admin commands.
package main

import (
	"fmt"
	"strconv"

	"a11ycheck/internal/credits"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Credit store administration",
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant [user-id] [amount]",
	Short: "Grant credits to a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("amount must be an integer: %w", err)
		}

		store, err := credits.NewStore(cfg.Credits, logger)
		if err != nil {
			return err
		}
		defer closeStore(store)

		balance, err := store.Grant(cmd.Context(), args[0], amount)
		if err != nil {
			return err
		}
		fmt.Printf("Granted %d credits to %s (balance: %d)\n", amount, args[0], balance)
		return nil
	},
}

var creditsBalanceCmd = &cobra.Command{
	Use:   "balance [user-id]",
	Short: "Show a user's credit balance and recent ledger entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credits.NewStore(cfg.Credits, logger)
		if err != nil {
			return err
		}
		defer closeStore(store)

		balance, err := store.Balance(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d credits\n", args[0], balance)

		entries, err := store.Ledger(cmd.Context(), args[0], 10)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("  %s  %+d (%d -> %d)  %s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"),
				e.Amount, e.BalanceBefore, e.BalanceAfter, e.Description)
		}
		return nil
	},
}

func closeStore(store *credits.Store) {
	if err := store.Close(); err != nil {
		logger.Warn("credit store close failed", zap.Error(err))
	}
}

func init() {
	creditsCmd.AddCommand(creditsGrantCmd)
	creditsCmd.AddCommand(creditsBalanceCmd)
}
