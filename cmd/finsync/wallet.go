package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/celerix-dev/celerix-finsync/pkg/schema"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Inspect and extend the user's wallet",
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List wallet entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return run(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			entries, err := a.core.LoadWallet(ctx, a.user)
			if err != nil {
				return fmt.Errorf("load wallet: %w", err)
			}
			if asJSON {
				return printJSON(entries)
			}
			if len(entries) == 0 {
				fmt.Println("Wallet is empty.")
				return nil
			}

			fmt.Printf("%-10s  %-8s  %-16s  %12s  %s\n", "Date", "Type", "Category", "Amount", "Note")
			fmt.Println(strings.Repeat("─", 72))
			for _, e := range entries {
				fmt.Printf("%-10s  %-8s  %-16s  %12s  %s\n", e.Date, e.Kind, e.Category, e.Amount.StringFixed(2), e.Note)
			}
			fmt.Println()
			fmt.Printf("Income %s  Expenses %s  Savings %s\n",
				schema.SumKind(entries, schema.KindIncome, "").StringFixed(2),
				schema.SumKind(entries, schema.KindExpense, "").StringFixed(2),
				schema.SumKind(entries, schema.KindSavings, "").StringFixed(2))
			return nil
		})
	},
}

var walletAddCmd = &cobra.Command{
	Use:   "add <type> <category> <amount>",
	Short: "Add a wallet entry (type is income, expense, savings or budget)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := schema.ParseKind(args[0])
		if err != nil {
			return err
		}
		amount, err := decimal.NewFromString(args[2])
		if err != nil {
			return fmt.Errorf("amount %q: %w", args[2], err)
		}
		note, _ := cmd.Flags().GetString("note")
		entry := schema.LedgerEntry{Kind: kind, Category: args[1], Amount: amount, Note: note}
		if raw, _ := cmd.Flags().GetString("date"); raw != "" {
			if entry.Date, err = schema.ParseDate(raw); err != nil {
				return fmt.Errorf("date %q: %w", raw, err)
			}
		}

		return run(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			saved, err := a.core.AddLedgerEntry(ctx, a.user, entry)
			if err != nil {
				return err
			}
			fmt.Printf("Added %s %s %s (%s)\n", saved.Kind, saved.Category, saved.Amount.StringFixed(2), saved.ID)
			return nil
		})
	},
}

var budgetCmd = &cobra.Command{
	Use:   "budget [limit] [target-savings]",
	Short: "Show or set the user's budget goal",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			if len(args) == 0 {
				g, ok := a.core.BudgetGoal(ctx, a.user.Email)
				if !ok {
					fmt.Println("No budget goal set.")
					return nil
				}
				return printJSON(g)
			}
			g := schema.BudgetGoal{UserEmail: a.user.Email}
			var err error
			if g.BudgetLimit, err = decimal.NewFromString(args[0]); err != nil {
				return fmt.Errorf("limit %q: %w", args[0], err)
			}
			if len(args) == 2 {
				if g.TargetSavings, err = decimal.NewFromString(args[1]); err != nil {
					return fmt.Errorf("target savings %q: %w", args[1], err)
				}
			}
			saved, err := a.core.UpsertBudgetGoal(ctx, g)
			if err != nil {
				return err
			}
			return printJSON(saved)
		})
	},
}

func init() {
	walletListCmd.Flags().Bool("json", false, "Print entries as JSON")
	walletAddCmd.Flags().String("note", "", "Free-text note")
	walletAddCmd.Flags().String("date", "", "Entry date as YYYY-MM-DD (default today)")

	walletCmd.AddCommand(walletListCmd)
	walletCmd.AddCommand(walletAddCmd)
	walletCmd.AddCommand(budgetCmd)
}
