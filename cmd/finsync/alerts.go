package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/celerix-finsync/pkg/schema"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List, scan and dismiss student alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list [student-email]",
	Short: "List alerts, oldest first",
	Long: "List alerts of the acting student, or of the given student when the " +
		"acting user is an educator. Educators see only alerts they have not read.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		unread, _ := cmd.Flags().GetBool("unread")
		return run(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			var alerts []schema.Alert
			switch {
			case len(args) == 1 && a.user.Role == schema.RoleEducator:
				alerts = a.core.UnreadAlertsFor(ctx, a.user.Email, args[0])
			case len(args) == 1:
				return fmt.Errorf("only educators can list another student's alerts")
			case unread:
				alerts = a.core.UnreadAlerts(ctx, a.user.Email)
			default:
				alerts = a.core.Alerts(ctx, a.user.Email)
			}
			if len(alerts) == 0 {
				fmt.Println("No alerts.")
				return nil
			}
			for _, al := range alerts {
				fmt.Printf("%s  %-8s  %-22s  %s\n  %s\n", al.CreatedAt.Format("2006-01-02 15:04"), al.Severity, al.Category, al.ID, al.Message)
			}
			return nil
		})
	},
}

var alertsScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Evaluate the alert rules for the acting student and store new alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			created, err := a.progress.EvaluateAlerts(ctx, a.user.Email)
			for _, al := range created {
				fmt.Printf("Raised %s (%s): %s\n", al.Category, al.Severity, al.Message)
			}
			if len(created) == 0 && err == nil {
				fmt.Println("No rule triggered.")
			}
			return err
		})
	},
}

var alertsReadCmd = &cobra.Command{
	Use:   "read <alert-id>",
	Short: "Mark an alert as read by the acting educator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			if a.user.Role != schema.RoleEducator {
				return fmt.Errorf("only educators can mark alerts as read")
			}
			if err := a.core.MarkAlertRead(ctx, a.user.Email, args[0]); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		})
	},
}

func init() {
	alertsListCmd.Flags().Bool("unread", false, "Only list unread alerts")

	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsScanCmd)
	alertsCmd.AddCommand(alertsReadCmd)
}
