package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/celerix-finsync/pkg/schema"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Work with the job board",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List job listings, newest first, marking bookmarks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, a *app) error {
			jobs := a.core.Jobs(ctx)
			if len(jobs) == 0 {
				fmt.Println("No jobs.")
				return nil
			}
			for _, j := range jobs {
				mark := " "
				if a.user.Known() && a.core.IsFavorite(ctx, a.user.Email, j.ID) {
					mark = "*"
				}
				fmt.Printf("%s %-36s  %-30s  %s\n", mark, j.ID, j.Title, j.Company)
			}
			return nil
		})
	},
}

var jobsSyncCmd = &cobra.Command{
	Use:   "sync <file.json>",
	Short: "Upsert a JSON array of job listings into the job board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var batch []schema.JobOpportunity
		if err := json.Unmarshal(content, &batch); err != nil {
			return fmt.Errorf("decode %s: %w", args[0], err)
		}
		return run(cmd, func(ctx context.Context, a *app) error {
			n, err := a.core.SyncJobs(ctx, a.user.Email, batch)
			if err != nil {
				return err
			}
			fmt.Printf("Synced %d jobs.\n", n)
			return nil
		})
	},
}

var jobsSaveCmd = &cobra.Command{
	Use:   "save <job-id>",
	Short: "Toggle the bookmark on a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			saved, err := a.core.ToggleFavorite(ctx, a.user.Email, args[0])
			if err != nil {
				return err
			}
			if saved {
				fmt.Println("Saved.")
			} else {
				fmt.Println("Removed.")
			}
			return nil
		})
	},
}

var jobsApplyCmd = &cobra.Command{
	Use:   "apply <job-id>",
	Short: "Record a job application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			if err := a.progress.RecordJobApplication(ctx, a.user.Email, args[0]); err != nil {
				return err
			}
			fmt.Printf("Applications so far: %d\n", len(a.core.JobApplications(ctx, a.user.Email)))
			return nil
		})
	},
}

func init() {
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsSyncCmd)
	jobsCmd.AddCommand(jobsSaveCmd)
	jobsCmd.AddCommand(jobsApplyCmd)
}
