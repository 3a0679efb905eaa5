package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/celerix-finsync/pkg/schema"
)

var prefetchCmd = &cobra.Command{
	Use:   "prefetch",
	Short: "Warm every cached collection and report failed tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, a *app) error {
			report := a.core.Prefetch(ctx, a.user)
			who := report.User.Email
			if who == "" {
				who = "(shared collections only)"
			}
			fmt.Printf("Prefetched for %s in %s\n", who, report.Duration.Round(time.Millisecond))
			fmt.Printf("Lessons %d  Quizzes %d  Questions %d  Jobs %d\n",
				len(a.core.Lessons(ctx)), len(a.core.Quizzes(ctx)), len(a.core.Questions(ctx)), len(a.core.Jobs(ctx)))
			if len(report.Failed) > 0 {
				fmt.Printf("Failed: %s\n", strings.Join(report.Failed, ", "))
			}
			return nil
		})
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Recompute and store the student's progress snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			p := a.progress.ComputeProgress(ctx, a.user.Email)
			return printJSON(p)
		})
	},
}

var rewardCmd = &cobra.Command{
	Use:   "reward <question-id>",
	Short: "Credit the reward for a correctly answered question, at most once",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			credited, err := a.progress.CreditQuestion(ctx, a.user.Email, args[0])
			if err != nil {
				return err
			}
			if !credited {
				fmt.Println("Already rewarded.")
				return nil
			}
			fmt.Println("Reward credited.")
			return nil
		})
	},
}

var attemptCmd = &cobra.Command{
	Use:   "attempt <quiz-id> <score> <max-score>",
	Short: "Record a finished quiz attempt",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("score: %w", err)
		}
		maxScore, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("max score: %w", err)
		}
		passed, _ := cmd.Flags().GetBool("passed")

		return run(cmd, func(ctx context.Context, a *app) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			saved, err := a.progress.RecordQuizCompletion(ctx, schema.QuizAttempt{
				QuizID:    args[0],
				UserEmail: a.user.Email,
				Score:     score,
				MaxScore:  maxScore,
				Passed:    passed,
			})
			if err != nil {
				return err
			}
			return printJSON(saved)
		})
	},
}

func init() {
	attemptCmd.Flags().Bool("passed", false, "Mark the attempt as passed")
	rootCmd.AddCommand(attemptCmd)
}
