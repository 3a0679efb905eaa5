package engine

import (
	"context"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/celerix-dev/celerix-finsync/pkg/schema"
	"github.com/celerix-dev/celerix-finsync/pkg/tables"
)

// PrefetchReport lists the tables whose fetch failed during a prefetch.
type PrefetchReport struct {
	User     schema.Identity
	Failed   []string
	Duration time.Duration
}

// Prefetch populates every slot with one fetch per collection. Fetches run in
// parallel and fail independently: a failed fetch leaves its slot as it was.
// When user is known the per-user slots, the reward set and the remote wallet
// snapshot are primed too, and user becomes the active user.
//
// Only one prefetch runs at a time. Concurrent calls for the same user share
// the in-flight result; calls for another user wait their turn.
func (c *Core) Prefetch(ctx context.Context, user schema.Identity) PrefetchReport {
	user = user.Normalized()
	v, _, _ := c.prefetch.Do(user.Key(), func() (any, error) {
		c.prefetchMu.Lock()
		defer c.prefetchMu.Unlock()
		return c.prefetchLocked(ctx, user), nil
	})
	return v.(PrefetchReport)
}

func (c *Core) prefetchLocked(ctx context.Context, user schema.Identity) PrefetchReport {
	start := c.now()
	failed := make(chan string, 16)

	var g errgroup.Group
	run := func(table string, fn func() bool) {
		g.Go(func() error {
			if !fn() {
				failed <- table
			}
			return nil
		})
	}

	run(schema.TableLessons, func() bool {
		return fetchInto(ctx, c, &c.lessons, schema.TableLessons, tables.Query{}.OrderBy("position", false))
	})
	run(schema.TableQuizzes, func() bool {
		return fetchInto(ctx, c, &c.quizzes, schema.TableQuizzes, tables.Query{})
	})
	run(schema.TableQuestions, func() bool {
		return fetchInto(ctx, c, &c.questions, schema.TableQuestions, tables.Query{})
	})
	run(schema.TableJobs, func() bool {
		return fetchInto(ctx, c, &c.jobs, schema.TableJobs, tables.Query{}.OrderBy("published_at", true))
	})

	if user.Known() {
		email := user.Email
		c.active.Store(&user)

		run(schema.TableAttempts, func() bool {
			return fetchUser(ctx, c, &c.attempts, email, schema.TableAttempts, byUser(email).OrderBy("created_at", false))
		})
		run(schema.TableCompletions, func() bool {
			return fetchUser(ctx, c, &c.completions, email, schema.TableCompletions, byUser(email).OrderBy("completed_at", false))
		})
		run(schema.TableFavorites, func() bool {
			return fetchUser(ctx, c, &c.favorites, email, schema.TableFavorites, byUser(email))
		})
		run(schema.TableAlerts, func() bool {
			return fetchUser(ctx, c, &c.alerts, email, schema.TableAlerts, alertQuery(email))
		})
		run(schema.TableBudgetGoals, func() bool {
			goals, ok := fetch[schema.BudgetGoal](ctx, c, schema.TableBudgetGoals, byUser(email).WithLimit(1), email)
			if ok && len(goals) > 0 {
				c.goals.Put(email, goals[0])
			}
			return ok
		})
		run(schema.TableProgress, func() bool {
			rows, ok := fetch[schema.StudentProgress](ctx, c, schema.TableProgress, byUser(email).WithLimit(1), email)
			if ok && len(rows) > 0 {
				c.progress.Put(email, rows[0])
			}
			return ok
		})
		run(schema.TableQuizRewards, func() bool {
			return c.hydrateRewards(ctx, email)
		})
		run(schema.TableWallet, func() bool {
			entries, ok := fetch[schema.LedgerEntry](ctx, c, schema.TableWallet, walletQuery(email), email)
			if ok {
				c.walletMu.Lock()
				c.walletSnapshot = &walletSnapshot{key: user.Key(), entries: entries}
				c.walletMu.Unlock()
			}
			return ok
		})
		if user.Role == schema.RoleEducator {
			run(schema.TableAlertReads, func() bool {
				return fetchUser(ctx, c, &c.alertReads, email, schema.TableAlertReads,
					tables.Where(tables.Eq("educator_email", email)))
			})
		}
	}

	_ = g.Wait()
	close(failed)

	report := PrefetchReport{User: user, Duration: c.now().Sub(start)}
	for t := range failed {
		report.Failed = append(report.Failed, t)
	}
	slices.Sort(report.Failed)
	c.log.Info("prefetch complete", "user", user.Email, "failed", len(report.Failed), "duration", report.Duration)
	return report
}

// fetchInto refreshes a catalog slot. On failure the slot keeps what it had.
func fetchInto[T any](ctx context.Context, c *Core, s *Slot[T], table string, q tables.Query) bool {
	items, ok := fetch[T](ctx, c, table, q, "")
	if ok {
		s.Store(items)
	}
	return ok
}

// fetchUser refreshes one user's entry in a per-user slot.
func fetchUser[T any](ctx context.Context, c *Core, m *MapSlot[string, []T], email, table string, q tables.Query) bool {
	items, ok := fetch[T](ctx, c, table, q, email)
	if ok {
		m.Put(email, items)
	}
	return ok
}

func byUser(email string) tables.Query {
	return tables.Where(tables.Eq("user_email", email))
}

func walletQuery(email string) tables.Query {
	return byUser(email).OrderBy("created_at", true)
}
