// Package progress derives student progress summaries from the cached
// collections and raises threshold alerts. It sits on top of engine.Core and
// never talks to the remote store directly.
package progress

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/celerix-dev/celerix-finsync/internal/engine"
	"github.com/celerix-dev/celerix-finsync/internal/workers"
	"github.com/celerix-dev/celerix-finsync/pkg/schema"
)

// healthDivisor maps savings to the 0-100 wallet health score.
var healthDivisor = decimal.NewFromInt(100)

// Engine computes progress and alerts for students.
type Engine struct {
	core *engine.Core
	pool *workers.Pool
	log  *slog.Logger
}

// New creates an Engine. Background work runs on the Core's pool.
func New(core *engine.Core, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{core: core, pool: core.Pool(), log: log}
}

// Wait blocks until background persistence and alert scans have finished.
func (e *Engine) Wait() { e.pool.Wait() }

// WalletHealth is min(100, savings/100). Negative savings score 0.
func WalletHealth(savings decimal.Decimal) float64 {
	if savings.IsNegative() {
		return 0
	}
	return min(100, savings.Div(healthDivisor).InexactFloat64())
}

// AverageScore is the mean attempt percentage, 0 with no attempts.
func AverageScore(attempts []schema.QuizAttempt) float64 {
	if len(attempts) == 0 {
		return 0
	}
	var sum float64
	for _, a := range attempts {
		sum += a.Percent()
	}
	return sum / float64(len(attempts))
}

// displayName falls back to the local part of the email.
func displayName(stored, email string) string {
	if stored != "" {
		return stored
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

// identity resolves the wallet partition for email: the active user's role
// when the email is theirs, student otherwise.
func (e *Engine) identity(email string) schema.Identity {
	if active, ok := e.core.ActiveUser(); ok && active.Email == email {
		return active
	}
	return schema.Identity{Email: email, Role: schema.RoleStudent}
}

// ComputeProgress recomputes the student's progress from the source
// collections. Only the display name is taken from the stored snapshot. The
// result is persisted in the background; the caller never waits for it.
func (e *Engine) ComputeProgress(ctx context.Context, email string) schema.StudentProgress {
	email = schema.NormalizeEmail(email)
	stored, _ := e.core.StoredProgress(ctx, email)

	attempts := e.core.QuizAttempts(ctx, email)
	wallet, err := e.core.LoadWallet(ctx, e.identity(email))
	if err != nil {
		e.log.Error("wallet write-through failed during progress", "user", email, "err", err)
	}
	savings := schema.SumKind(wallet, schema.KindSavings, "")
	coins := schema.SumKind(wallet, schema.KindIncome, schema.RewardCategory)

	p := schema.StudentProgress{
		UserEmail:        email,
		DisplayName:      displayName(stored.DisplayName, email),
		ModulesCompleted: len(e.core.LessonCompletions(ctx, email)),
		TotalModules:     len(e.core.Lessons(ctx)),
		QuizzesTaken:     len(attempts),
		AverageScore:     AverageScore(attempts),
		WalletHealth:     WalletHealth(savings),
		RewardPoints:     coins.IntPart(),
		Applications:     len(e.core.JobApplications(ctx, email)),
		JobsSaved:        len(e.core.Favorites(ctx, email)),
		TotalSavings:     savings.InexactFloat64(),
		AlertCount:       len(e.core.UnreadAlerts(ctx, email)),
		UpdatedAt:        e.core.Now().UTC(),
	}
	if email == "" {
		return p
	}

	e.pool.Submit(ctx, "persist-progress", func(ctx context.Context) error {
		_, err := e.core.SaveProgress(ctx, p)
		return err
	})
	return p
}
