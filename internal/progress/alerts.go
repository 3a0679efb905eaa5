package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/celerix-dev/celerix-finsync/pkg/schema"
)

// Thresholds used by the alert rules.
const (
	MinApplications   = 2
	MinBookmarks      = 2
	MinAverageScore   = 50.0
	MinCompletionRate = 0.30
)

// Facts are the inputs the alert rules look at.
type Facts struct {
	Applications int
	Bookmarks    int
	Attempts     int
	AverageScore float64
	Lessons      int
	Completed    int // distinct lessons completed
}

// CompletionRate is completed lessons over total lessons, 0 with no lessons.
func (f Facts) CompletionRate() float64 {
	if f.Lessons == 0 {
		return 0
	}
	return float64(f.Completed) / float64(f.Lessons)
}

// Rule raises one alert category when Triggered holds.
type Rule struct {
	Category  string
	Severity  schema.Severity
	Triggered func(Facts) bool
	Message   func(Facts) string
}

// Rules is the fixed set of alert rules, evaluated in order.
var Rules = []Rule{
	{
		Category: schema.AlertLowJobActivity,
		Severity: schema.SeverityInfo,
		Triggered: func(f Facts) bool {
			return f.Applications < MinApplications && f.Bookmarks < MinBookmarks
		},
		Message: func(f Facts) string {
			return fmt.Sprintf("Low job activity: %d applications and %d saved jobs.", f.Applications, f.Bookmarks)
		},
	},
	{
		Category: schema.AlertLowQuizPerformance,
		Severity: schema.SeverityWarning,
		Triggered: func(f Facts) bool {
			return f.Attempts >= 1 && f.AverageScore < MinAverageScore
		},
		Message: func(f Facts) string {
			return fmt.Sprintf("Average quiz score is %.1f%% over %d attempts.", f.AverageScore, f.Attempts)
		},
	},
	{
		Category: schema.AlertMissingModules,
		Severity: schema.SeverityWarning,
		Triggered: func(f Facts) bool {
			return f.Lessons >= 1 && f.CompletionRate() < MinCompletionRate
		},
		Message: func(f Facts) string {
			return fmt.Sprintf("Only %d of %d modules completed.", f.Completed, f.Lessons)
		},
	},
}

// Evaluate returns the alerts the facts trigger. It is pure; nothing is
// stored.
func Evaluate(email string, f Facts) []schema.Alert {
	var out []schema.Alert
	for _, r := range Rules {
		if !r.Triggered(f) {
			continue
		}
		out = append(out, schema.Alert{
			UserEmail: email,
			Category:  r.Category,
			Severity:  r.Severity,
			Message:   r.Message(f),
			Metadata: map[string]any{
				"applications":    f.Applications,
				"bookmarks":       f.Bookmarks,
				"attempts":        f.Attempts,
				"average_score":   f.AverageScore,
				"lessons":         f.Lessons,
				"completed":       f.Completed,
				"completion_rate": f.CompletionRate(),
			},
		})
	}
	return out
}

// FactsFor gathers the rule inputs for a student from the Core.
func (e *Engine) FactsFor(ctx context.Context, email string) Facts {
	attempts := e.core.QuizAttempts(ctx, email)
	done := make(map[string]bool)
	for _, lc := range e.core.LessonCompletions(ctx, email) {
		done[lc.LessonID] = true
	}
	return Facts{
		Applications: len(e.core.JobApplications(ctx, email)),
		Bookmarks:    len(e.core.Favorites(ctx, email)),
		Attempts:     len(attempts),
		AverageScore: AverageScore(attempts),
		Lessons:      len(e.core.Lessons(ctx)),
		Completed:    len(done),
	}
}

// EvaluateAlerts runs every rule for the student and appends one alert per
// triggered rule. Earlier alerts of the same category are not consulted, so
// repeated evaluations raise repeated alerts.
func (e *Engine) EvaluateAlerts(ctx context.Context, email string) ([]schema.Alert, error) {
	email = schema.NormalizeEmail(email)
	var (
		raised []schema.Alert
		errs   []error
	)
	for _, a := range Evaluate(email, e.FactsFor(ctx, email)) {
		saved, err := e.core.AddAlert(ctx, "", a)
		if err != nil {
			errs = append(errs, fmt.Errorf("alert %s: %w", a.Category, err))
			continue
		}
		raised = append(raised, saved)
	}
	if len(raised) > 0 {
		e.log.Info("alerts raised", "user", email, "count", len(raised))
	}
	return raised, errors.Join(errs...)
}

// scheduleAlerts evaluates the rules in the background.
func (e *Engine) scheduleAlerts(ctx context.Context, email string) {
	e.pool.Submit(ctx, "evaluate-alerts", func(ctx context.Context) error {
		_, err := e.EvaluateAlerts(ctx, email)
		return err
	})
}
