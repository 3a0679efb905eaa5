package progress

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-finsync/internal/engine"
	"github.com/celerix-dev/celerix-finsync/internal/workers"
	"github.com/celerix-dev/celerix-finsync/pkg/schema"
	"github.com/celerix-dev/celerix-finsync/pkg/tables"
)

const email = "foo@bar.com"

var student = schema.Identity{Email: email, Role: schema.RoleStudent}

// downStore fails inserts into the listed tables.
type downStore struct {
	*tables.MemTable
	mu   sync.Mutex
	down map[string]bool
}

func (d *downStore) setDown(table string, v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.down[table] = v
}

func (d *downStore) Insert(ctx context.Context, table, onConflict string, rows []tables.Row, cred string) ([]tables.Row, error) {
	d.mu.Lock()
	down := d.down[table]
	d.mu.Unlock()
	if down {
		return nil, &tables.RemoteError{Op: "insert", Table: table, Status: 503, Err: errors.New("unavailable")}
	}
	return d.MemTable.Insert(ctx, table, onConflict, rows, cred)
}

type fixture struct {
	engine *Engine
	core   *engine.Core
	remote *downStore
	files  *engine.LedgerFiles
}

func newFixture(t *testing.T, seed map[string][]tables.Row) fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	remote := &downStore{MemTable: tables.NewMemTable(seed), down: map[string]bool{}}
	files, err := engine.NewLedgerFiles(t.TempDir(), []byte("test-secret"), log)
	require.NoError(t, err)

	var mu sync.Mutex
	now := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
	core := engine.New(remote, files,
		engine.WithLogger(log),
		engine.WithClock(clock),
		engine.WithPool(workers.New(2, 5*time.Second, log)),
	)
	return fixture{engine: New(core, log), core: core, remote: remote, files: files}
}

func lessons(ids ...string) []tables.Row {
	rows := make([]tables.Row, len(ids))
	for i, id := range ids {
		rows[i] = tables.Row{"id": id, "title": "Lesson " + id, "position": i + 1}
	}
	return rows
}

func completions(lessonIDs ...string) []tables.Row {
	rows := make([]tables.Row, len(lessonIDs))
	for i, id := range lessonIDs {
		rows[i] = tables.Row{"id": "c-" + id, "lesson_id": id, "user_email": email, "completed_at": "2024-02-01T10:00:00Z"}
	}
	return rows
}

func TestWalletHealth(t *testing.T) {
	tests := []struct {
		savings string
		want    float64
	}{
		{"0", 0},
		{"250", 2.5},
		{"5000", 50},
		{"10000", 100},
		{"20000", 100},
		{"-10", 0},
	}
	for _, tt := range tests {
		t.Run(tt.savings, func(t *testing.T) {
			assert.InDelta(t, tt.want, WalletHealth(decimal.RequireFromString(tt.savings)), 1e-9)
		})
	}
}

func TestAverageScore(t *testing.T) {
	assert.Equal(t, 0.0, AverageScore(nil))

	got := AverageScore([]schema.QuizAttempt{{Score: 8, MaxScore: 10}, {Score: 3, MaxScore: 10}})
	assert.InDelta(t, 55.0, got, 1e-9)

	// A zero max score is scored against a floor of 1.
	assert.InDelta(t, 0.0, AverageScore([]schema.QuizAttempt{{Score: 0, MaxScore: 0}}), 1e-9)
	assert.InDelta(t, 100.0, AverageScore([]schema.QuizAttempt{{Score: 1, MaxScore: 0}}), 1e-9)
}

func TestEvaluate_Thresholds(t *testing.T) {
	categories := func(f Facts) []string {
		var out []string
		for _, a := range Evaluate(email, f) {
			out = append(out, a.Category)
		}
		return out
	}

	tests := []struct {
		name  string
		facts Facts
		want  []string
	}{
		{"low job activity", Facts{Applications: 1, Bookmarks: 1}, []string{schema.AlertLowJobActivity}},
		{"enough applications", Facts{Applications: 2, Bookmarks: 0}, nil},
		{"enough bookmarks", Facts{Applications: 0, Bookmarks: 2}, nil},
		{"low quiz score", Facts{Applications: 2, Attempts: 2, AverageScore: 49.9}, []string{schema.AlertLowQuizPerformance}},
		{"no attempts", Facts{Applications: 2, Attempts: 0, AverageScore: 0}, nil},
		{"passing average", Facts{Applications: 2, Attempts: 3, AverageScore: 50}, nil},
		{"missing modules", Facts{Applications: 2, Lessons: 4, Completed: 1}, []string{schema.AlertMissingModules}},
		{"enough modules", Facts{Applications: 2, Lessons: 4, Completed: 2}, nil},
		{"no lessons", Facts{Applications: 2, Lessons: 0}, nil},
		{
			"everything",
			Facts{Applications: 0, Bookmarks: 0, Attempts: 1, AverageScore: 10, Lessons: 10, Completed: 0},
			[]string{schema.AlertLowJobActivity, schema.AlertLowQuizPerformance, schema.AlertMissingModules},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, categories(tt.facts))
		})
	}
}

func TestEvaluate_AlertShape(t *testing.T) {
	alerts := Evaluate(email, Facts{Applications: 1, Bookmarks: 1})
	require.Len(t, alerts, 1)
	assert.Equal(t, schema.SeverityInfo, alerts[0].Severity)
	assert.Equal(t, email, alerts[0].UserEmail)
	assert.Equal(t, 1, alerts[0].Metadata["applications"])
	assert.NotEmpty(t, alerts[0].Message)
}

func TestComputeProgress(t *testing.T) {
	f := newFixture(t, map[string][]tables.Row{
		schema.TableLessons:     lessons("A", "B", "C", "D"),
		schema.TableCompletions: completions("A"),
		schema.TableAttempts: {
			{"id": "t1", "quiz_id": "q1", "user_email": email, "score": 8, "max_score": 10, "passed": true, "created_at": "2024-02-01T10:00:00Z"},
			{"id": "t2", "quiz_id": "q1", "user_email": email, "score": 3, "max_score": 10, "passed": false, "created_at": "2024-02-02T10:00:00Z"},
		},
		schema.TableWallet: {
			{"id": "w1", "user_email": email, "type": "SAVINGS", "category": "Emergency", "amount": "5000", "date": "2024-02-01", "created_at": "2024-02-01T10:00:00Z"},
			{"id": "w2", "user_email": email, "type": "INCOME", "category": "Education", "amount": "30", "date": "2024-02-02", "created_at": "2024-02-02T10:00:00Z"},
			{"id": "w3", "user_email": email, "type": "INCOME", "category": "Allowance", "amount": "200", "date": "2024-02-03", "created_at": "2024-02-03T10:00:00Z"},
		},
		schema.TableActivityLog: {
			{"id": "l1", "user_email": email, "activity_type": schema.ActivityJobApplication, "created_at": "2024-02-01T10:00:00Z"},
			{"id": "l2", "user_email": email, "activity_type": schema.ActivityQuizCompleted, "created_at": "2024-02-01T11:00:00Z"},
		},
		schema.TableFavorites: {{"user_email": email, "job_id": "j1"}},
		schema.TableAlerts: {
			{"id": "a1", "user_email": email, "category": schema.AlertMissingModules, "severity": "warning", "is_read": false, "created_at": "2024-02-01T10:00:00Z"},
			{"id": "a2", "user_email": email, "category": schema.AlertMissingModules, "severity": "warning", "is_read": true, "created_at": "2024-02-02T10:00:00Z"},
		},
		schema.TableProgress: {{"user_email": email, "display_name": "Foo Student", "reward_points": 999, "modules_completed": 7}},
	})
	ctx := context.Background()

	p := f.engine.ComputeProgress(ctx, "Foo@Bar.com")
	assert.Equal(t, email, p.UserEmail)
	assert.Equal(t, "Foo Student", p.DisplayName)
	assert.Equal(t, 1, p.ModulesCompleted)
	assert.Equal(t, 4, p.TotalModules)
	assert.Equal(t, 2, p.QuizzesTaken)
	assert.InDelta(t, 55.0, p.AverageScore, 1e-9)
	assert.InDelta(t, 5000.0, p.TotalSavings, 1e-9)
	assert.InDelta(t, 50.0, p.WalletHealth, 1e-9)
	assert.Equal(t, int64(30), p.RewardPoints)
	assert.Equal(t, 1, p.Applications)
	assert.Equal(t, 1, p.JobsSaved)
	assert.Equal(t, 1, p.AlertCount)

	f.engine.Wait()
	rows, err := f.remote.MemTable.Fetch(ctx, schema.TableProgress, tables.Where(tables.Eq("user_email", email)), "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 30, rows[0]["reward_points"])
	assert.Equal(t, "Foo Student", rows[0]["display_name"])
}

func TestComputeProgress_DisplayNameFallback(t *testing.T) {
	f := newFixture(t, nil)
	p := f.engine.ComputeProgress(context.Background(), email)
	f.engine.Wait()

	assert.Equal(t, "foo", p.DisplayName)
	assert.Equal(t, 0, p.TotalModules)
	assert.Zero(t, p.WalletHealth)
}

func TestComputeProgress_UsesActiveUserWallet(t *testing.T) {
	f := newFixture(t, map[string][]tables.Row{
		schema.TableWallet: {
			{"id": "w1", "user_email": email, "type": "SAVINGS", "category": "Emergency", "amount": "2500", "date": "2024-02-01", "created_at": "2024-02-01T10:00:00Z"},
		},
	})
	ctx := context.Background()
	educator := schema.Identity{Email: email, Role: schema.RoleEducator}

	report := f.core.Prefetch(ctx, educator)
	require.Empty(t, report.Failed)
	// Only the prefetch snapshot still holds the row.
	require.NoError(t, f.remote.MemTable.Delete(ctx, schema.TableWallet, tables.Where(tables.Eq("user_email", email)), ""))

	p := f.engine.ComputeProgress(ctx, email)
	f.engine.Wait()
	assert.InDelta(t, 2500.0, p.TotalSavings, 1e-9)

	wallet, err := f.core.LoadWallet(ctx, educator)
	require.NoError(t, err)
	assert.Len(t, wallet, 1, "progress should have read the educator partition")
}

func TestEvaluateAlerts_MissingModulesScenario(t *testing.T) {
	ctx := context.Background()
	seed := func(done ...string) map[string][]tables.Row {
		return map[string][]tables.Row{
			schema.TableLessons:     lessons("A", "B", "C", "D"),
			schema.TableCompletions: completions(done...),
			// Enough activity to silence the job rule.
			schema.TableFavorites: {{"user_email": email, "job_id": "j1"}, {"user_email": email, "job_id": "j2"}},
		}
	}

	f := newFixture(t, seed("A"))
	raised, err := f.engine.EvaluateAlerts(ctx, email)
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.Equal(t, schema.AlertMissingModules, raised[0].Category)

	f = newFixture(t, seed("A", "B"))
	raised, err = f.engine.EvaluateAlerts(ctx, email)
	require.NoError(t, err)
	assert.Empty(t, raised)
}

func TestEvaluateAlerts_RepeatsWithoutDeduplication(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.engine.EvaluateAlerts(ctx, email)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := f.engine.EvaluateAlerts(ctx, email)
	require.NoError(t, err)
	require.Len(t, second, 1)

	assert.NotEqual(t, first[0].ID, second[0].ID)
	assert.Len(t, f.core.Alerts(ctx, email), 2)
}

func TestEvaluateAlerts_ReportsWriteFailures(t *testing.T) {
	f := newFixture(t, nil)
	f.remote.setDown(schema.TableAlerts, true)

	raised, err := f.engine.EvaluateAlerts(context.Background(), email)
	assert.Empty(t, raised)
	assert.ErrorIs(t, err, engine.ErrRemoteWrite)
}

func TestAwardPoints(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	p, err := f.engine.AwardPoints(ctx, "Foo@bar.com", 10, "Quiz reward")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.RewardPoints)
	f.engine.Wait()

	p, err = f.engine.AwardPoints(ctx, email, 5, "Quiz reward")
	require.NoError(t, err)
	assert.Equal(t, int64(15), p.RewardPoints)
	f.engine.Wait()

	wallet, err := f.core.LoadWallet(ctx, student)
	require.NoError(t, err)
	require.Len(t, wallet, 2)
	assert.Equal(t, schema.KindIncome, wallet[0].Kind)
	assert.Equal(t, schema.RewardCategory, wallet[0].Category)
	assert.True(t, wallet[0].Amount.Equal(decimal.NewFromInt(5)))

	assert.Len(t, f.files.Load(email), 2)

	stored, ok := f.core.StoredProgress(ctx, email)
	require.True(t, ok)
	assert.Equal(t, int64(15), stored.RewardPoints)
}

func TestAwardPoints_NoRollbackOnRemoteFailure(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.remote.setDown(schema.TableProgress, true)

	p, err := f.engine.AwardPoints(ctx, email, 10, "Quiz reward")
	assert.ErrorIs(t, err, engine.ErrRemoteWrite)
	assert.Equal(t, int64(10), p.RewardPoints)

	cached, ok := f.core.StoredProgress(ctx, email)
	require.True(t, ok)
	assert.Equal(t, int64(10), cached.RewardPoints, "optimistic balance stays cached")

	wallet, err := f.core.LoadWallet(ctx, student)
	require.NoError(t, err)
	assert.Empty(t, wallet, "no ledger line without a confirmed upsert")
}

func TestCreditQuestion_AtMostOnce(t *testing.T) {
	f := newFixture(t, map[string][]tables.Row{
		schema.TableQuestions: {{"id": "x1", "quiz_id": "q1", "prompt": "What is a budget?", "points": 5}},
	})
	ctx := context.Background()

	awarded, err := f.engine.CreditQuestion(ctx, email, "x1")
	require.NoError(t, err)
	assert.True(t, awarded)

	awarded, err = f.engine.CreditQuestion(ctx, email, "x1")
	require.NoError(t, err)
	assert.False(t, awarded)
	f.engine.Wait()

	wallet, err := f.core.LoadWallet(ctx, student)
	require.NoError(t, err)
	assert.Len(t, wallet, 1)

	_, err = f.engine.CreditQuestion(ctx, email, "missing")
	assert.ErrorIs(t, err, ErrUnknownQuestion)
}

func TestCreditQuestion_UnknownUserIsNeverCredited(t *testing.T) {
	f := newFixture(t, map[string][]tables.Row{
		schema.TableQuestions: {{"id": "x1", "quiz_id": "q1", "prompt": "?", "points": 5}},
	})
	awarded, err := f.engine.CreditQuestion(context.Background(), "", "x1")
	require.NoError(t, err)
	assert.False(t, awarded)
}

func TestRecordQuizCompletion(t *testing.T) {
	f := newFixture(t, map[string][]tables.Row{
		schema.TableLessons: lessons("A"),
		schema.TableQuizzes: {{"id": "q1", "lesson_id": "A", "title": "Quiz A"}},
	})
	ctx := context.Background()

	for range 2 {
		_, err := f.engine.RecordQuizCompletion(ctx, schema.QuizAttempt{
			QuizID: "q1", UserEmail: email, Score: 9, MaxScore: 10, Passed: true, Answers: []int{0, 1, 2},
		})
		require.NoError(t, err)
		f.engine.Wait()
	}

	assert.Len(t, f.core.QuizAttempts(ctx, email), 2)
	lcs := f.core.LessonCompletions(ctx, email)
	require.Len(t, lcs, 1, "a lesson is completed once")
	assert.Equal(t, "A", lcs[0].LessonID)

	// Low job activity fires after each completion.
	assert.Len(t, f.core.Alerts(ctx, email), 2)
}

func TestRecordJobApplication(t *testing.T) {
	f := newFixture(t, map[string][]tables.Row{
		schema.TableJobs: {{"id": "j1", "title": "Tutor", "company": "Uni"}},
	})
	ctx := context.Background()

	require.NoError(t, f.engine.RecordJobApplication(ctx, email, "j1"))
	f.engine.Wait()

	apps := f.core.JobApplications(ctx, email)
	require.Len(t, apps, 1)
	assert.Equal(t, "Tutor", apps[0].Details["title"])
	assert.Len(t, f.core.Alerts(ctx, email), 1)
}
