package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/celerix-dev/celerix-finsync/internal/engine"
	"github.com/celerix-dev/celerix-finsync/pkg/schema"
)

// ErrUnknownQuestion is returned when a question id is not in the catalog.
var ErrUnknownQuestion = errors.New("unknown quiz question")

// AwardPoints adds points to the student's balance.
//
// The new balance is cached before the remote upsert and stays cached when
// the upsert fails. Only after a successful upsert is the matching reward
// income line added to the wallet and the snapshot refreshed from the
// remote store in the background.
func (e *Engine) AwardPoints(ctx context.Context, email string, points int64, reason string) (schema.StudentProgress, error) {
	email = schema.NormalizeEmail(email)
	if email == "" {
		return schema.StudentProgress{}, engine.ErrUnknownUser
	}

	cur, ok := e.core.StoredProgress(ctx, email)
	if !ok {
		cur = schema.StudentProgress{UserEmail: email, DisplayName: displayName("", email)}
	}
	cur.RewardPoints += points
	cur.UpdatedAt = e.core.Now().UTC()
	e.core.CacheProgress(cur)

	saved, err := e.core.SaveProgress(ctx, cur)
	if err != nil {
		e.log.Warn("reward upsert failed, keeping optimistic balance", "user", email, "points", points, "err", err)
		return cur, err
	}

	_, err = e.core.AddLedgerEntry(ctx, e.identity(email), schema.LedgerEntry{
		Kind:     schema.KindIncome,
		Category: schema.RewardCategory,
		Amount:   decimal.NewFromInt(points),
		Note:     reason,
	})
	if err != nil {
		e.log.Warn("reward ledger entry failed", "user", email, "points", points, "err", err)
		var se *engine.StorageError
		if errors.As(err, &se) {
			return saved, err
		}
	}

	e.pool.Submit(ctx, "refresh-progress", func(ctx context.Context) error {
		e.core.RefreshProgress(ctx, email)
		return nil
	})
	return saved, nil
}

// CreditQuestion rewards a correctly answered question at most once per
// student. The reward is recorded before the points are awarded. It reports
// whether points were awarded.
func (e *Engine) CreditQuestion(ctx context.Context, email, questionID string) (bool, error) {
	if e.core.IsQuestionRewarded(ctx, email, questionID) {
		return false, nil
	}
	q, ok := e.core.Question(ctx, questionID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	points := int64(q.Points)
	if err := e.core.MarkQuestionRewarded(ctx, email, questionID, points); err != nil {
		return false, err
	}
	if _, err := e.AwardPoints(ctx, email, points, "Quiz reward: "+q.Prompt); err != nil {
		return true, err
	}
	return true, nil
}
