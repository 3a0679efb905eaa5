package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/celerix-dev/celerix-finsync/pkg/schema"
)

// QuizAttempts returns the user's attempts, oldest first.
func (c *Core) QuizAttempts(ctx context.Context, email string) []schema.QuizAttempt {
	email = schema.NormalizeEmail(email)
	if email == "" {
		return []schema.QuizAttempt{}
	}
	return userLoadOrFetch(ctx, c, &c.attempts, email, schema.TableAttempts, byUser(email).OrderBy("created_at", false))
}

// AddQuizAttempt stores an attempt and appends it to the user's snapshot.
func (c *Core) AddQuizAttempt(ctx context.Context, a schema.QuizAttempt) (schema.QuizAttempt, error) {
	a.UserEmail = schema.NormalizeEmail(a.UserEmail)
	if a.UserEmail == "" {
		return schema.QuizAttempt{}, ErrUnknownUser
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = c.now().UTC()
	}
	out, ok := insert(ctx, c, schema.TableAttempts, "", a.UserEmail, a)
	if !ok {
		return schema.QuizAttempt{}, ErrRemoteWrite
	}
	appendUser(&c.attempts, a.UserEmail, out[0])
	return out[0], nil
}

// LessonCompletions returns the user's completions, oldest first.
func (c *Core) LessonCompletions(ctx context.Context, email string) []schema.LessonCompletion {
	email = schema.NormalizeEmail(email)
	if email == "" {
		return []schema.LessonCompletion{}
	}
	return userLoadOrFetch(ctx, c, &c.completions, email, schema.TableCompletions, byUser(email).OrderBy("completed_at", false))
}

// LessonCompletion returns the first completion of lessonID by the user.
func (c *Core) LessonCompletion(ctx context.Context, email, lessonID string) (schema.LessonCompletion, bool) {
	for _, lc := range c.LessonCompletions(ctx, email) {
		if lc.LessonID == lessonID {
			return lc, true
		}
	}
	return schema.LessonCompletion{}, false
}

// IsLessonCompleted reports whether any completion of lessonID exists.
func (c *Core) IsLessonCompleted(ctx context.Context, email, lessonID string) bool {
	_, ok := c.LessonCompletion(ctx, email, lessonID)
	return ok
}

// CompleteLesson records a lesson completion. Uniqueness is not enforced.
func (c *Core) CompleteLesson(ctx context.Context, lc schema.LessonCompletion) (schema.LessonCompletion, error) {
	lc.UserEmail = schema.NormalizeEmail(lc.UserEmail)
	if lc.UserEmail == "" {
		return schema.LessonCompletion{}, ErrUnknownUser
	}
	if lc.ID == "" {
		lc.ID = uuid.NewString()
	}
	if lc.CompletedAt.IsZero() {
		lc.CompletedAt = c.now().UTC()
	}
	out, ok := insert(ctx, c, schema.TableCompletions, "", lc.UserEmail, lc)
	if !ok {
		return schema.LessonCompletion{}, ErrRemoteWrite
	}
	appendUser(&c.completions, lc.UserEmail, out[0])
	return out[0], nil
}

// IsQuestionRewarded reports whether the user was already credited for the
// question. It fails closed: an unknown user, or a reward set that cannot be
// loaded, reads as already rewarded.
func (c *Core) IsQuestionRewarded(ctx context.Context, email, questionID string) bool {
	email = schema.NormalizeEmail(email)
	if email == "" {
		return true
	}
	set, ok := c.rewards.Get(email)
	if !ok {
		if !c.hydrateRewards(ctx, email) {
			return true
		}
		set, _ = c.rewards.Get(email)
	}
	_, done := set[questionID]
	return done
}

// MarkQuestionRewarded records the reward remotely and then in the set. The
// set is untouched when the remote write fails.
func (c *Core) MarkQuestionRewarded(ctx context.Context, email, questionID string, points int64) error {
	email = schema.NormalizeEmail(email)
	if email == "" {
		return ErrUnknownUser
	}
	r := schema.QuestionReward{UserEmail: email, QuestionID: questionID, Points: points, CreatedAt: c.now().UTC()}
	if _, ok := insert(ctx, c, schema.TableQuizRewards, schema.ConflictKeys[schema.TableQuizRewards], email, r); !ok {
		return ErrRemoteWrite
	}
	// A cold set stays cold so the next check hydrates the full set.
	c.rewards.Update(email, func(cur map[string]struct{}, ok bool) (map[string]struct{}, bool) {
		if !ok {
			return nil, false
		}
		next := make(map[string]struct{}, len(cur)+1)
		for k := range cur {
			next[k] = struct{}{}
		}
		next[questionID] = struct{}{}
		return next, true
	})
	return nil
}

// hydrateRewards loads the user's rewarded question ids.
func (c *Core) hydrateRewards(ctx context.Context, email string) bool {
	rows, ok := fetch[schema.QuestionReward](ctx, c, schema.TableQuizRewards,
		byUser(email).Columns("user_email", "question_id"), email)
	if !ok {
		return false
	}
	set := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		set[r.QuestionID] = struct{}{}
	}
	c.rewards.Put(email, set)
	return true
}
