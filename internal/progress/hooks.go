package progress

import (
	"context"

	"github.com/celerix-dev/celerix-finsync/pkg/schema"
)

// RecordJobApplication logs the application and schedules an alert scan.
func (e *Engine) RecordJobApplication(ctx context.Context, email, jobID string) error {
	email = schema.NormalizeEmail(email)
	details := map[string]any{"job_id": jobID}
	if job, ok := e.core.Job(ctx, jobID); ok {
		details["title"] = job.Title
		details["company"] = job.Company
	}
	if err := e.core.LogActivity(ctx, email, schema.ActivityJobApplication, details); err != nil {
		return err
	}
	e.scheduleAlerts(ctx, email)
	return nil
}

// RecordQuizCompletion stores the attempt. A passing attempt also completes
// the quiz's lesson unless it was already completed. An alert scan is
// scheduled either way.
func (e *Engine) RecordQuizCompletion(ctx context.Context, a schema.QuizAttempt) (schema.QuizAttempt, error) {
	saved, err := e.core.AddQuizAttempt(ctx, a)
	if err != nil {
		return schema.QuizAttempt{}, err
	}
	email := saved.UserEmail

	if saved.Passed {
		if lessonID := e.lessonOf(ctx, saved.QuizID); lessonID != "" && !e.core.IsLessonCompleted(ctx, email, lessonID) {
			_, err := e.core.CompleteLesson(ctx, schema.LessonCompletion{
				LessonID:      lessonID,
				UserEmail:     email,
				QuizAttemptID: saved.ID,
			})
			if err != nil {
				e.log.Warn("lesson completion not recorded", "user", email, "lesson", lessonID, "err", err)
			}
		}
	}

	err = e.core.LogActivity(ctx, email, schema.ActivityQuizCompleted, map[string]any{
		"quiz_id": saved.QuizID,
		"score":   saved.Score,
		"max":     saved.MaxScore,
		"passed":  saved.Passed,
	})
	if err != nil {
		e.log.Warn("quiz activity not logged", "user", email, "err", err)
	}
	e.scheduleAlerts(ctx, email)
	return saved, nil
}

func (e *Engine) lessonOf(ctx context.Context, quizID string) string {
	for _, q := range e.core.Quizzes(ctx) {
		if q.ID == quizID {
			return q.LessonID
		}
	}
	return ""
}
