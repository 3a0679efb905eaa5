package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/celerix-dev/celerix-finsync/pkg/schema"
	"github.com/celerix-dev/celerix-finsync/pkg/tables"
)

// Lessons returns every lesson, ordered by position.
func (c *Core) Lessons(ctx context.Context) []schema.Lesson {
	return loadOrFetch(ctx, c, &c.lessons, schema.TableLessons, tables.Query{}.OrderBy("position", false))
}

// Quizzes returns every quiz definition.
func (c *Core) Quizzes(ctx context.Context) []schema.QuizDefinition {
	return loadOrFetch(ctx, c, &c.quizzes, schema.TableQuizzes, tables.Query{})
}

// Questions returns every quiz question.
func (c *Core) Questions(ctx context.Context) []schema.QuizQuestion {
	return loadOrFetch(ctx, c, &c.questions, schema.TableQuestions, tables.Query{})
}

// QuizzesForLesson filters the quiz catalog by lesson.
func (c *Core) QuizzesForLesson(ctx context.Context, lessonID string) []schema.QuizDefinition {
	out := []schema.QuizDefinition{}
	for _, q := range c.Quizzes(ctx) {
		if q.LessonID == lessonID {
			out = append(out, q)
		}
	}
	return out
}

// QuestionsForQuiz filters the question catalog by quiz.
func (c *Core) QuestionsForQuiz(ctx context.Context, quizID string) []schema.QuizQuestion {
	out := []schema.QuizQuestion{}
	for _, q := range c.Questions(ctx) {
		if q.QuizID == quizID {
			out = append(out, q)
		}
	}
	return out
}

// Question looks up one question by id.
func (c *Core) Question(ctx context.Context, id string) (schema.QuizQuestion, bool) {
	for _, q := range c.Questions(ctx) {
		if q.ID == id {
			return q, true
		}
	}
	return schema.QuizQuestion{}, false
}

// AddLesson inserts a lesson and appends it to the catalog snapshot. Catalog
// writes are signed with the author's token.
func (c *Core) AddLesson(ctx context.Context, author string, l schema.Lesson) (schema.Lesson, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = c.now().UTC()
	}
	out, ok := insert(ctx, c, schema.TableLessons, "", schema.NormalizeEmail(author), l)
	if !ok {
		return schema.Lesson{}, ErrRemoteWrite
	}
	saved := out[0]
	c.lessons.Update(func(cur []schema.Lesson) []schema.Lesson { return append(cur, saved) })
	return saved, nil
}

// AddQuiz inserts a quiz definition and appends it to the catalog snapshot.
func (c *Core) AddQuiz(ctx context.Context, author string, q schema.QuizDefinition) (schema.QuizDefinition, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	out, ok := insert(ctx, c, schema.TableQuizzes, "", schema.NormalizeEmail(author), q)
	if !ok {
		return schema.QuizDefinition{}, ErrRemoteWrite
	}
	saved := out[0]
	c.quizzes.Update(func(cur []schema.QuizDefinition) []schema.QuizDefinition { return append(cur, saved) })
	return saved, nil
}

// AddQuestion inserts a quiz question and appends it to the catalog snapshot.
func (c *Core) AddQuestion(ctx context.Context, author string, q schema.QuizQuestion) (schema.QuizQuestion, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	out, ok := insert(ctx, c, schema.TableQuestions, "", schema.NormalizeEmail(author), q)
	if !ok {
		return schema.QuizQuestion{}, ErrRemoteWrite
	}
	saved := out[0]
	c.questions.Update(func(cur []schema.QuizQuestion) []schema.QuizQuestion { return append(cur, saved) })
	return saved, nil
}
