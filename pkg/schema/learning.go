package schema

import "time"

// Lesson is a catalog lesson.
type Lesson struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	Content   string    `json:"content,omitempty"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// QuizDefinition belongs to a lesson.
type QuizDefinition struct {
	ID           string `json:"id"`
	LessonID     string `json:"lesson_id"`
	Title        string `json:"title"`
	PassingScore int    `json:"passing_score"`
}

// QuizQuestion belongs to a quiz. Questions are unordered within a quiz.
type QuizQuestion struct {
	ID           string   `json:"id"`
	QuizID       string   `json:"quiz_id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Points       int      `json:"points"`
}

// QuizAttempt is immutable once created.
type QuizAttempt struct {
	ID        string    `json:"id,omitempty"`
	QuizID    string    `json:"quiz_id"`
	UserEmail string    `json:"user_email"`
	Score     int       `json:"score"`
	MaxScore  int       `json:"max_score"`
	Passed    bool      `json:"passed"`
	Answers   []int     `json:"answers"`
	CreatedAt time.Time `json:"created_at"`
}

// Percent is the attempt score out of 100. A zero max score counts as 1.
func (a QuizAttempt) Percent() float64 {
	return float64(a.Score) / float64(max(a.MaxScore, 1)) * 100
}

// LessonCompletion records that a user finished a lesson. The store does not
// enforce uniqueness per (user, lesson); the first match wins.
type LessonCompletion struct {
	ID            string    `json:"id,omitempty"`
	LessonID      string    `json:"lesson_id"`
	UserEmail     string    `json:"user_email"`
	QuizAttemptID string    `json:"quiz_attempt_id,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// QuestionReward marks a question as already credited for a user.
type QuestionReward struct {
	UserEmail  string    `json:"user_email"`
	QuestionID string    `json:"question_id"`
	Points     int64     `json:"points"`
	CreatedAt  time.Time `json:"created_at"`
}
