package schema

import "time"

// StudentProgress is a derived snapshot. It is recomputed from the source
// collections on demand and stored only as a best-effort cache.
type StudentProgress struct {
	UserEmail        string    `json:"user_email"`
	DisplayName      string    `json:"display_name"`
	ModulesCompleted int       `json:"modules_completed"`
	TotalModules     int       `json:"total_modules"`
	QuizzesTaken     int       `json:"quizzes_taken"`
	AverageScore     float64   `json:"average_score"`
	WalletHealth     float64   `json:"wallet_health"`
	RewardPoints     int64     `json:"reward_points"`
	Applications     int       `json:"employment_applications"`
	JobsSaved        int       `json:"jobs_saved"`
	TotalSavings     float64   `json:"total_savings"`
	AlertCount       int       `json:"alert_count"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Severity of an alert.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Alert categories raised by the alert rules.
const (
	AlertLowJobActivity     = "low_job_activity"
	AlertLowQuizPerformance = "low_quiz_performance"
	AlertMissingModules     = "missing_modules"
)

// Alert is append-only. Read state for educators lives in AlertRead.
type Alert struct {
	ID        string         `json:"id,omitempty"`
	UserEmail string         `json:"user_email"`
	Category  string         `json:"category"`
	Severity  Severity       `json:"severity"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Read      bool           `json:"is_read"`
}

// AlertRead records that one educator dismissed one alert.
type AlertRead struct {
	EducatorEmail string    `json:"educator_email"`
	AlertID       string    `json:"alert_id"`
	ReadAt        time.Time `json:"read_at"`
}
