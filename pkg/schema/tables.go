package schema

// Remote table names.
const (
	TableLessons     = "lessons"
	TableQuizzes     = "quizzes"
	TableQuestions   = "quiz_questions"
	TableAttempts    = "quiz_attempts"
	TableCompletions = "lesson_completions"
	TableJobs        = "jobs"
	TableFavorites   = "job_favorites"
	TableBudgetGoals = "budget_goals"
	TableProgress    = "student_progress"
	TableAlerts      = "alerts"
	TableAlertReads  = "alert_reads"
	TableActivityLog = "student_activity_log"
	TableWallet      = "wallet_entries"
	TableQuizRewards = "quiz_rewards"
)

// ConflictKeys lists the upsert key of each table that has one.
var ConflictKeys = map[string]string{
	TableLessons:     "id",
	TableQuizzes:     "id",
	TableQuestions:   "id",
	TableAttempts:    "id",
	TableCompletions: "id",
	TableJobs:        "id",
	TableFavorites:   "user_email,job_id",
	TableBudgetGoals: "user_email",
	TableProgress:    "user_email",
	TableAlerts:      "id",
	TableAlertReads:  "educator_email,alert_id",
	TableActivityLog: "id",
	TableWallet:      "id",
	TableQuizRewards: "user_email,question_id",
}

// AllTables returns every table name in a stable order.
func AllTables() []string {
	return []string{
		TableLessons, TableQuizzes, TableQuestions, TableAttempts,
		TableCompletions, TableJobs, TableFavorites, TableBudgetGoals,
		TableProgress, TableAlerts, TableAlertReads, TableActivityLog,
		TableWallet, TableQuizRewards,
	}
}
