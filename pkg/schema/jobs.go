package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// JobOpportunity is a job board listing. Written by bulk sync, read mostly.
type JobOpportunity struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Company      string           `json:"company"`
	Location     string           `json:"location"`
	Locality     string           `json:"locality,omitempty"`
	URL          string           `json:"url,omitempty"`
	PublishedAt  time.Time        `json:"published_at"`
	PostedLabel  string           `json:"posted_label,omitempty"`
	SalaryMin    *decimal.Decimal `json:"salary_min,omitempty"`
	SalaryMax    *decimal.Decimal `json:"salary_max,omitempty"`
	SalaryUnit   string           `json:"salary_unit,omitempty"`
	Category     string           `json:"category,omitempty"`
	Skills       []string         `json:"skills,omitempty"`
	WorkingHours string           `json:"working_hours,omitempty"`
	SafetyNote   string           `json:"safety_note,omitempty"`
	ContactNote  string           `json:"contact_note,omitempty"`
}

// Favorite is a job bookmark. It has no identity beyond the pair.
type Favorite struct {
	UserEmail string    `json:"user_email"`
	JobID     string    `json:"job_id"`
	CreatedAt time.Time `json:"created_at"`
}
