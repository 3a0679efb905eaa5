// Package schema defines the records exchanged between the finsync cache,
// the encrypted wallet files and the remote table service.
package schema

import (
	"strings"
	"time"
)

// Role distinguishes the two kinds of accounts that share a device.
type Role string

const (
	RoleStudent  Role = "student"
	RoleEducator Role = "educator"
)

// Identity is the active user as seen by the cache.
type Identity struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// NormalizeEmail case-folds an email so it can be used as a cache or filter key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Normalized returns a copy of the identity with a case-folded email.
// An empty role is treated as student.
func (i Identity) Normalized() Identity {
	role := i.Role
	if role == "" {
		role = RoleStudent
	}
	return Identity{Email: NormalizeEmail(i.Email), Role: role}
}

// Key is the wallet partition key: normalized email plus role.
func (i Identity) Key() string {
	n := i.Normalized()
	return n.Email + "|" + string(n.Role)
}

// Known reports whether the identity carries an email at all.
func (i Identity) Known() bool {
	return NormalizeEmail(i.Email) != ""
}

// ActivityLogEntry is one row of the append-only student activity log.
type ActivityLogEntry struct {
	ID           string         `json:"id,omitempty"`
	UserEmail    string         `json:"user_email"`
	ActivityType string         `json:"activity_type"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Activity types written to the log.
const (
	ActivityJobApplication = "job_application"
	ActivityQuizCompleted  = "quiz_completed"
	ActivityRewardCredited = "reward_credited"
)
