package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// EntryKind is the direction of a wallet entry. Amounts are never signed.
type EntryKind string

const (
	KindIncome  EntryKind = "INCOME"
	KindExpense EntryKind = "EXPENSE"
	KindSavings EntryKind = "SAVINGS"
	KindBudget  EntryKind = "BUDGET"
)

// RewardCategory is the income category used for quiz reward coins.
// A manually entered "Education" income line counts as coins too.
const RewardCategory = "Education"

// ErrNegativeAmount is returned by Validate for amounts below zero.
var ErrNegativeAmount = errors.New("amount must not be negative")

var validate = validator.New()

// LedgerEntry is one cash-flow line in a user's wallet.
type LedgerEntry struct {
	ID        string          `json:"id,omitempty"`
	UserEmail string          `json:"user_email" validate:"required,email"`
	Kind      EntryKind       `json:"type" validate:"required,oneof=INCOME EXPENSE SAVINGS BUDGET"`
	Category  string          `json:"category" validate:"required,max=64"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note"`
	Date      Date            `json:"date"`
	CreatedAt time.Time       `json:"created_at"`
}

// Validate checks the entry before it is sent anywhere.
func (e LedgerEntry) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("ledger entry: %w", err)
	}
	if e.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// ParseKind accepts any casing of a kind name.
func ParseKind(s string) (EntryKind, error) {
	k := EntryKind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case KindIncome, KindExpense, KindSavings, KindBudget:
		return k, nil
	}
	return "", fmt.Errorf("unknown entry kind %q", s)
}

// BudgetGoal is the single budget target a user keeps.
type BudgetGoal struct {
	UserEmail     string          `json:"user_email" validate:"required,email"`
	BudgetLimit   decimal.Decimal `json:"current_budget"`
	TargetSavings decimal.Decimal `json:"target_savings"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Validate checks the goal before an upsert.
func (g BudgetGoal) Validate() error {
	if err := validate.Struct(g); err != nil {
		return fmt.Errorf("budget goal: %w", err)
	}
	if g.BudgetLimit.IsNegative() || g.TargetSavings.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// SumKind totals the amounts of the entries with the given kind.
// An empty category matches all categories.
func SumKind(entries []LedgerEntry, kind EntryKind, category string) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.Kind != kind {
			continue
		}
		if category != "" && !strings.EqualFold(e.Category, category) {
			continue
		}
		total = total.Add(e.Amount)
	}
	return total
}
