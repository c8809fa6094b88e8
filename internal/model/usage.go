package model

import (
	"time"

	"github.com/google/uuid"
)

// GlobalUsageScope is the singleton scope key for the service-wide daily
// token budget.
const GlobalUsageScope = "global"

// UsageCounter is one day's AI-token consumption for a scope (a user id or
// the global scope). Exactly one row exists per (scope, date); rollover is
// implicit because a new day has no row yet.
type UsageCounter struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ScopeKey     string    `db:"scope_key" json:"scope_key"`
	UsageDate    time.Time `db:"usage_date" json:"usage_date"`
	TokensUsed   int       `db:"tokens_used" json:"tokens_used"`
	RequestCount int       `db:"request_count" json:"request_count"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Remaining returns the unused portion of limit, never negative.
func (u *UsageCounter) Remaining(limit int) int {
	if r := limit - u.TokensUsed; r > 0 {
		return r
	}
	return 0
}

// QuotaInfo is the caller-facing snapshot of a user's daily budget.
type QuotaInfo struct {
	UsedToday    int `json:"used_today"`
	Limit        int `json:"limit"`
	Remaining    int `json:"remaining"`
	RequestCount int `json:"request_count"`
}
