package api

import (
	"encoding/json"
	"time"
)

// AuditRecord is the durable, redacted trace of one governed action attempt.
type AuditRecord struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	Action         string          `json:"action"`
	IdempotencyKey string          `json:"idempotency_key"`
	Status         OutcomeStatus   `json:"status"`
	Decision       Decision        `json:"decision,omitempty"`
	Rule           string          `json:"rule,omitempty"`
	Request        json.RawMessage `json:"request,omitempty"`
	Response       json.RawMessage `json:"response,omitempty"`
	Error          string          `json:"error,omitempty"`
	Duration       time.Duration   `json:"duration,omitempty"`
}

// QueryFilter defines criteria for querying audit records.
type QueryFilter struct {
	Since   time.Time     `json:"since,omitempty"`
	Until   time.Time     `json:"until,omitempty"`
	Action  string        `json:"action,omitempty"`
	Status  OutcomeStatus `json:"status,omitempty"`
	Limit   int           `json:"limit,omitempty"`
	Offset  int           `json:"offset,omitempty"`
}

// AuditStats provides aggregate statistics over recorded actions.
type AuditStats struct {
	TotalRequests int            `json:"total_requests"`
	BlockedCount  int            `json:"blocked_count"`
	PendingCount  int            `json:"pending_count"`
	DoneCount     int            `json:"done_count"`
	ErrorCount    int            `json:"error_count"`
	ByAction      map[string]int `json:"by_action"`
	ByDecision    map[string]int `json:"by_decision"`
}
