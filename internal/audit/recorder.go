package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/stackwarden/warden/api"
	"github.com/stackwarden/warden/internal/redact"
)

// Recorder builds redacted audit records and appends them to a store.
// Append failures are swallowed: the audit trail must never break the
// governed action itself. Dropped writes are counted for alerting.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	dropped atomic.Int64
}

// NewRecorder creates a Recorder over the given store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Entry carries everything the Recorder needs for one record.
type Entry struct {
	Action   string
	Args     map[string]any
	Status   api.OutcomeStatus
	Decision *api.PolicyDecision
	Result   any
	Err      *api.ActionError
	Started  time.Time
}

// Record redacts the entry and appends exactly one audit record.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	record := &api.AuditRecord{
		Timestamp:      e.Started,
		Action:         e.Action,
		IdempotencyKey: redact.IdempotencyKey(e.Action, e.Args),
		Status:         e.Status,
	}
	if e.Decision != nil {
		record.Decision = e.Decision.Decision
		record.Rule = e.Decision.Rule
	}
	if !e.Started.IsZero() {
		record.Duration = time.Since(e.Started)
	}
	record.Request = marshalRedacted(e.Args)
	if e.Result != nil {
		record.Response = marshalRedacted(e.Result)
	}
	if e.Err != nil {
		record.Error = redact.String(e.Err.Error())
	}

	if err := r.store.Write(ctx, record); err != nil {
		r.dropped.Add(1)
		r.logger.Error("audit write failed", "action", e.Action, "error", err)
	}
}

// Dropped reports how many records failed to persist.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func marshalRedacted(v any) json.RawMessage {
	data, err := json.Marshal(redact.Value(normalize(v)))
	if err != nil {
		return nil
	}
	return data
}

// normalize round-trips arbitrary result values through JSON so the redaction
// walk sees plain maps and slices rather than concrete provider types.
func normalize(v any) any {
	switch v.(type) {
	case map[string]any, []any, string, nil:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
