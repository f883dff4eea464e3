package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stackwarden/warden/api"
	"github.com/stackwarden/warden/internal/audit"
	"github.com/stackwarden/warden/internal/policy"
	"github.com/stackwarden/warden/internal/provider"
)

type stubEngine struct {
	decision *api.PolicyDecision
	err      error
	calls    int
}

func (e *stubEngine) Evaluate(_ context.Context, _ *policy.EvalInput) (*api.PolicyDecision, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.decision, nil
}

func (e *stubEngine) LookupRule(_, _, _ string) (policy.BaselineRule, bool) {
	return policy.BaselineRule{}, false
}

func (e *stubEngine) Reload(context.Context) error { return nil }

type memStore struct {
	records []*api.AuditRecord
}

func (s *memStore) Write(_ context.Context, r *api.AuditRecord) error {
	s.records = append(s.records, r)
	return nil
}

func (s *memStore) Query(context.Context, api.QueryFilter) ([]*api.AuditRecord, error) {
	return s.records, nil
}

func (s *memStore) Stats(context.Context) (*api.AuditStats, error) { return &api.AuditStats{}, nil }

func (s *memStore) Close() error { return nil }

type countingHandler struct {
	calls  int
	result any
	err    error
}

func (h *countingHandler) fn(_ context.Context, _ map[string]any) (any, error) {
	h.calls++
	return h.result, h.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExecutor(engine policy.Engine) (*Executor, *memStore) {
	store := &memStore{}
	rec := audit.NewRecorder(store, testLogger())
	plans := NewPlanStore(time.Minute)
	return New(engine, rec, nil, plans, testLogger()), store
}

func allowEngine() *stubEngine {
	return &stubEngine{decision: &api.PolicyDecision{Decision: api.DecisionAllow, Rule: "allow-all"}}
}

func TestExecute_AllowedAndConfirmed(t *testing.T) {
	x, store := newTestExecutor(allowEngine())
	h := &countingHandler{result: map[string]any{"name": "api"}}

	out := x.Execute(context.Background(), Request{
		Action:  "webapp.create",
		Args:    map[string]any{"group": "prod", "name": "api"},
		Confirm: true,
	}, h.fn, Options{})

	if out.Status != api.StatusDone {
		t.Fatalf("expected done, got %s (err %v)", out.Status, out.Err)
	}
	if h.calls != 1 {
		t.Errorf("expected handler called once, got %d", h.calls)
	}
	if len(store.records) != 1 {
		t.Errorf("expected exactly one audit record, got %d", len(store.records))
	}
	if store.records[0].Status != api.StatusDone {
		t.Errorf("audit record status = %s, want done", store.records[0].Status)
	}
}

func TestExecute_DenyBlocksWithoutHandlerCall(t *testing.T) {
	engine := &stubEngine{decision: &api.PolicyDecision{
		Decision: api.DecisionDeny,
		Rule:     "deny-frozen-group",
		Reasons:  []string{"group is frozen"},
	}}
	x, store := newTestExecutor(engine)
	h := &countingHandler{}

	out := x.Execute(context.Background(), Request{
		Action:  "webapp.create",
		Args:    map[string]any{"group": "frozen"},
		Confirm: true,
	}, h.fn, Options{})

	if out.Status != api.StatusBlocked {
		t.Fatalf("expected blocked, got %s", out.Status)
	}
	if h.calls != 0 {
		t.Errorf("handler must not run on deny, ran %d times", h.calls)
	}
	if out.Decision == nil || out.Decision.Rule != "deny-frozen-group" {
		t.Errorf("expected deny decision in outcome, got %+v", out.Decision)
	}
	if len(store.records) != 1 || store.records[0].Status != api.StatusBlocked {
		t.Errorf("expected one blocked audit record, got %+v", store.records)
	}
}

func TestExecute_EngineFailureFailsClosed(t *testing.T) {
	engine := &stubEngine{err: errors.New("policy backend down")}
	x, store := newTestExecutor(engine)
	h := &countingHandler{}

	out := x.Execute(context.Background(), Request{
		Action:  "storage.create",
		Confirm: true,
	}, h.fn, Options{})

	if out.Status != api.StatusBlocked {
		t.Fatalf("expected blocked on engine failure, got %s", out.Status)
	}
	if out.Err == nil || out.Err.Type != api.ErrTypePolicyUnavailable {
		t.Errorf("expected PolicyUnavailable error, got %+v", out.Err)
	}
	if h.calls != 0 {
		t.Errorf("handler must not run when engine is unavailable, ran %d times", h.calls)
	}
	if len(store.records) != 1 {
		t.Errorf("expected exactly one audit record, got %d", len(store.records))
	}
}

func TestExecute_UnconfirmedHeldAsPending(t *testing.T) {
	x, store := newTestExecutor(allowEngine())
	h := &countingHandler{}

	out := x.Execute(context.Background(), Request{
		Action: "webapp.create",
		Args:   map[string]any{"group": "prod", "name": "api"},
	}, h.fn, Options{})

	if out.Status != api.StatusPending {
		t.Fatalf("expected pending without confirm, got %s", out.Status)
	}
	if h.calls != 0 {
		t.Errorf("handler must not run while held, ran %d times", h.calls)
	}
	if out.Plan == nil || out.Plan.ID == "" {
		t.Fatal("expected a stored plan with ID")
	}
	if !strings.Contains(out.Plan.FollowUp, "confirm=true") {
		t.Errorf("follow-up should tell the caller how to confirm, got %q", out.Plan.FollowUp)
	}
	if len(store.records) != 1 || store.records[0].Status != api.StatusPending {
		t.Errorf("expected one pending audit record, got %+v", store.records)
	}
}

func TestExecute_DryRunNeverExecutes(t *testing.T) {
	x, _ := newTestExecutor(allowEngine())
	h := &countingHandler{}

	out := x.Execute(context.Background(), Request{
		Action:  "webapp.create",
		Confirm: true,
		DryRun:  true,
	}, h.fn, Options{})

	if out.Status != api.StatusPending {
		t.Fatalf("expected pending in dry run, got %s", out.Status)
	}
	if h.calls != 0 {
		t.Errorf("handler must not run in dry run, ran %d times", h.calls)
	}
	if out.Plan.Mode != api.ModeDryRun {
		t.Errorf("expected dryRun plan mode, got %s", out.Plan.Mode)
	}
}

func TestExecute_WarnExecutesWithWarnings(t *testing.T) {
	engine := &stubEngine{decision: &api.PolicyDecision{
		Decision: api.DecisionWarn,
		Rule:     "warn-public-network",
		Reasons:  []string{"public network access stays open"},
	}}
	x, _ := newTestExecutor(engine)
	h := &countingHandler{result: "ok"}

	out := x.Execute(context.Background(), Request{
		Action:  "storage.create",
		Confirm: true,
	}, h.fn, Options{})

	if out.Status != api.StatusDone {
		t.Fatalf("expected done on warn, got %s", out.Status)
	}
	if h.calls != 1 {
		t.Errorf("expected handler to run on warn, ran %d times", h.calls)
	}
	if len(out.Warnings) == 0 {
		t.Fatal("expected warnings carried into outcome")
	}
	if !strings.Contains(out.Warnings[0], "public network") {
		t.Errorf("expected rule reason in warning text, got %q", out.Warnings[0])
	}
}

func TestExecute_HandlerErrorNormalized(t *testing.T) {
	x, store := newTestExecutor(allowEngine())
	h := &countingHandler{err: &provider.Error{Code: "TooManyRequests", StatusCode: 429}}

	out := x.Execute(context.Background(), Request{
		Action:  "webapp.create",
		Confirm: true,
	}, h.fn, Options{})

	if out.Status != api.StatusError {
		t.Fatalf("expected error status, got %s", out.Status)
	}
	if out.Err == nil || !out.Err.Throttled || !out.Err.Retryable {
		t.Errorf("expected throttled retryable error, got %+v", out.Err)
	}
	if len(store.records) != 1 || store.records[0].Status != api.StatusError {
		t.Errorf("expected one error audit record, got %+v", store.records)
	}
}

func TestExecute_SuccessPredicateRejectsResult(t *testing.T) {
	x, _ := newTestExecutor(allowEngine())
	h := &countingHandler{result: map[string]any{"provisioningState": "Failed"}}

	out := x.Execute(context.Background(), Request{
		Action:  "webapp.create",
		Confirm: true,
	}, h.fn, Options{
		Success: func(result any) error {
			res, _ := result.(map[string]any)
			if res["provisioningState"] != "Succeeded" {
				return errors.New("provisioning did not succeed")
			}
			return nil
		},
	})

	if out.Status != api.StatusError {
		t.Fatalf("expected error when success predicate rejects, got %s", out.Status)
	}
	if out.Err == nil || out.Err.Type != api.ErrTypeProvider {
		t.Errorf("expected provider error, got %+v", out.Err)
	}
}

func TestExecute_VerificationFailureDowngrades(t *testing.T) {
	x, store := newTestExecutor(allowEngine())
	h := &countingHandler{result: "created"}

	out := x.Execute(context.Background(), Request{
		Action:  "webapp.create",
		Confirm: true,
	}, h.fn, Options{
		Verify: func(context.Context, any) (bool, error) { return false, nil },
	})

	if out.Status != api.StatusError {
		t.Fatalf("expected error on failed verification, got %s", out.Status)
	}
	if out.Err == nil || out.Err.Type != api.ErrTypeVerificationFailed {
		t.Errorf("expected VerificationFailed, got %+v", out.Err)
	}
	// The mutation is not rolled back; the result stays visible.
	if out.Result != "created" {
		t.Errorf("expected result preserved, got %v", out.Result)
	}
	if len(store.records) != 1 {
		t.Errorf("expected exactly one audit record, got %d", len(store.records))
	}
}

func TestExecute_ThrottledByLimiter(t *testing.T) {
	store := &memStore{}
	rec := audit.NewRecorder(store, testLogger())
	limiter := NewLimiter(RateLimitConfig{
		Global: &RateLimit{Max: 1, Window: time.Minute},
	})
	x := New(allowEngine(), rec, limiter, nil, testLogger())
	h := &countingHandler{result: "ok"}

	first := x.Execute(context.Background(), Request{Action: "webapp.create", Confirm: true}, h.fn, Options{})
	if first.Status != api.StatusDone {
		t.Fatalf("first call should pass, got %s", first.Status)
	}

	second := x.Execute(context.Background(), Request{Action: "webapp.create", Confirm: true}, h.fn, Options{})
	if second.Status != api.StatusError {
		t.Fatalf("second call should be throttled, got %s", second.Status)
	}
	if second.Err == nil || second.Err.Type != api.ErrTypeThrottled {
		t.Errorf("expected Throttled error, got %+v", second.Err)
	}
	if h.calls != 1 {
		t.Errorf("throttled call must not reach the handler, calls %d", h.calls)
	}
}

func TestConfirm_ResumesHeldPlan(t *testing.T) {
	x, store := newTestExecutor(allowEngine())
	h := &countingHandler{result: "ok"}

	held := x.Execute(context.Background(), Request{
		Action: "webapp.create",
		Args:   map[string]any{"group": "prod", "name": "api"},
	}, h.fn, Options{})
	if held.Status != api.StatusPending {
		t.Fatalf("expected pending, got %s", held.Status)
	}

	out, err := x.Confirm(context.Background(), held.Plan.ID, h.fn, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != api.StatusDone {
		t.Fatalf("expected done after confirm, got %s", out.Status)
	}
	if h.calls != 1 {
		t.Errorf("expected one execution, got %d", h.calls)
	}
	// Held attempt plus confirmed execution: two audited attempts.
	if len(store.records) != 2 {
		t.Errorf("expected 2 audit records, got %d", len(store.records))
	}

	if _, err := x.Confirm(context.Background(), held.Plan.ID, h.fn, Options{}); !errors.Is(err, ErrPlanResolved) {
		t.Errorf("expected ErrPlanResolved on second confirm, got %v", err)
	}
}
