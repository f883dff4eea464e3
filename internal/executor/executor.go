// Package executor implements the governed action lifecycle: policy
// preflight, hold/confirm, execution, post-condition verification, and
// audit-before-respond. No mutating handler runs without a recorded allow
// (or warn) decision and an explicit confirmation.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/stackwarden/warden/api"
	"github.com/stackwarden/warden/internal/audit"
	"github.com/stackwarden/warden/internal/policy"
	"github.com/stackwarden/warden/internal/provider"
)

// Request is one proposed mutating call.
type Request struct {
	Action  string
	Args    map[string]any
	Confirm bool
	DryRun  bool
	Context map[string]any
}

// Handler performs the real mutation.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// VerifyFunc re-reads the affected resource and reports whether the
// post-condition holds.
type VerifyFunc func(ctx context.Context, result any) (bool, error)

// SuccessFunc rejects "accepted but not actually succeeded" handler results.
// Returning an error marks the execution failed even though the call did not
// throw.
type SuccessFunc func(result any) error

// Options tune one governed execution.
type Options struct {
	Verify  VerifyFunc
	Success SuccessFunc
}

// Outcome is the caller-visible result of a governed action.
type Outcome struct {
	Status   api.OutcomeStatus   `json:"status"`
	Plan     *api.Plan           `json:"plan,omitempty"`
	Result   any                 `json:"result,omitempty"`
	Decision *api.PolicyDecision `json:"governance,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
	Err      *api.ActionError    `json:"error,omitempty"`
}

// Executor wraps arbitrary action handlers with the governance lifecycle.
type Executor struct {
	engine   policy.Engine
	recorder *audit.Recorder
	limiter  *Limiter
	plans    *PlanStore
	logger   *slog.Logger
}

// New creates an Executor. limiter and plans may be nil to disable rate
// limiting and plan resumption.
func New(engine policy.Engine, recorder *audit.Recorder, limiter *Limiter, plans *PlanStore, logger *slog.Logger) *Executor {
	return &Executor{
		engine:   engine,
		recorder: recorder,
		limiter:  limiter,
		plans:    plans,
		logger:   logger,
	}
}

// Execute runs one request through the lifecycle. Every path appends exactly
// one audit record before returning; no raw error ever escapes.
func (x *Executor) Execute(ctx context.Context, req Request, handler Handler, opts Options) *Outcome {
	started := time.Now()

	finish := func(out *Outcome) *Outcome {
		x.recorder.Record(ctx, audit.Entry{
			Action:   req.Action,
			Args:     req.Args,
			Status:   out.Status,
			Decision: out.Decision,
			Result:   out.Result,
			Err:      out.Err,
			Started:  started,
		})
		return out
	}

	// Step 1: policy preflight. An unreachable engine blocks: fail closed.
	decision, err := x.engine.Evaluate(ctx, &policy.EvalInput{
		Action:    req.Action,
		Arguments: req.Args,
		Context:   req.Context,
	})
	if err != nil {
		x.logger.Error("policy engine unavailable", "action", req.Action, "error", err)
		return finish(&Outcome{
			Status: api.StatusBlocked,
			Plan:   x.plan(req, nil),
			Err: &api.ActionError{
				Type:    api.ErrTypePolicyUnavailable,
				Message: "policy evaluation unavailable; action blocked",
			},
		})
	}

	if decision.Decision == api.DecisionDeny {
		return finish(&Outcome{
			Status:   api.StatusBlocked,
			Plan:     x.plan(req, decision),
			Decision: decision,
		})
	}

	var warnings []string
	if decision.Decision == api.DecisionWarn {
		warnings = warningText(decision)
	}

	// Step 2: hold check. Unconfirmed requests never mutate state.
	if req.DryRun || !req.Confirm {
		plan := x.plan(req, decision)
		if x.plans != nil {
			plan.ID = x.plans.Put(req, decision)
		}
		plan.FollowUp = followUp(req, plan.ID)
		return finish(&Outcome{
			Status:   api.StatusPending,
			Plan:     plan,
			Decision: decision,
			Warnings: warnings,
		})
	}

	// Rate limit mutating executions.
	if x.limiter != nil {
		if ok, retryAfter := x.limiter.Allow(req.Action); !ok {
			return finish(&Outcome{
				Status:   api.StatusError,
				Decision: decision,
				Warnings: warnings,
				Err: &api.ActionError{
					Type:         api.ErrTypeThrottled,
					Message:      fmt.Sprintf("rate limit exceeded for action %q", req.Action),
					Throttled:    true,
					Retryable:    true,
					RetryAfterMs: retryAfter.Milliseconds(),
				},
			})
		}
	}

	// Step 3: execute.
	result, err := handler(ctx, req.Args)
	if err != nil {
		return finish(&Outcome{
			Status:   api.StatusError,
			Decision: decision,
			Warnings: warnings,
			Err:      provider.Normalize(err),
		})
	}

	if opts.Success != nil {
		if err := opts.Success(result); err != nil {
			return finish(&Outcome{
				Status:   api.StatusError,
				Decision: decision,
				Result:   result,
				Warnings: warnings,
				Err: &api.ActionError{
					Type:    api.ErrTypeProvider,
					Message: "handler reported an unsuccessful result: " + err.Error(),
				},
			})
		}
	}

	// Step 4: verify. A failed post-condition downgrades a done execution;
	// the mutation is not rolled back.
	if opts.Verify != nil {
		ok, err := opts.Verify(ctx, result)
		if err != nil {
			return finish(&Outcome{
				Status:   api.StatusError,
				Decision: decision,
				Result:   result,
				Warnings: warnings,
				Err: &api.ActionError{
					Type:    api.ErrTypeVerificationFailed,
					Message: "verification errored: " + err.Error(),
				},
			})
		}
		if !ok {
			return finish(&Outcome{
				Status:   api.StatusError,
				Decision: decision,
				Result:   result,
				Warnings: warnings,
				Err: &api.ActionError{
					Type:    api.ErrTypeVerificationFailed,
					Message: "post-condition check failed after successful call",
				},
			})
		}
	}

	// Step 5: audit happens in finish, before the caller sees the result.
	return finish(&Outcome{
		Status:   api.StatusDone,
		Decision: decision,
		Result:   result,
		Warnings: warnings,
	})
}

// Confirm resumes a previously held plan with confirmation set.
func (x *Executor) Confirm(ctx context.Context, planID string, handler Handler, opts Options) (*Outcome, error) {
	if x.plans == nil {
		return nil, ErrPlanNotFound
	}
	req, err := x.plans.Take(planID)
	if err != nil {
		return nil, err
	}
	req.Confirm = true
	req.DryRun = false
	return x.Execute(ctx, req, handler, opts), nil
}

func (x *Executor) plan(req Request, decision *api.PolicyDecision) *api.Plan {
	mode := api.ModeReview
	if req.DryRun {
		mode = api.ModeDryRun
	} else if req.Confirm {
		mode = api.ModeExecute
	}
	return &api.Plan{
		Action:    req.Action,
		Arguments: req.Args,
		Mode:      mode,
		Decision:  decision,
	}
}

// followUp renders a literal, copy-pasteable instruction that reproduces the
// same call with confirm=true.
func followUp(req Request, planID string) string {
	if planID != "" {
		return fmt.Sprintf("resubmit with confirm=true and plan_id=%q to execute this action", planID)
	}
	args, err := json.Marshal(req.Args)
	if err != nil {
		args = []byte("{}")
	}
	return fmt.Sprintf("resubmit {action:%q, args:%s, confirm:true} to execute this action", req.Action, args)
}

func warningText(decision *api.PolicyDecision) []string {
	var out []string
	for _, r := range decision.Reasons {
		out = append(out, "warning: "+r)
	}
	for _, s := range decision.Suggestions {
		out = append(out, "suggestion: "+s)
	}
	if len(out) == 0 {
		out = []string{"policy warned on this action; review before relying on it"}
	}
	return out
}
