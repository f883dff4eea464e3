package api

// Decision represents the outcome of a policy evaluation.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionWarn  Decision = "warn"
	DecisionDeny  Decision = "deny"
)

// OutcomeStatus is the terminal status of a governed action.
type OutcomeStatus string

const (
	StatusBlocked OutcomeStatus = "blocked"
	StatusPending OutcomeStatus = "pending"
	StatusDone    OutcomeStatus = "done"
	StatusError   OutcomeStatus = "error"
)

// Mode describes how a governed action was requested to run.
type Mode string

const (
	ModeDryRun  Mode = "dryRun"
	ModeReview  Mode = "review"
	ModeExecute Mode = "execute"
)

// PolicyDecision is the result of evaluating one action request.
type PolicyDecision struct {
	Decision    Decision `json:"decision"`
	Rule        string   `json:"rule,omitempty"`
	Reasons     []string `json:"reasons,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Controls    []string `json:"controls,omitempty"`
}

// Plan describes a held, not-yet-executed action.
type Plan struct {
	ID        string          `json:"id,omitempty"`
	Action    string          `json:"action"`
	Arguments map[string]any  `json:"arguments,omitempty"`
	Mode      Mode            `json:"mode"`
	Decision  *PolicyDecision `json:"decision,omitempty"`

	// FollowUp is a literal instruction the caller can resubmit to
	// confirm and execute this plan.
	FollowUp string `json:"follow_up,omitempty"`
}

// ErrorType classifies a normalized failure.
type ErrorType string

const (
	ErrTypeCredential         ErrorType = "CredentialError"
	ErrTypeHTTP               ErrorType = "HttpError"
	ErrTypeProvider           ErrorType = "ProviderError"
	ErrTypePolicyUnavailable  ErrorType = "PolicyUnavailable"
	ErrTypeVerificationFailed ErrorType = "VerificationFailed"
	ErrTypeThrottled          ErrorType = "Throttled"
)

// ActionError is the structured form every failure is reduced to before it
// crosses a component boundary. Raw provider exceptions never escape.
type ActionError struct {
	Type         ErrorType `json:"type"`
	Code         string    `json:"code,omitempty"`
	Message      string    `json:"message"`
	StatusCode   int       `json:"status_code,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	Throttled    bool      `json:"throttled,omitempty"`
	Retryable    bool      `json:"retryable,omitempty"`
	RetryAfterMs int64     `json:"retry_after_ms,omitempty"`
}

func (e *ActionError) Error() string {
	if e.Code != "" {
		return string(e.Type) + " " + e.Code + ": " + e.Message
	}
	return string(e.Type) + ": " + e.Message
}

// Severity ranks a finding.
type Severity string

const (
	SeverityHigh    Severity = "high"
	SeverityMedium  Severity = "medium"
	SeverityLow     Severity = "low"
	SeverityInfo    Severity = "info"
	SeverityUnknown Severity = "unknown"
)

var severityRank = map[Severity]int{
	SeverityHigh:    4,
	SeverityMedium:  3,
	SeverityLow:     2,
	SeverityInfo:    1,
	SeverityUnknown: 0,
}

// Rank returns the ordering weight of a severity. Unrecognized severities
// rank alongside unknown.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Normalize maps empty or unrecognized severities to unknown.
func (s Severity) Normalize() Severity {
	if _, ok := severityRank[s]; !ok {
		return SeverityUnknown
	}
	return s
}

// ResourceRef identifies one provisioned resource.
type ResourceRef struct {
	Group string `json:"group"`
	Name  string `json:"name"`
}

func (r ResourceRef) String() string {
	return r.Group + "/" + r.Name
}

// Finding is one detected deviation from a baseline rule.
type Finding struct {
	Code     string         `json:"code"`
	Severity Severity       `json:"severity"`
	Kind     string         `json:"kind,omitempty"`
	Resource ResourceRef    `json:"resource"`
	Meta     map[string]any `json:"meta,omitempty"`
	Suggest  string         `json:"suggest,omitempty"`
	Controls []string       `json:"controls,omitempty"`
}

// ScanSummary buckets findings by severity.
type ScanSummary struct {
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"bySeverity"`
}

// ScanFilters records the filtering applied to a scan so the filtering
// itself is auditable.
type ScanFilters struct {
	MinSeverity           Severity `json:"minSeverity,omitempty"`
	ExcludeFindingsByCode []string `json:"excludeFindingsByCode,omitempty"`
	Dropped               int      `json:"dropped"`
}

// ScanReport is the result of a baseline scan.
type ScanReport struct {
	Status   string        `json:"status"`
	Profile  string        `json:"profile"`
	Findings []Finding     `json:"findings"`
	Summary  ScanSummary   `json:"summary"`
	Filters  ScanFilters   `json:"filters"`
	Errors   []ActionError `json:"errors,omitempty"`
}

// RemediationStep is one atomic corrective action.
type RemediationStep struct {
	Action    string         `json:"action"`
	Arguments map[string]any `json:"arguments"`
}

// StepResult is the outcome of applying one remediation step.
type StepResult struct {
	Step   RemediationStep `json:"step"`
	OK     bool            `json:"ok"`
	Result any             `json:"result,omitempty"`
	Error  *ActionError    `json:"error,omitempty"`
}

// RemediationReport aggregates a remediation run.
type RemediationReport struct {
	PlannedSteps int           `json:"plannedSteps"`
	Applied      int           `json:"applied"`
	Failed       int           `json:"failed"`
	Errors       []ActionError `json:"errors,omitempty"`
	Suggestions  []string      `json:"suggestions,omitempty"`
}
