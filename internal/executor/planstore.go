package executor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stackwarden/warden/api"
)

// ErrPlanNotFound is returned when a plan ID does not exist.
var ErrPlanNotFound = errors.New("plan not found")

// ErrPlanExpired is returned when a plan outlived its TTL before
// confirmation.
var ErrPlanExpired = errors.New("plan expired")

// ErrPlanResolved is returned on a second confirmation of the same plan.
// Confirmation is consume-once: a plan cannot execute twice.
var ErrPlanResolved = errors.New("plan already resolved")

type planState string

const (
	planPending  planState = "pending"
	planResolved planState = "resolved"
	planExpired  planState = "expired"
)

type heldPlan struct {
	id        string
	createdAt time.Time
	expiresAt time.Time
	req       Request
	decision  *api.PolicyDecision
	state     planState
}

// planRecord is the serialized form of a held plan.
type planRecord struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	ExpiresAt time.Time           `json:"expires_at"`
	State     planState           `json:"state"`
	Action    string              `json:"action"`
	Args      map[string]any      `json:"args,omitempty"`
	Context   map[string]any      `json:"context,omitempty"`
	Decision  *api.PolicyDecision `json:"decision,omitempty"`
}

func (r planRecord) plan() *heldPlan {
	return &heldPlan{
		id:        r.ID,
		createdAt: r.CreatedAt,
		expiresAt: r.ExpiresAt,
		state:     r.State,
		req: Request{
			Action:  r.Action,
			Args:    r.Args,
			Context: r.Context,
		},
		decision: r.Decision,
	}
}

func record(p *heldPlan) planRecord {
	return planRecord{
		ID:        p.id,
		CreatedAt: p.createdAt,
		ExpiresAt: p.expiresAt,
		State:     p.state,
		Action:    p.req.Action,
		Args:      p.req.Args,
		Context:   p.req.Context,
		Decision:  p.decision,
	}
}

// PlanStore holds Pending outcomes so a caller can confirm them by ID
// instead of resubmitting the full request. With a backing file, held plans
// survive across process invocations.
type PlanStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	path  string
	plans map[string]*heldPlan
}

// NewPlanStore creates an in-memory PlanStore whose plans expire after ttl.
func NewPlanStore(ttl time.Duration) *PlanStore {
	return &PlanStore{
		ttl:   ttl,
		plans: make(map[string]*heldPlan),
	}
}

// LoadPlanStore opens a file-backed PlanStore. Only pending, unexpired plans
// are loaded; a missing file starts empty.
func LoadPlanStore(path string, ttl time.Duration) (*PlanStore, error) {
	s := &PlanStore{
		ttl:   ttl,
		path:  path,
		plans: make(map[string]*heldPlan),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading plan store: %w", err)
	}
	var records []planRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing plan store: %w", err)
	}

	now := time.Now()
	for _, r := range records {
		if r.State != planPending || now.After(r.ExpiresAt) {
			continue
		}
		s.plans[r.ID] = r.plan()
	}
	return s, nil
}

// Put stores a held request and returns its plan ID.
func (s *PlanStore) Put(req Request, decision *api.PolicyDecision) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.sweep(now)

	p := &heldPlan{
		id:        uuid.NewString(),
		createdAt: now,
		expiresAt: now.Add(s.ttl),
		req:       req,
		decision:  decision,
		state:     planPending,
	}
	s.plans[p.id] = p
	s.persist()
	return p.id
}

// Take resolves a pending plan and returns its request. Taking is
// idempotent-safe: a resolved plan returns ErrPlanResolved, an expired one
// ErrPlanExpired.
func (s *PlanStore) Take(id string) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.plans[id]
	if !ok {
		return Request{}, ErrPlanNotFound
	}
	switch p.state {
	case planResolved:
		return Request{}, ErrPlanResolved
	case planExpired:
		return Request{}, ErrPlanExpired
	}
	if time.Now().After(p.expiresAt) {
		p.state = planExpired
		s.persist()
		return Request{}, ErrPlanExpired
	}

	p.state = planResolved
	s.persist()
	return p.req, nil
}

// Pending lists currently held, unexpired plans.
func (s *PlanStore) Pending() []*api.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var out []*api.Plan
	for _, p := range s.plans {
		if p.state != planPending {
			continue
		}
		if now.After(p.expiresAt) {
			p.state = planExpired
			continue
		}
		out = append(out, &api.Plan{
			ID:        p.id,
			Action:    p.req.Action,
			Arguments: p.req.Args,
			Mode:      api.ModeReview,
			Decision:  p.decision,
		})
	}
	return out
}

// sweep drops terminal and expired plans so the map stays bounded. The caller
// holds the lock.
func (s *PlanStore) sweep(now time.Time) {
	for id, p := range s.plans {
		if p.state != planPending || now.After(p.expiresAt) {
			delete(s.plans, id)
		}
	}
}

// persist writes the pending plans to the backing file. A plan that fails to
// persist still confirms within this process; a later cross-process confirm
// degrades to ErrPlanNotFound. The caller holds the lock.
func (s *PlanStore) persist() {
	if s.path == "" {
		return
	}

	records := make([]planRecord, 0, len(s.plans))
	for _, p := range s.plans {
		if p.state != planPending {
			continue
		}
		records = append(records, record(p))
	}
	data, err := json.Marshal(records)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return
	}
	_ = os.WriteFile(s.path, data, 0o600)
}
