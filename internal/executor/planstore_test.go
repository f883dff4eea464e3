package executor

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stackwarden/warden/api"
)

func TestPlanStore_PutAndTake(t *testing.T) {
	store := NewPlanStore(time.Minute)

	req := Request{Action: "webapp.create", Args: map[string]any{"name": "api"}}
	id := store.Put(req, &api.PolicyDecision{Decision: api.DecisionAllow})
	if id == "" {
		t.Fatal("expected a plan ID")
	}

	got, err := store.Take(id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Action != "webapp.create" || got.Args["name"] != "api" {
		t.Errorf("unexpected request: %+v", got)
	}
}

func TestPlanStore_TakeIsConsumeOnce(t *testing.T) {
	store := NewPlanStore(time.Minute)
	id := store.Put(Request{Action: "remediate"}, nil)

	if _, err := store.Take(id); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Take(id); !errors.Is(err, ErrPlanResolved) {
		t.Errorf("expected ErrPlanResolved, got %v", err)
	}
}

func TestPlanStore_UnknownID(t *testing.T) {
	store := NewPlanStore(time.Minute)
	if _, err := store.Take("nope"); !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestPlanStore_Expiry(t *testing.T) {
	store := NewPlanStore(-time.Second)
	id := store.Put(Request{Action: "webapp.create"}, nil)

	if _, err := store.Take(id); !errors.Is(err, ErrPlanExpired) {
		t.Errorf("expected ErrPlanExpired, got %v", err)
	}
	// An expired plan never comes back.
	if _, err := store.Take(id); !errors.Is(err, ErrPlanExpired) {
		t.Errorf("expected ErrPlanExpired on retry, got %v", err)
	}
}

func TestPlanStore_PersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.json")

	store, err := LoadPlanStore(path, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	req := Request{Action: "webapp.create", Args: map[string]any{"name": "api"}}
	id := store.Put(req, &api.PolicyDecision{Decision: api.DecisionAllow})

	reopened, err := LoadPlanStore(path, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reopened.Take(id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Action != "webapp.create" || got.Args["name"] != "api" {
		t.Errorf("unexpected request after reload: %+v", got)
	}

	// The confirmation is durable: a third process no longer sees the plan.
	final, err := LoadPlanStore(path, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := final.Take(id); !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound after confirmation, got %v", err)
	}
}

func TestLoadPlanStore_SkipsExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.json")

	store, err := LoadPlanStore(path, -time.Second)
	if err != nil {
		t.Fatal(err)
	}
	id := store.Put(Request{Action: "webapp.create"}, nil)

	reopened, err := LoadPlanStore(path, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reopened.Take(id); !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound for expired plan, got %v", err)
	}
}

func TestLoadPlanStore_MissingFile(t *testing.T) {
	store, err := LoadPlanStore(filepath.Join(t.TempDir(), "plans.json"), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if pending := store.Pending(); len(pending) != 0 {
		t.Errorf("expected no pending plans, got %d", len(pending))
	}
}

func TestPlanStore_PutSweepsTerminalPlans(t *testing.T) {
	store := NewPlanStore(time.Minute)

	taken := store.Put(Request{Action: "webapp.create"}, nil)
	if _, err := store.Take(taken); err != nil {
		t.Fatal(err)
	}

	store.Put(Request{Action: "storage.create"}, nil)
	if len(store.plans) != 1 {
		t.Errorf("expected resolved plan to be swept, got %d held", len(store.plans))
	}
}

func TestPlanStore_PendingSkipsResolvedAndExpired(t *testing.T) {
	store := NewPlanStore(time.Minute)

	kept := store.Put(Request{Action: "webapp.create"}, nil)
	taken := store.Put(Request{Action: "storage.create"}, nil)
	if _, err := store.Take(taken); err != nil {
		t.Fatal(err)
	}

	pending := store.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending plan, got %d", len(pending))
	}
	if pending[0].ID != kept {
		t.Errorf("expected plan %s, got %s", kept, pending[0].ID)
	}
}
