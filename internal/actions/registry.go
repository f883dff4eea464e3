// Package actions binds stable action identifiers to typed handlers over the
// resource provider client. Dispatch is an explicit method per capability
// group, not reflection.
package actions

import (
	"context"
	"fmt"

	"github.com/stackwarden/warden/api"
	"github.com/stackwarden/warden/internal/executor"
	"github.com/stackwarden/warden/internal/provider"
	"github.com/stackwarden/warden/internal/remediate"
)

// Service wires provider-backed handlers for governed actions.
type Service struct {
	client provider.Client
}

// NewService creates a Service over a provider client.
func NewService(client provider.Client) *Service {
	return &Service{client: client}
}

// Create returns a handler that creates a resource of the given kind, with a
// success predicate rejecting accepted-but-not-succeeded responses and a
// verify step that re-reads the resource.
func (s *Service) Create(kind provider.Kind) (executor.Handler, executor.Options) {
	handler := func(ctx context.Context, args map[string]any) (any, error) {
		ref, err := refFromArgs(args)
		if err != nil {
			return nil, err
		}
		res := provider.Resource{}
		if props, ok := args["properties"].(map[string]any); ok {
			for k, v := range props {
				res[k] = v
			}
		}
		res["name"] = ref.Name
		// Keep the group on the resource so the verify re-fetch can
		// reconstruct the reference from the result alone.
		res["group"] = ref.Group
		return s.client.Create(ctx, kind, ref, res)
	}

	opts := executor.Options{
		Success: func(result any) error {
			res, ok := result.(provider.Resource)
			if !ok {
				return nil
			}
			if state := res.Str("provisioningState", "Succeeded"); state != "Succeeded" {
				return fmt.Errorf("provisioning state is %q", state)
			}
			return nil
		},
		Verify: func(ctx context.Context, result any) (bool, error) {
			res, ok := result.(provider.Resource)
			if !ok {
				// No fetchable identifier: verified by default.
				return true, nil
			}
			name := res.Str("name", "")
			group := res.Str("group", "")
			if name == "" || group == "" {
				return true, nil
			}
			_, err := s.client.Get(ctx, kind, api.ResourceRef{Group: group, Name: name})
			if err != nil {
				if provider.IsNotFound(err) {
					return false, nil
				}
				return false, err
			}
			return true, nil
		},
	}

	return handler, opts
}

// Get returns a read-only handler for the given kind.
func (s *Service) Get(kind provider.Kind) executor.Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		ref, err := refFromArgs(args)
		if err != nil {
			return nil, err
		}
		return s.client.Get(ctx, kind, ref)
	}
}

// Remediate returns a handler that applies the given steps via the applier.
// The handler result is the full remediation report plus per-step results.
func (s *Service) Remediate(applier *remediate.Applier, steps []api.RemediationStep) executor.Handler {
	return func(ctx context.Context, _ map[string]any) (any, error) {
		results, report := applier.Apply(ctx, steps, false)
		return map[string]any{
			"results": results,
			"report":  report,
		}, nil
	}
}

// Resolve maps an action name to a handler. Unknown actions return ok=false;
// the caller decides whether that is an error.
func (s *Service) Resolve(action string) (executor.Handler, executor.Options, bool) {
	switch action {
	case "webapp.create":
		h, opts := s.Create(provider.KindWebApp)
		return h, opts, true
	case "storage.create":
		h, opts := s.Create(provider.KindStorageAccount)
		return h, opts, true
	case "webapp.get":
		return s.Get(provider.KindWebApp), executor.Options{}, true
	case "storage.get":
		return s.Get(provider.KindStorageAccount), executor.Options{}, true
	}
	return nil, executor.Options{}, false
}

func refFromArgs(args map[string]any) (api.ResourceRef, error) {
	group, _ := args["group"].(string)
	name, _ := args["name"].(string)
	if group == "" || name == "" {
		return api.ResourceRef{}, fmt.Errorf("arguments must include group and name")
	}
	return api.ResourceRef{Group: group, Name: name}, nil
}
