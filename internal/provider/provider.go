// Package provider defines the contract this core expects from a resource
// provider client, plus normalization of provider-native failures. Real cloud
// or SCM backends live behind these interfaces; the core never sees their
// native error types.
package provider

import (
	"context"

	"github.com/stackwarden/warden/api"
)

// Kind names a resource type the provider can manage.
type Kind string

const (
	KindWebApp         Kind = "webApp"
	KindStorageAccount Kind = "storageAccount"
)

// Kinds lists every resource kind in scan scope, in a stable order.
func Kinds() []Kind {
	return []Kind{KindWebApp, KindStorageAccount}
}

// Resource is a provider-native resource representation. Providers return
// loosely-typed property bags; the core reads the handful of fields it knows.
type Resource map[string]any

// Str returns a string property, or def when absent or not a string.
func (r Resource) Str(key, def string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return def
}

// Bool returns a boolean property, or def when absent or not a boolean.
func (r Resource) Bool(key string, def bool) bool {
	if v, ok := r[key].(bool); ok {
		return v
	}
	return def
}

// Clone returns a shallow copy safe to overlay patch fields onto.
func (r Resource) Clone() Resource {
	out := make(Resource, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Client is the minimal surface every provider backend exposes.
type Client interface {
	Get(ctx context.Context, kind Kind, ref api.ResourceRef) (Resource, error)
	Create(ctx context.Context, kind Kind, ref api.ResourceRef, res Resource) (Resource, error)
	List(ctx context.Context, kind Kind, group string) ([]Resource, error)
}

// PartialUpdater is the optional in-place patch capability. Backends without
// it force the caller into a read-modify-recreate strategy.
type PartialUpdater interface {
	Update(ctx context.Context, kind Kind, ref api.ResourceRef, patch Resource) (Resource, error)
}
