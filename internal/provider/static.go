package provider

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/stackwarden/warden/api"
)

// staticFile is the YAML shape of a fixture inventory.
type staticFile struct {
	Resources []staticResource `yaml:"resources"`
}

type staticResource struct {
	Kind       string         `yaml:"kind"`
	Group      string         `yaml:"group"`
	Name       string         `yaml:"name"`
	Properties map[string]any `yaml:"properties"`
}

// StaticClient is an in-memory provider backed by a YAML inventory file.
// It exists for offline runs and tests; it implements both Client and
// PartialUpdater.
type StaticClient struct {
	mu        sync.RWMutex
	resources map[string]Resource
}

func key(kind Kind, ref api.ResourceRef) string {
	return string(kind) + "|" + ref.Group + "|" + ref.Name
}

// LoadStatic reads a YAML inventory file into a StaticClient.
func LoadStatic(path string) (*StaticClient, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory file: %w", err)
	}
	return ParseStatic(data)
}

// ParseStatic parses YAML inventory data into a StaticClient.
func ParseStatic(data []byte) (*StaticClient, error) {
	var f staticFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing inventory YAML: %w", err)
	}

	c := NewStatic()
	for i, r := range f.Resources {
		if r.Kind == "" || r.Group == "" || r.Name == "" {
			return nil, fmt.Errorf("inventory resource %d: kind, group and name are required", i)
		}
		res := Resource{}
		for k, v := range r.Properties {
			res[k] = v
		}
		res["name"] = r.Name
		c.Put(Kind(r.Kind), api.ResourceRef{Group: r.Group, Name: r.Name}, res)
	}
	return c, nil
}

// NewStatic creates an empty StaticClient.
func NewStatic() *StaticClient {
	return &StaticClient{resources: make(map[string]Resource)}
}

// Put inserts or replaces a resource.
func (c *StaticClient) Put(kind Kind, ref api.ResourceRef, res Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[key(kind, ref)] = res
}

func (c *StaticClient) Get(_ context.Context, kind Kind, ref api.ResourceRef) (Resource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res, ok := c.resources[key(kind, ref)]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, ref, ErrNotFound)
	}
	return res.Clone(), nil
}

func (c *StaticClient) Create(_ context.Context, kind Kind, ref api.ResourceRef, res Resource) (Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := res.Clone()
	stored["provisioningState"] = "Succeeded"
	c.resources[key(kind, ref)] = stored
	return stored.Clone(), nil
}

func (c *StaticClient) List(_ context.Context, kind Kind, group string) ([]Resource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	prefix := string(kind) + "|" + group + "|"
	var out []Resource
	for k, res := range c.resources {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, res.Clone())
		}
	}
	return out, nil
}

func (c *StaticClient) Update(_ context.Context, kind Kind, ref api.ResourceRef, patch Resource) (Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, ok := c.resources[key(kind, ref)]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, ref, ErrNotFound)
	}
	updated := res.Clone()
	for k, v := range patch {
		updated[k] = v
	}
	c.resources[key(kind, ref)] = updated
	return updated.Clone(), nil
}

// NoPatch strips the PartialUpdater capability from a client, forcing
// read-modify-recreate in the step applier.
type NoPatch struct {
	Client
}
