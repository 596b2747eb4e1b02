package rpc

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Handler runs one method. call is nil unless the method sets WantsContext.
type Handler func(ctx context.Context, call *Call, args Args) (any, error)

// Method is one registry entry.
type Method struct {
	Name string
	// Require is the capability needed to call the method; empty means public.
	Require string
	// WantsContext requests the caller context.
	WantsContext bool
	Handler      Handler
}

// Registry maps method names to methods. It is immutable once built.
type Registry struct {
	methods map[string]Method
	names   []string
}

// NewRegistry builds a registry holding the built-in methods plus methods.
func NewRegistry(methods ...Method) (*Registry, error) {
	r := &Registry{methods: make(map[string]Method, len(methods)+3)}

	all := append(builtins(r), methods...)
	for _, m := range all {
		name := strings.TrimSpace(m.Name)
		if name == "" || name != m.Name {
			return nil, fmt.Errorf("rpc: invalid method name %q", m.Name)
		}
		if m.Handler == nil {
			return nil, fmt.Errorf("rpc: method %q has no handler", m.Name)
		}
		if _, dup := r.methods[name]; dup {
			return nil, fmt.Errorf("rpc: duplicate method %q", m.Name)
		}
		r.methods[name] = m
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// MustRegistry is NewRegistry that panics on error, for static wiring.
func MustRegistry(methods ...Method) *Registry {
	r, err := NewRegistry(methods...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the method registered under name.
func (r *Registry) Lookup(name string) (Method, bool) {
	m, ok := r.methods[name]
	return m, ok
}

// Names returns the registered method names, sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}
