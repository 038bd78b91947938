// Package registry holds the integrator-supplied action and validator
// lookup tables. Registries are injected into the engine at
// construction rather than living in module-level state; a registry may
// declare a parent, giving process-wide defaults plus per-engine
// overrides.
package registry

import (
	"context"
	"fmt"
	"sync"
)

// ActionFunc is an integrator-supplied side effect. It receives the
// action inputs and returns named outputs for map_outputs routing.
type ActionFunc func(ctx context.Context, inputs map[string]any) (map[string]any, error)

// ValidatorFunc checks a candidate slot value. Returning false rejects
// the value (the engine re-prompts); returning an error is a validator
// failure and aborts the turn.
type ValidatorFunc func(ctx context.Context, value any, slots map[string]any) (bool, error)

// Actions is a mutex-guarded name -> ActionFunc table. Registration is
// expected at process startup but remains safe at run time since
// multiple sessions read concurrently.
type Actions struct {
	mu      sync.RWMutex
	parent  *Actions
	actions map[string]ActionFunc
}

// NewActions creates an empty action registry.
func NewActions() *Actions {
	return &Actions{actions: make(map[string]ActionFunc)}
}

// NewActionsWith creates a registry layered over parent. Lookups fall
// back to the parent when the local layer has no entry.
func NewActionsWith(parent *Actions) *Actions {
	return &Actions{parent: parent, actions: make(map[string]ActionFunc)}
}

// Register adds an action, overwriting any local entry of the same name.
func (r *Actions) Register(name string, fn ActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = fn
}

// Lookup resolves an action by name through the override chain.
func (r *Actions) Lookup(name string) (ActionFunc, bool) {
	r.mu.RLock()
	fn, ok := r.actions[name]
	r.mu.RUnlock()
	if ok {
		return fn, true
	}
	if r.parent != nil {
		return r.parent.Lookup(name)
	}
	return nil, false
}

// Execute runs the named action.
func (r *Actions) Execute(ctx context.Context, name string, inputs map[string]any) (map[string]any, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("action not registered: %s", name)
	}
	return fn(ctx, inputs)
}

// Validators is the slot-validator counterpart of Actions.
type Validators struct {
	mu         sync.RWMutex
	parent     *Validators
	validators map[string]ValidatorFunc
}

// NewValidators creates an empty validator registry.
func NewValidators() *Validators {
	return &Validators{validators: make(map[string]ValidatorFunc)}
}

// NewValidatorsWith creates a registry layered over parent.
func NewValidatorsWith(parent *Validators) *Validators {
	return &Validators{parent: parent, validators: make(map[string]ValidatorFunc)}
}

// Register adds a validator, overwriting any local entry of the same name.
func (r *Validators) Register(name string, fn ValidatorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[name] = fn
}

// Lookup resolves a validator by name through the override chain.
func (r *Validators) Lookup(name string) (ValidatorFunc, bool) {
	r.mu.RLock()
	fn, ok := r.validators[name]
	r.mu.RUnlock()
	if ok {
		return fn, true
	}
	if r.parent != nil {
		return r.parent.Lookup(name)
	}
	return nil, false
}

// Validate runs the named validator against a candidate value.
func (r *Validators) Validate(ctx context.Context, name string, value any, slots map[string]any) (bool, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return false, fmt.Errorf("validator not registered: %s", name)
	}
	return fn(ctx, value, slots)
}
