package vm

import (
	"maps"
	"sync"

	"github.com/zurustar/dimscript/pkg/expr"
)

// Env is the global variable environment. There is a single flat scope
// shared by the main loop and every trigger; a for counter is an ordinary
// entry.
type Env struct {
	variables map[string]expr.Value
	mu        sync.RWMutex
}

// NewEnv creates an empty environment.
func NewEnv() *Env {
	return &Env{variables: make(map[string]expr.Value)}
}

// Get retrieves a variable value by name.
//
// Parameters:
//   - name: The variable name to look up
//
// Returns:
//   - expr.Value: The variable value
//   - bool: true if the variable was found, false otherwise
func (e *Env) Get(name string) (expr.Value, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.variables[name]
	return v, ok
}

// Lookup implements expr.Lookup.
func (e *Env) Lookup(name string) (expr.Value, bool) {
	return e.Get(name)
}

// Set binds name to value, creating the variable if needed.
func (e *Env) Set(name string, value expr.Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.variables[name] = value
}

// Delete removes a variable.
func (e *Env) Delete(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.variables, name)
}

// Clear removes all variables.
func (e *Env) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.variables)
}

// Size returns the number of variables.
func (e *Env) Size() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.variables)
}

// Snapshot returns a copy of all variables.
func (e *Env) Snapshot() map[string]expr.Value {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.variables)
}
