// Package operation defines the named per-target operations that bulk runs
// and batch job files can apply.
package operation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/eugenetaranov/wpbolt/internal/bulk"
	"github.com/eugenetaranov/wpbolt/internal/lms"
	"github.com/eugenetaranov/wpbolt/internal/validate"
)

// Operation is the interface that all bulk operations must implement.
type Operation interface {
	// Name returns the operation's unique identifier.
	Name() string

	// Description is a one-line summary for listings.
	Description() string

	// Params names the parameters the operation requires.
	Params() []string

	// Prepare validates params once and returns the function applied to
	// each target ID.
	Prepare(m *lms.Manager, params map[string]any) (bulk.TargetFunc, error)
}

// registry holds all registered operations.
var (
	registry   = make(map[string]Operation)
	registryMu sync.RWMutex
)

// Register adds an operation to the registry.
// It panics if an operation with the same name is already registered.
func Register(op Operation) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := op.Name()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("operation %q is already registered", name))
	}
	registry[name] = op
}

// Get retrieves an operation by name. Returns nil if not found.
func Get(name string) Operation {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

// List returns the names of all registered operations, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup is Get with an error naming the available operations.
func Lookup(name string) (Operation, error) {
	if op := Get(name); op != nil {
		return op, nil
	}
	return nil, &validate.Error{
		Param:      "operation",
		Constraint: fmt.Sprintf("must be one of %v", List()),
		Got:        fmt.Sprintf("%q", name),
	}
}

// CheckParams rejects parameters the operation does not know.
func CheckParams(op Operation, params map[string]any) error {
	known := make(map[string]bool, len(op.Params()))
	for _, p := range op.Params() {
		known[p] = true
	}

	var unknown []string
	for k := range params {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return &validate.Error{
		Param:      op.Name(),
		Constraint: fmt.Sprintf("accepts only %v", op.Params()),
		Got:        fmt.Sprintf("unknown %v", unknown),
	}
}

// Run applies the named operation to every target under the circuit breaker.
// Progress is logged through the logger carried by ctx.
func Run(ctx context.Context, m *lms.Manager, name string, params map[string]any, targets []any) (*bulk.Report, error) {
	op, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := CheckParams(op, params); err != nil {
		return nil, err
	}
	fn, err := op.Prepare(m, params)
	if err != nil {
		return nil, err
	}

	runner := &bulk.Runner{Name: op.Name(), Param: "user_id"}
	return runner.Run(ctx, targets, fn)
}
