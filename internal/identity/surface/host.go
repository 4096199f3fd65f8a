package surface

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	ErrNoSuchSurface  = errors.New("no such surface")
	ErrHardened       = errors.New("surface is hardened against modification")
	ErrSlotOutOfRange = errors.New("slot out of range")
)

// Call describes one completed operation invocation as seen by a post hook.
type Call struct {
	Name   string
	Args   []int
	Result string
	Err    error
}

// PostHook runs after an operation and may replace its outcome.
type PostHook func(c Call) (string, error)

type field struct {
	value    string
	hardened bool
}

type opKey struct {
	name  string
	arity int
}

type operation struct {
	impl     func(args []int) (string, error)
	hardened bool
	hooks    []PostHook
}

// Host is the running environment's identity surface table. It is safe for
// concurrent use.
type Host struct {
	mu      sync.RWMutex
	version int
	grants  map[Capability]bool
	fields  map[string]*field
	ops     map[opKey]*operation
}

// NewHost builds a host from a profile. Every catalogued field and operation
// exists on the host even when the profile carries no value for it.
func NewHost(p Profile) *Host {
	h := &Host{
		version: p.Platform.Version,
		grants:  make(map[Capability]bool, len(p.Capabilities)),
		fields:  make(map[string]*field),
		ops:     make(map[opKey]*operation),
	}
	for _, c := range p.Capabilities {
		h.grants[c] = true
	}
	hardened := make(map[string]bool, len(p.Hardened))
	for _, name := range p.Hardened {
		hardened[name] = true
	}

	for _, name := range knownFields {
		h.fields[name] = &field{value: UnknownValue, hardened: hardened[name]}
	}
	for name, value := range p.Fields {
		h.fields[name] = &field{value: value, hardened: hardened[name]}
	}

	for name := range operationArities {
		h.registerOperation(name, nil, hardened[name])
	}
	for name, slots := range p.Operations {
		h.registerOperation(name, slots, hardened[name])
	}
	return h
}

func (h *Host) registerOperation(name string, slots []string, hardened bool) {
	values := slices.Clone(slots)
	impl := func(args []int) (string, error) {
		slot := 0
		if len(args) > 0 {
			slot = args[0]
		}
		if slot < 0 || (len(values) > 0 && slot >= len(values)) {
			return "", fmt.Errorf("%s: %w: %d", name, ErrSlotOutOfRange, slot)
		}
		if len(values) == 0 {
			return "", nil
		}
		return values[slot], nil
	}
	for _, arity := range aritiesOf(name) {
		h.ops[opKey{name, arity}] = &operation{impl: impl, hardened: hardened}
	}
}

// PlatformVersion returns the platform API level the host reports.
func (h *Host) PlatformVersion() int {
	return h.version
}

// Granted returns the capabilities the host process holds, sorted.
func (h *Host) Granted() []Capability {
	out := make([]Capability, 0, len(h.grants))
	for c := range h.grants {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// ReadField returns the current value of a field.
func (h *Host) ReadField(name string) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	f, ok := h.fields[name]
	if !ok {
		return "", fmt.Errorf("field %s: %w", name, ErrNoSuchSurface)
	}
	return f.value, nil
}

// WriteField overwrites a field for the remainder of the process lifetime.
func (h *Host) WriteField(name, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.fields[name]
	if !ok {
		return fmt.Errorf("field %s: %w", name, ErrNoSuchSurface)
	}
	if f.hardened {
		return fmt.Errorf("field %s: %w", name, ErrHardened)
	}
	f.value = value
	return nil
}

// Invoke calls an operation. The overload is chosen by the number of args.
// Post hooks run in registration order after the genuine computation.
func (h *Host) Invoke(name string, args ...int) (string, error) {
	h.mu.RLock()
	op, ok := h.ops[opKey{name, len(args)}]
	var hooks []PostHook
	if ok {
		hooks = slices.Clone(op.hooks)
	}
	h.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("operation %s/%d: %w", name, len(args), ErrNoSuchSurface)
	}

	result, err := op.impl(args)
	for _, hook := range hooks {
		result, err = hook(Call{Name: name, Args: args, Result: result, Err: err})
	}
	return result, err
}

// HookAfter registers a post hook on one overload of an operation.
func (h *Host) HookAfter(name string, arity int, hook PostHook) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	op, ok := h.ops[opKey{name, arity}]
	if !ok {
		return fmt.Errorf("operation %s/%d: %w", name, arity, ErrNoSuchSurface)
	}
	if op.hardened {
		return fmt.Errorf("operation %s/%d: %w", name, arity, ErrHardened)
	}
	op.hooks = append(op.hooks, hook)
	return nil
}

// Read reads a target through the accessor for its kind.
func (h *Host) Read(t Target) (string, error) {
	acc, err := AccessorFor(t.Kind)
	if err != nil {
		return "", err
	}
	return acc.Read(h, t)
}
