package surface

import "fmt"

// Accessor reads a target and binds an override to it. There is one accessor
// per Kind.
type Accessor interface {
	Read(h *Host, t Target) (string, error)
	Bind(h *Host, t Target, value string) error
}

type fieldAccessor struct{}

func (fieldAccessor) Read(h *Host, t Target) (string, error) {
	return h.ReadField(t.Name)
}

func (fieldAccessor) Bind(h *Host, t Target, value string) error {
	return h.WriteField(t.Name, value)
}

type operationAccessor struct{}

// Read invokes the operation with slot 0 when the target is the slot-indexed
// overload.
func (operationAccessor) Read(h *Host, t Target) (string, error) {
	args := make([]int, t.Arity)
	return h.Invoke(t.Name, args...)
}

// Bind replaces every result of the overload with value. A failure of the
// genuine computation is discarded too.
func (operationAccessor) Bind(h *Host, t Target, value string) error {
	return h.HookAfter(t.Name, t.Arity, func(Call) (string, error) {
		return value, nil
	})
}

// AccessorFor returns the accessor for a kind.
func AccessorFor(k Kind) (Accessor, error) {
	switch k {
	case KindField:
		return fieldAccessor{}, nil
	case KindOperation:
		return operationAccessor{}, nil
	default:
		return nil, fmt.Errorf("no accessor for %s", k)
	}
}
