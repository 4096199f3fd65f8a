// Package surface models the identity surfaces a host process reads: mutable
// fields (Build.BRAND) and invoked operations (TelephonyManager.getImei(slot)).
//
// The host process reads identity through a Host instead of the platform's
// native accessors. Overrides are installed by writing fields or registering
// post-invocation hooks on the Host, so every later read observes them.
package surface

import (
	"fmt"
	"strings"
)

// Kind distinguishes how a surface is read and how an override is bound.
type Kind uint8

const (
	// KindField surfaces are overwritten in place; the genuine value is lost
	// for the life of the process once overwritten.
	KindField Kind = iota + 1
	// KindOperation surfaces keep their genuine computation; a post hook
	// replaces the result.
	KindOperation
)

func (k Kind) String() string {
	switch k {
	case KindField:
		return "mutable_field"
	case KindOperation:
		return "post_invocation_result"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ParseKind accepts "field" / "mutable_field" and "operation" /
// "post_invocation_result".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "field", "mutable_field":
		return KindField, nil
	case "operation", "post_invocation_result":
		return KindOperation, nil
	default:
		return 0, fmt.Errorf("unknown surface kind %q", s)
	}
}

// Target names one concrete surface. For operations Arity selects the
// overload: 0 is the no-argument form, 1 the slot-indexed form.
type Target struct {
	Kind  Kind
	Name  string
	Arity int
}

// Field targets a mutable field.
func Field(name string) Target {
	return Target{Kind: KindField, Name: name}
}

// Op targets one arity variant of an operation.
func Op(name string, arity int) Target {
	return Target{Kind: KindOperation, Name: name, Arity: arity}
}

func (t Target) String() string {
	if t.Kind == KindOperation {
		if t.Arity == 0 {
			return t.Name + "()"
		}
		return t.Name + "(slot)"
	}
	return t.Name
}

// Capability is a permission the host process may hold.
type Capability string

const (
	CapReadPhoneState Capability = "READ_PHONE_STATE"
)
