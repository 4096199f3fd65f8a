package compat

import (
	"fmt"

	"idmask/internal/identity/models"
	"idmask/internal/identity/surface"
)

// Legibility says whether a surface can be read or overridden at all.
type Legibility uint8

const (
	Reachable Legibility = iota + 1
	// DeniedCapability: the surface exists on this platform but the host lacks
	// a required capability.
	DeniedCapability
	// UnreachablePlatform: the platform version makes the surface inaccessible
	// regardless of capabilities.
	UnreachablePlatform
)

func (l Legibility) String() string {
	switch l {
	case Reachable:
		return "reachable"
	case DeniedCapability:
		return "denied_capability"
	case UnreachablePlatform:
		return "unreachable_platform"
	default:
		return fmt.Sprintf("Legibility(%d)", uint8(l))
	}
}

func (l Legibility) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Requirement is what a surface needs to be legible: a platform version range
// and an optional capability.
type Requirement struct {
	Versions   string             `json:"versions,omitempty"`
	Capability surface.Capability `json:"capability,omitempty"`
}

// SurfaceDescriptor is the resolved surface for one attribute. Primary is
// where read-back goes; Bindings are every target an override is installed on.
type SurfaceDescriptor struct {
	Key         models.AttributeKey
	Kind        surface.Kind
	Primary     surface.Target
	Bindings    []surface.Target
	Requirement Requirement
	Legibility  Legibility
}

// Reachable reports whether the surface is a candidate for interception and
// read-back.
func (d SurfaceDescriptor) Reachable() bool {
	return d.Legibility == Reachable
}

// Surfaces maps every attribute to its resolved descriptor.
type Surfaces map[models.AttributeKey]SurfaceDescriptor

// Lookup returns the descriptor for key. Attributes without one are treated
// as unreachable.
func (s Surfaces) Lookup(key models.AttributeKey) SurfaceDescriptor {
	if d, ok := s[key]; ok {
		return d
	}
	return SurfaceDescriptor{Key: key, Legibility: UnreachablePlatform}
}
