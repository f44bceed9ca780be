package model

import (
	"fmt"
	"strings"

	"github.com/and161185/glucokeeper/internal/errs"
)

// Capability is a named permission bit carried by a token.
type Capability int

// Known capabilities. The order is the storage and wire order.
const (
	CapProfile Capability = iota // user info
	CapSamples                   // raw readings and trends
	CapGoals                     // goal CRUD
	CapStats                     // aggregate statistics

	capCount
)

var capNames = [capCount]string{"profile", "samples", "goals", "stats"}

// String returns the scope name of the capability.
func (c Capability) String() string {
	if c < 0 || c >= capCount {
		return fmt.Sprintf("capability(%d)", int(c))
	}
	return capNames[c]
}

// AllCapabilities lists every capability in canonical order.
func AllCapabilities() []Capability {
	return []Capability{CapProfile, CapSamples, CapGoals, CapStats}
}

// ParseCapability maps a scope name to its capability.
func ParseCapability(s string) (Capability, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range capNames {
		if n == name {
			return Capability(i), nil
		}
	}
	return 0, fmt.Errorf("unknown scope %q: %w", s, errs.ErrInvalidArgument)
}

// Capabilities is the fixed set of four permission flags of a token.
type Capabilities [capCount]bool

// CapabilitiesOf builds a set with the given capabilities granted.
func CapabilitiesOf(cs ...Capability) Capabilities {
	var set Capabilities
	for _, c := range cs {
		set = set.Grant(c)
	}
	return set
}

// CapabilitiesFrom parses scope names into a set. Unknown names fail.
func CapabilitiesFrom(names []string) (Capabilities, error) {
	var set Capabilities
	for _, n := range names {
		c, err := ParseCapability(n)
		if err != nil {
			return Capabilities{}, err
		}
		set = set.Grant(c)
	}
	return set, nil
}

// Has reports whether c is granted. Out-of-range capabilities are never granted.
func (s Capabilities) Has(c Capability) bool {
	if c < 0 || c >= capCount {
		return false
	}
	return s[c]
}

// Grant returns a copy of s with c granted.
func (s Capabilities) Grant(c Capability) Capabilities {
	if c >= 0 && c < capCount {
		s[c] = true
	}
	return s
}

// Covers reports whether every required capability is granted.
func (s Capabilities) Covers(required ...Capability) bool {
	for _, c := range required {
		if !s.Has(c) {
			return false
		}
	}
	return true
}

// List returns the granted capabilities in canonical order.
func (s Capabilities) List() []Capability {
	out := make([]Capability, 0, capCount)
	for i, ok := range s {
		if ok {
			out = append(out, Capability(i))
		}
	}
	return out
}

// Names returns the granted scope names in canonical order.
func (s Capabilities) Names() []string {
	list := s.List()
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.String()
	}
	return out
}
