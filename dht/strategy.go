package dht

import (
	"fmt"
	"strings"
)

// Protocol selects how a lookup merges and picks candidates.
type Protocol uint8

const (
	// Naive merges every reported peer and always queries the closest one.
	Naive Protocol = iota
	// Improved ignores peers outside the destination's domain and, within the
	// longest shared-prefix tier, prefers peers reported by more responders.
	Improved
)

// Scope selects what happens when a lookup converges.
type Scope uint8

const (
	// Intra keeps every lookup inside the originating domain.
	Intra Scope = iota
	// Inter hands lookups for foreign keys to bridge nodes and routes finished
	// results back the same way.
	Inter
)

func (p Protocol) String() string {
	if p == Improved {
		return "improved"
	}
	return "naive"
}

func (s Scope) String() string {
	if s == Inter {
		return "inter"
	}
	return "intra"
}

type Variant struct {
	Protocol Protocol
	Scope    Scope
}

func (v Variant) String() string {
	return v.Protocol.String() + "-" + v.Scope.String()
}

// ParseVariant reads names such as "naive-intra" or "Improved:Inter".
func ParseVariant(s string) (Variant, error) {
	fields := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(s)), func(r rune) bool {
		return r == '-' || r == ':' || r == '_' || r == '/'
	})
	if len(fields) != 2 {
		return Variant{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}

	var v Variant
	switch fields[0] {
	case "naive":
		v.Protocol = Naive
	case "improved":
		v.Protocol = Improved
	default:
		return Variant{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
	switch fields[1] {
	case "intra":
		v.Scope = Intra
	case "inter":
		v.Scope = Inter
	default:
		return Variant{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
	return v, nil
}
