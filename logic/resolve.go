package logic

import (
	"fmt"
	"strings"
)

// NetKind selects the resolution function of a net.
type NetKind uint8

// Supported net kinds.
const (
	Wire NetKind = iota
	WiredAnd
	WiredOr
	Tri0
	Tri1
)

var netKindNames = [...]string{"wire", "wand", "wor", "tri0", "tri1"}

func (k NetKind) String() string {
	if int(k) < len(netKindNames) {
		return netKindNames[k]
	}

	return fmt.Sprintf("NetKind(%d)", uint8(k))
}

// ParseNetKind converts a net kind name to a NetKind. The empty string is
// a Wire.
func ParseNetKind(name string) (NetKind, error) {
	if name == "" {
		return Wire, nil
	}

	lower := strings.ToLower(name)
	for i, n := range netKindNames {
		if n == lower {
			return NetKind(i), nil
		}
	}

	return Wire, fmt.Errorf("logic: invalid net kind %q", name)
}

// Resolution is the outcome of combining the drivers of a net.
type Resolution struct {
	Drive Drive

	// Conflict is set when drivers of equal, highest strength disagree on a
	// wire or tri net, for example 0 against 1 or 1 against X. The resolved
	// value is X in that case.
	Conflict bool
}

// Resolve combines drives according to the net kind. The result does not
// depend on the order of drives and Resolve does not modify the slice.
func Resolve(kind NetKind, drives []Drive) Resolution {
	top := HighZ
	for _, d := range drives {
		d = d.Normalize()
		if d.Strength > top {
			top = d.Strength
		}
	}

	if top == HighZ {
		return undriven(kind)
	}

	var has0, has1, hasX bool
	for _, d := range drives {
		d = d.Normalize()
		if d.Strength != top {
			continue
		}

		switch d.Value {
		case L0:
			has0 = true
		case L1:
			has1 = true
		default:
			hasX = true
		}
	}

	switch kind {
	case WiredAnd:
		return Resolution{Drive: Drive{Value: wiredAnd(has0, has1, hasX), Strength: top}}
	case WiredOr:
		return Resolution{Drive: Drive{Value: wiredOr(has0, has1, hasX), Strength: top}}
	}

	known := 0
	for _, has := range [...]bool{has0, has1, hasX} {
		if has {
			known++
		}
	}

	switch {
	case known > 1:
		return Resolution{Drive: Drive{Value: X, Strength: top}, Conflict: true}
	case hasX:
		return Resolution{Drive: Drive{Value: X, Strength: top}}
	case has1:
		return Resolution{Drive: Drive{Value: L1, Strength: top}}
	default:
		return Resolution{Drive: Drive{Value: L0, Strength: top}}
	}
}

func undriven(kind NetKind) Resolution {
	switch kind {
	case Tri0:
		return Resolution{Drive: Drive{Value: L0, Strength: Pull}}
	case Tri1:
		return Resolution{Drive: Drive{Value: L1, Strength: Pull}}
	default:
		return Resolution{Drive: Released}
	}
}

func wiredAnd(has0, has1, hasX bool) Value {
	switch {
	case has0:
		return L0
	case hasX:
		return X
	default:
		return L1
	}
}

func wiredOr(has0, has1, hasX bool) Value {
	switch {
	case has1:
		return L1
	case hasX:
		return X
	default:
		return L0
	}
}
