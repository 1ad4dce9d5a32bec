// Package logic provides four-state logic values, drive strengths and the
// resolution functions used to combine multiple drivers of a net.
package logic

import "fmt"

// Value is a four-state logic value.
type Value uint8

// The four logic states. The zero value is L0.
const (
	L0 Value = iota
	L1
	X
	Z
)

// String returns the single-character representation of the value.
func (v Value) String() string {
	switch v {
	case L0:
		return "0"
	case L1:
		return "1"
	case X:
		return "x"
	case Z:
		return "z"
	default:
		return fmt.Sprintf("Value(%d)", uint8(v))
	}
}

// IsKnown returns true if the value is 0 or 1.
func (v Value) IsKnown() bool {
	return v == L0 || v == L1
}

// ParseValue converts one of the characters 0, 1, x, X, z, Z into a Value.
func ParseValue(r rune) (Value, error) {
	switch r {
	case '0':
		return L0, nil
	case '1':
		return L1, nil
	case 'x', 'X':
		return X, nil
	case 'z', 'Z':
		return Z, nil
	default:
		return X, fmt.Errorf("logic: invalid value %q", r)
	}
}

// FromBool returns L1 for true and L0 for false.
func FromBool(b bool) Value {
	if b {
		return L1
	}

	return L0
}

// input normalizes a value read by a gate. A floating input reads as unknown.
func input(v Value) Value {
	if v == Z {
		return X
	}

	return v
}

// Not returns the four-state complement of v.
func Not(v Value) Value {
	switch input(v) {
	case L0:
		return L1
	case L1:
		return L0
	default:
		return X
	}
}

// And returns the four-state conjunction of a and b. A 0 on either side
// dominates unknowns.
func And(a, b Value) Value {
	a, b = input(a), input(b)

	switch {
	case a == L0 || b == L0:
		return L0
	case a == L1 && b == L1:
		return L1
	default:
		return X
	}
}

// Or returns the four-state disjunction of a and b. A 1 on either side
// dominates unknowns.
func Or(a, b Value) Value {
	a, b = input(a), input(b)

	switch {
	case a == L1 || b == L1:
		return L1
	case a == L0 && b == L0:
		return L0
	default:
		return X
	}
}

// Xor returns the four-state exclusive or of a and b.
func Xor(a, b Value) Value {
	a, b = input(a), input(b)
	if !a.IsKnown() || !b.IsKnown() {
		return X
	}

	return FromBool(a != b)
}

// IsPosedge reports whether a change from prev to cur is a rising edge:
// 0->1, 0->x, 0->z, x->1 or z->1.
func IsPosedge(prev, cur Value) bool {
	if prev == cur {
		return false
	}

	return prev == L0 || cur == L1
}

// IsNegedge reports whether a change from prev to cur is a falling edge:
// 1->0, 1->x, 1->z, x->0 or z->0.
func IsNegedge(prev, cur Value) bool {
	if prev == cur {
		return false
	}

	return prev == L1 || cur == L0
}

// MarshalText encodes the value as its single-character form.
func (v Value) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}
