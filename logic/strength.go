package logic

import (
	"fmt"
	"strings"
)

// Strength orders the drives that compete on one net.
type Strength uint8

// Drive strengths, weakest first.
const (
	HighZ Strength = iota
	Weak
	Pull
	Strong
	Supply
)

var strengthNames = [...]string{"highz", "weak", "pull", "strong", "supply"}

func (s Strength) String() string {
	if int(s) < len(strengthNames) {
		return strengthNames[s]
	}

	return fmt.Sprintf("Strength(%d)", uint8(s))
}

// ParseStrength converts a strength name (case insensitive) to a Strength.
func ParseStrength(name string) (Strength, error) {
	lower := strings.ToLower(name)
	for i, n := range strengthNames {
		if n == lower {
			return Strength(i), nil
		}
	}

	return HighZ, fmt.Errorf("logic: invalid strength %q", name)
}

// A Drive is a value put on a net with a given strength.
type Drive struct {
	Value    Value
	Strength Strength
}

// Drive helpers for the common cases.
var (
	Strong0  = Drive{Value: L0, Strength: Strong}
	Strong1  = Drive{Value: L1, Strength: Strong}
	StrongX  = Drive{Value: X, Strength: Strong}
	Released = Drive{Value: Z, Strength: HighZ}
)

// StrongDrive returns v at strong strength. A Z value is returned as
// Released.
func StrongDrive(v Value) Drive {
	return Drive{Value: v, Strength: Strong}.Normalize()
}

// Normalize makes Z and HighZ imply each other.
func (d Drive) Normalize() Drive {
	if d.Value == Z || d.Strength == HighZ {
		return Released
	}

	return d
}

func (d Drive) String() string {
	return d.Value.String() + "@" + d.Strength.String()
}

// MarshalText encodes the strength by name.
func (s Strength) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
