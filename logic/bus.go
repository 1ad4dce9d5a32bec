package logic

import (
	"fmt"
	"strings"
)

// FromUint returns the width low bits of n, least significant bit first.
func FromUint(n uint64, width int) []Value {
	values := make([]Value, width)
	for i := 0; i < width; i++ {
		values[i] = FromBool(n&(1<<uint(i)) != 0)
	}

	return values
}

// ToUint packs values, least significant bit first, into an integer. It
// returns false if any bit is X or Z.
func ToUint(values []Value) (uint64, bool) {
	var n uint64
	for i, v := range values {
		switch v {
		case L0:
		case L1:
			n |= 1 << uint(i)
		default:
			return 0, false
		}
	}

	return n, true
}

// ParseBits parses a string of 01xz characters written most significant bit
// first. The returned slice is least significant bit first. Underscores are
// ignored.
func ParseBits(s string) ([]Value, error) {
	s = strings.ReplaceAll(s, "_", "")
	if s == "" {
		return nil, fmt.Errorf("logic: empty bit string")
	}

	values := make([]Value, 0, len(s))
	runes := []rune(s)
	for i := len(runes) - 1; i >= 0; i-- {
		v, err := ParseValue(runes[i])
		if err != nil {
			return nil, err
		}

		values = append(values, v)
	}

	return values, nil
}

// FormatBits formats values given least significant bit first as a string
// written most significant bit first.
func FormatBits(values []Value) string {
	var b strings.Builder
	for i := len(values) - 1; i >= 0; i-- {
		b.WriteString(values[i].String())
	}

	return b.String()
}
