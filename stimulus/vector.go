// Package stimulus drives designs from vector files and checks their
// outputs.
//
// A vector file holds one directive per line:
//
//	# comment
//	<time> set <ref>=<bits> [<ref>=<bits> ...]
//	<time> expect <ref>=<bits> [<ref>=<bits> ...]
//
// A ref is a signal name, a bus bit (q[1]) or a bit range (q[0..3]). Bits
// are written most significant first with the characters 0, 1, x and z;
// underscores are ignored.
package stimulus

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/hdlsim/logic"
	"github.com/sarchlab/hdlsim/sim"
)

// Op is the kind of a vector line.
type Op int

// Vector operations.
const (
	OpSet Op = iota
	OpExpect
)

func (o Op) String() string {
	if o == OpSet {
		return "set"
	}

	return "expect"
}

// An Assignment gives a value to every bit of a signal reference.
type Assignment struct {
	Ref string

	// Bits are least significant first.
	Bits []logic.Value
}

// A Vector is one line of a vector file.
type Vector struct {
	Line        int
	Time        sim.VTime
	Op          Op
	Assignments []Assignment
}

// A Resolver maps a signal reference to its bits, least significant first.
type Resolver interface {
	Resolve(ref string) ([]sim.SignalID, error)
}

// Parse reads a vector file. The vectors are returned sorted by time; lines
// with the same time keep their order.
func Parse(r io.Reader) ([]Vector, error) {
	var vectors []Vector

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++

		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}

		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		v, err := parseLine(fields)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		v.Line = line
		vectors = append(vectors, v)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read vectors")
	}

	sort.SliceStable(vectors, func(i, j int) bool {
		return vectors[i].Time < vectors[j].Time
	})

	return vectors, nil
}

// ParseFile reads a vector file from disk.
func ParseFile(path string) ([]Vector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open vectors")
	}
	defer f.Close()

	vectors, err := Parse(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	return vectors, nil
}

func parseLine(fields []string) (Vector, error) {
	if len(fields) < 3 {
		return Vector{}, errors.New("want <time> set|expect <ref>=<bits> ...")
	}

	t, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return Vector{}, errors.Wrap(err, "time")
	}

	v := Vector{Time: sim.VTime(t)}

	switch fields[1] {
	case "set":
		v.Op = OpSet
	case "expect":
		v.Op = OpExpect
	default:
		return Vector{}, errors.Errorf("unknown operation %q", fields[1])
	}

	for _, f := range fields[2:] {
		ref, bits, ok := strings.Cut(f, "=")
		if !ok || ref == "" {
			return Vector{}, errors.Errorf("bad assignment %q", f)
		}

		values, err := logic.ParseBits(bits)
		if err != nil {
			return Vector{}, errors.Wrapf(err, "assignment %q", f)
		}

		v.Assignments = append(v.Assignments, Assignment{Ref: ref, Bits: values})
	}

	return v, nil
}

type bound struct {
	line int
	ref  string
	ids  []sim.SignalID
	bits []logic.Value
}

// step is every assignment of one operation at one time.
type step struct {
	time    sim.VTime
	assigns []bound
}

// bind resolves the vectors of one operation and groups them by time.
func bind(vectors []Vector, op Op, r Resolver) ([]step, error) {
	var steps []step

	for _, v := range vectors {
		if v.Op != op {
			continue
		}

		if len(steps) == 0 || steps[len(steps)-1].time != v.Time {
			steps = append(steps, step{time: v.Time})
		}

		s := &steps[len(steps)-1]
		for _, a := range v.Assignments {
			ids, err := r.Resolve(a.Ref)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", v.Line)
			}

			if len(ids) != len(a.Bits) {
				return nil, errors.Errorf("line %d: %s has %d bits, value has %d",
					v.Line, a.Ref, len(ids), len(a.Bits))
			}

			s.assigns = append(s.assigns, bound{line: v.Line, ref: a.Ref, ids: ids, bits: a.Bits})
		}
	}

	return steps, nil
}
