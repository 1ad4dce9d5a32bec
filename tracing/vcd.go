package tracing

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sarchlab/hdlsim/logic"
	"github.com/sarchlab/hdlsim/sim"
)

// VCDWriter dumps transitions as an IEEE 1364 value change dump. Changes in
// several delta cycles of one time step collapse to the value the signal
// settled to.
type VCDWriter struct {
	NopRecorder

	w      *bufio.Writer
	closer io.Closer
	err    error

	codes   map[sim.SignalID]string
	now     sim.VTime
	started bool
	pending map[sim.SignalID]logic.Value
	closed  bool
}

// VCDOptions tunes the header of a dump.
type VCDOptions struct {
	// Scope is the module name the signals are listed under.
	Scope string

	// Timescale is the unit of one simulation time step, such as 1ns.
	Timescale string
}

// NewVCDWriter writes the header of a dump describing every signal of k. If
// out is an io.Closer, it is closed by Close.
func NewVCDWriter(out io.Writer, k *sim.Kernel, opts VCDOptions) *VCDWriter {
	if opts.Scope == "" {
		opts.Scope = "top"
	}

	if opts.Timescale == "" {
		opts.Timescale = "1ns"
	}

	v := &VCDWriter{
		w:       bufio.NewWriter(out),
		codes:   make(map[sim.SignalID]string),
		pending: make(map[sim.SignalID]logic.Value),
	}

	if c, ok := out.(io.Closer); ok {
		v.closer = c
	}

	v.header(k.Signals(), opts)

	return v
}

// vcdCode returns the short identifier of the n-th variable, using the
// printable characters ! to ~.
func vcdCode(n int) string {
	const first, count = '!', '~' - '!' + 1

	var b []byte
	for {
		b = append(b, byte(first+n%count))
		n /= count
		if n == 0 {
			break
		}
		n--
	}

	return string(b)
}

// vcdReference splits a bit name such as q[3] into "q [3]".
func vcdReference(name string) string {
	if i := strings.IndexByte(name, '['); i > 0 && strings.HasSuffix(name, "]") {
		return name[:i] + " " + name[i:]
	}

	return name
}

func vcdVarType(kind string) string {
	switch kind {
	case "wand", "wor", "tri0", "tri1":
		return kind
	default:
		return "wire"
	}
}

func (v *VCDWriter) printf(format string, args ...any) {
	if v.err != nil {
		return
	}

	_, v.err = fmt.Fprintf(v.w, format, args...)
}

func (v *VCDWriter) header(signals []sim.SignalView, opts VCDOptions) {
	v.printf("$version hdlsim $end\n")
	v.printf("$timescale %s $end\n", opts.Timescale)
	v.printf("$scope module %s $end\n", opts.Scope)

	for i, s := range signals {
		code := vcdCode(i)
		v.codes[s.ID] = code
		v.printf("$var %s 1 %s %s $end\n", vcdVarType(s.Kind), code, vcdReference(s.Name))
	}

	v.printf("$upscope $end\n")
	v.printf("$enddefinitions $end\n")
	v.printf("#0\n$dumpvars\n")

	for _, s := range signals {
		v.printf("%s%s\n", s.Value, v.codes[s.ID])
	}

	v.printf("$end\n")
}

// RecordTransition buffers a change until its time step is over.
func (v *VCDWriter) RecordTransition(t sim.Transition) {
	if v.closed {
		return
	}

	if t.Time != v.now {
		v.flush()
		v.now = t.Time
	}

	v.pending[t.Signal] = t.To
}

// flush writes the values settled in the current time step.
func (v *VCDWriter) flush() {
	if len(v.pending) == 0 {
		return
	}

	ids := make([]sim.SignalID, 0, len(v.pending))
	for id := range v.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if v.now != 0 || v.started {
		v.printf("#%d\n", v.now)
	}
	v.started = true

	for _, id := range ids {
		v.printf("%s%s\n", v.pending[id], v.codes[id])
	}

	clear(v.pending)
}

// RecordTermination finishes the dump at the termination time.
func (v *VCDWriter) RecordTermination(t sim.Termination) {
	v.Handle(t.Time)
}

// Handle writes the last time step and flushes the output. It is safe to
// call more than once.
func (v *VCDWriter) Handle(now sim.VTime) {
	if v.closed {
		return
	}

	v.flush()

	if now > v.now {
		v.printf("#%d\n", now)
		v.now = now
	}

	if v.err == nil {
		v.err = v.w.Flush()
	}
}

// Close flushes the dump and closes the underlying writer.
func (v *VCDWriter) Close() error {
	if v.closed {
		return v.err
	}

	if v.err == nil {
		v.flush()
		v.err = v.w.Flush()
	}

	v.closed = true

	if v.closer != nil {
		if err := v.closer.Close(); err != nil && v.err == nil {
			v.err = err
		}
	}

	return v.err
}

// Err returns the first write error.
func (v *VCDWriter) Err() error {
	return v.err
}
