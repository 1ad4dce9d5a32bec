// Package design loads netlists described in YAML and elaborates them into a
// simulation kernel.
//
// A design lists signals and part instances:
//
//	name: counter
//	end_time: 200
//	signals:
//	  - name: clk
//	  - name: q
//	    width: 2
//	    init: "00"
//	  - name: bus
//	    kind: tri1
//	instances:
//	  - type: clock
//	    name: clkgen
//	    out: [clk]
//	    params: {period: 10}
//	  - type: dff
//	    name: ff0
//	    in: [d0, clk]
//	    out: ["q[0]"]
//	    delay: 1
//
// Pin references name a whole signal, one bit (q[1]) or a bit range
// (q[0..3]). A bus reference expands to its bits, least significant first.
package design

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Design is the parsed form of a netlist file.
type Design struct {
	Name      string     `yaml:"name"`
	EndTime   *uint64    `yaml:"end_time,omitempty"`
	Signals   []Signal   `yaml:"signals"`
	Instances []Instance `yaml:"instances"`
}

// Signal declares a net or a bus.
type Signal struct {
	Name string `yaml:"name"`

	// Width is the number of bits. A width of 0 or 1 declares a single net;
	// wider signals declare name[0] to name[width-1].
	Width int `yaml:"width,omitempty"`

	// Init is the initial value, either one character for every bit or one
	// character per bit, most significant first. Signals start at x
	// otherwise.
	Init string `yaml:"init,omitempty"`

	// Kind is one of wire, wand, wor, tri0 or tri1.
	Kind string `yaml:"kind,omitempty"`
}

// Instance places a part from the hwlib registry.
type Instance struct {
	Type     string            `yaml:"type"`
	Name     string            `yaml:"name"`
	In       []string          `yaml:"in,omitempty"`
	Out      []string          `yaml:"out,omitempty"`
	Delay    uint64            `yaml:"delay,omitempty"`
	Strength string            `yaml:"strength,omitempty"`
	Params   map[string]string `yaml:"params,omitempty"`
}

// Parse reads a design. Unknown fields are rejected.
func Parse(r io.Reader) (*Design, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	d := &Design{}
	if err := dec.Decode(d); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty design")
		}

		return nil, errors.Wrap(err, "parse design")
	}

	return d, nil
}

// ParseFile reads a design from a file.
func ParseFile(path string) (*Design, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open design")
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	return d, nil
}
