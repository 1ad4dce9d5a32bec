// Command hdlsim simulates a YAML netlist and checks it against a vector
// file.
package main

import "github.com/sarchlab/hdlsim/cmd/hdlsim/cmd"

func main() {
	cmd.Execute()
}
