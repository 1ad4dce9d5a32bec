package cmd

import (
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/sarchlab/hdlsim/sim"
	"github.com/sarchlab/hdlsim/simulation"
	"github.com/sarchlab/hdlsim/tracing"
)

// runEnv maps the flags of the run command to their environment variables.
var runEnv = map[string]string{
	"max-delta": "HDLSIM_MAX_DELTA",
	"end":       "HDLSIM_END_TIME",
	"vcd":       "HDLSIM_VCD",
	"db":        "HDLSIM_DB",
	"port":      "HDLSIM_MONITOR_PORT",
}

func newRunCmd(e *env) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <design.yaml>",
		Short: "Simulate a design.",
		Long: "`run design.yaml --vectors design.vec` simulates the design, " +
			"applies the set lines of the vector file and checks its expect " +
			"lines. The command exits with 2 if an expect line fails.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.applyDefaults(cmd, runEnv); err != nil {
				return err
			}

			return runSimulation(cmd, e, args[0])
		},
	}

	flags := runCmd.Flags()
	flags.String("vectors", "", "Vector file to apply and check")
	flags.Uint64("until", 0, "Run up to this time and stop there")
	flags.Uint64("end", 0, "End time, overriding the design file")
	flags.String("vcd", "", "Write a value change dump")
	flags.String("db", "", "Record the run into an SQLite file")
	flags.Bool("activations", false, "Also record process activations")
	flags.Bool("monitor", false, "Start the monitoring server")
	flags.Int("port", 0, "Port of the monitoring server")
	flags.Bool("open", false, "Open the monitoring page in a browser")
	flags.Int("max-delta", sim.DefaultMaxDeltaCycles,
		"Delta cycles after which a time step is oscillating")
	flags.Bool("log", false, "Log conflicts and the termination")
	flags.Bool("log-transitions", false, "Also log every transition")
	flags.Int("activity", 0, "Print the n most active signals and processes")

	return runCmd
}

func buildSimulation(
	cmd *cobra.Command,
	e *env,
	designPath string,
) (*simulation.Simulation, error) {
	flags := cmd.Flags()

	b := simulation.MakeBuilder().WithDesign(designPath)

	if v, _ := flags.GetString("vectors"); v != "" {
		b = b.WithVectors(v)
	}

	if flags.Changed("end") {
		end, _ := flags.GetUint64("end")
		b = b.WithEndTime(sim.VTime(end))
	}

	maxDelta, _ := flags.GetInt("max-delta")
	if maxDelta < 1 {
		return nil, fmt.Errorf("max-delta must be positive, got %d", maxDelta)
	}
	b = b.WithMaxDeltaCycles(maxDelta)

	if v, _ := flags.GetString("vcd"); v != "" {
		b = b.WithVCD(v)
	}

	if v, _ := flags.GetString("db"); v != "" {
		b = b.WithSQLite(v)

		if a, _ := flags.GetBool("activations"); a {
			b = b.WithActivations()
		}
	}

	logOn, _ := flags.GetBool("log")
	logTransitions, _ := flags.GetBool("log-transitions")
	if logOn || logTransitions || e.enabled("HDLSIM_LOG") {
		b = b.WithLogger(log.New(cmd.ErrOrStderr(), "", 0))

		if logTransitions {
			b = b.WithTransitionLog()
		}
	}

	if n, _ := flags.GetInt("activity"); n > 0 {
		b = b.WithActivity()
	}

	monitorOn, _ := flags.GetBool("monitor")
	if monitorOn || e.enabled("HDLSIM_MONITOR") {
		port, _ := flags.GetInt("port")
		b = b.WithMonitor(port)

		if open, _ := flags.GetBool("open"); open {
			b = b.WithBrowser()
		}
	}

	return b.Build()
}

func runSimulation(cmd *cobra.Command, e *env, designPath string) error {
	s, err := buildSimulation(cmd, e, designPath)
	if err != nil {
		return err
	}
	defer s.Terminate()

	var r simulation.Result
	if cmd.Flags().Changed("until") {
		until, _ := cmd.Flags().GetUint64("until")
		r, err = s.RunUntil(sim.VTime(until))
	} else {
		r, err = s.Run()
	}

	printSummary(cmd.OutOrStdout(), s, r)

	if n, _ := cmd.Flags().GetInt("activity"); n > 0 {
		printActivity(cmd.OutOrStdout(), s.Activity(), n)
	}

	if terr := s.Terminate(); terr != nil && err == nil {
		err = terr
	}

	if err != nil {
		return err
	}

	if !r.Passed() {
		return &exitError{code: exitMismatch, msg: "vector check failed"}
	}

	return nil
}

func printSummary(w io.Writer, s *simulation.Simulation, r simulation.Result) {
	k := s.Kernel()

	fmt.Fprintf(w, "design %s: %d signals, %d processes\n",
		s.Design().Name, k.NumSignals(), k.NumProcesses())

	if r.Termination != nil {
		fmt.Fprintf(w, "time %d, %s (%s, %d events dropped)\n",
			r.Time, r.Status, r.Termination.Reason, r.Termination.Dropped)
	} else {
		fmt.Fprintf(w, "time %d, %s (%d events pending)\n",
			r.Time, r.Status, k.Pending())
	}

	fmt.Fprintf(w, "%d transitions, %d conflicts\n", r.Transitions, r.Conflicts)

	if r.Report == nil {
		return
	}

	fmt.Fprintf(w, "vectors: %d checked, %d unreached, %d mismatches\n",
		r.Report.Checked, r.Report.Unreached, len(r.Report.Mismatches))

	for _, m := range r.Report.Mismatches {
		fmt.Fprintf(w, "  %s\n", m)
	}
}

func printActivity(w io.Writer, c *tracing.ActivityCounter, n int) {
	fmt.Fprintln(w, "most active signals:")
	for _, a := range c.MostActiveSignals(n) {
		fmt.Fprintf(w, "  %-16s %d\n", a.Name, a.Count)
	}

	fmt.Fprintln(w, "most active processes:")
	for _, a := range c.MostActiveProcesses(n) {
		fmt.Fprintf(w, "  %-16s %d\n", a.Name, a.Count)
	}
}
