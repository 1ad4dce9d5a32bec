package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/hdlsim/hwlib"
	"github.com/sarchlab/hdlsim/simulation"
)

func newCheckCmd() *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check <design.yaml>",
		Short: "Validate a design without simulating it.",
		Long: "`check design.yaml` loads and elaborates the design. With " +
			"--vectors, it also binds the vector file to the design.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b := simulation.MakeBuilder().WithDesign(args[0])
			if v, _ := cmd.Flags().GetString("vectors"); v != "" {
				b = b.WithVectors(v)
			}

			s, err := b.Build()
			if err != nil {
				return err
			}
			defer s.Terminate()

			d := s.Design()
			k := s.Kernel()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "design %s: %d signals, %d processes\n",
				d.Name, k.NumSignals(), k.NumProcesses())

			counts := d.InstanceTypes()
			for _, t := range d.SortedTypes() {
				fmt.Fprintf(out, "  %-10s %d\n", t, counts[t])
			}

			return nil
		},
	}

	checkCmd.Flags().String("vectors", "", "Vector file to bind")

	return checkCmd
}

func newPartsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parts",
		Short: "List the part types a design can instantiate.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, t := range hwlib.Types() {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
		},
	}
}
