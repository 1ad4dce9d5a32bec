package simulation

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hdlsim/datarecording"
	"github.com/sarchlab/hdlsim/sim"
	"github.com/sarchlab/hdlsim/stimulus"
	"github.com/sarchlab/hdlsim/tracing"
)

const (
	halfAdder        = "testdata/halfadder.yaml"
	halfAdderVectors = "testdata/halfadder.vec"
	badVectors       = "testdata/halfadder_bad.vec"
	ring             = "testdata/ring.yaml"
)

var _ = Describe("Simulation", func() {
	var s *Simulation

	AfterEach(func() {
		if s != nil {
			Expect(s.Terminate()).To(Succeed())
			s = nil
		}
	})

	It("should run a design against its vectors", func() {
		var err error
		s, err = MakeBuilder().
			WithDesign(halfAdder).
			WithVectors(halfAdderVectors).
			Build()
		Expect(err).NotTo(HaveOccurred())

		r, err := s.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(r.Passed()).To(BeTrue())
		Expect(r.Time).To(Equal(sim.VTime(25)))
		Expect(r.Status).To(Equal(sim.StatusReady))
		Expect(r.Termination).To(BeNil())
		Expect(r.Transitions).To(Equal(9))
		Expect(r.Conflicts).To(Equal(0))
		Expect(r.Report.Checked).To(Equal(6))
	})

	It("should report mismatches", func() {
		var err error
		s, err = MakeBuilder().
			WithDesign(halfAdder).
			WithVectors(badVectors).
			Build()
		Expect(err).NotTo(HaveOccurred())

		r, err := s.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(r.Passed()).To(BeFalse())
		Expect(r.Report.Mismatches).To(Equal([]stimulus.Mismatch{
			{Line: 3, Time: 15, Ref: "s", Want: "0", Got: "1"},
		}))
	})

	It("should terminate at the end time", func() {
		var err error
		s, err = MakeBuilder().
			WithDesign(halfAdder).
			WithVectors(halfAdderVectors).
			WithEndTime(12).
			Build()
		Expect(err).NotTo(HaveOccurred())

		r, err := s.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(r.Status).To(Equal(sim.StatusFinished))
		Expect(r.Termination).NotTo(BeNil())
		Expect(r.Termination.Reason).To(Equal(sim.TerminatedByEndTime))
		Expect(r.Report.Unreached).To(Equal(4))
		Expect(r.Passed()).To(BeFalse())
	})

	It("should park and resume", func() {
		var err error
		s, err = MakeBuilder().
			WithDesign(halfAdder).
			WithVectors(halfAdderVectors).
			Build()
		Expect(err).NotTo(HaveOccurred())

		r, err := s.RunUntil(16)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Time).To(Equal(sim.VTime(16)))
		Expect(r.Report.Checked).To(Equal(4))
		Expect(r.Report.Unreached).To(Equal(2))

		r, err = s.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Passed()).To(BeTrue())
	})

	It("should halt on oscillation", func() {
		var err error
		s, err = MakeBuilder().
			WithDesign(ring).
			WithMaxDeltaCycles(20).
			Build()
		Expect(err).NotTo(HaveOccurred())

		r, err := s.Run()

		var oscErr *sim.OscillationError
		Expect(errors.As(err, &oscErr)).To(BeTrue())
		Expect(oscErr.Signals).To(Equal([]string{"a"}))
		Expect(r.Status).To(Equal(sim.StatusHalted))
		Expect(r.Termination.Reason).To(Equal(sim.TerminatedByError))
		Expect(r.Passed()).To(BeFalse())
	})

	It("should write a VCD and an SQLite file", func() {
		dir := GinkgoT().TempDir()
		vcdPath := filepath.Join(dir, "out.vcd")
		dbPath := filepath.Join(dir, "out")

		var err error
		s, err = MakeBuilder().
			WithDesign(halfAdder).
			WithVectors(halfAdderVectors).
			WithVCD(vcdPath).
			WithSQLite(dbPath).
			WithActivations().
			Build()
		Expect(err).NotTo(HaveOccurred())

		_, err = s.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Terminate()).To(Succeed())
		Expect(s.Terminate()).To(Succeed())

		vcd, err := os.ReadFile(vcdPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(vcd)).To(ContainSubstring("$scope module halfadder $end"))
		Expect(string(vcd)).To(ContainSubstring("#21\n"))

		reader, err := datarecording.NewReader(dbPath + datarecording.Extension)
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		reader.MapTable(tracing.TransitionTable, tracing.TransitionEntry{})
		reader.MapTable(datarecording.ExecTable, datarecording.ExecInfo{})

		ctx := context.Background()

		_, total, err := reader.Query(ctx, tracing.TransitionTable, datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(9))

		info, _, err := reader.Query(ctx, datarecording.ExecTable, datarecording.QueryParams{
			Where: "Property = ?",
			Args:  []any{"Design"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(info).To(Equal([]any{
			&datarecording.ExecInfo{Property: "Design", Value: halfAdder},
		}))

		reader.MapTable(tracing.ActivationTable, tracing.ActivationEntry{})
		Expect(reader.ListTables()).To(ContainElements(
			tracing.ActivationTable, tracing.TransitionTable, datarecording.ExecTable))

		_, activations, err := reader.Query(ctx, tracing.ActivationTable, datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(activations).To(BeNumerically(">", 0))

		runs, _, err := reader.Query(ctx, tracing.ActivationTable, datarecording.QueryParams{
			Where: "Process = ? AND State = ? AND Time = ?",
			Args:  []any{"sum", "Running", 10},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(Equal([]any{
			&tracing.ActivationEntry{Time: 10, Delta: 1, Process: "sum", State: "Running"},
		}))
	})

	It("should log transitions", func() {
		var buf bytes.Buffer

		var err error
		s, err = MakeBuilder().
			WithDesign(halfAdder).
			WithVectors(halfAdderVectors).
			WithLogger(log.New(&buf, "", 0)).
			WithTransitionLog().
			Build()
		Expect(err).NotTo(HaveOccurred())

		_, err = s.Run()
		Expect(err).NotTo(HaveOccurred())

		Expect(buf.String()).To(ContainSubstring("21+0 c 0 -> 1\n"))
	})

	It("should start the monitor", func() {
		var err error
		s, err = MakeBuilder().
			WithDesign(halfAdder).
			WithMonitor(0).
			Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Monitor()).NotTo(BeNil())
	})

	It("should reject bad inputs", func() {
		_, err := MakeBuilder().Build()
		Expect(err).To(MatchError("no design file given"))

		_, err = MakeBuilder().WithDesign("testdata/missing.yaml").Build()
		Expect(err).To(HaveOccurred())

		_, err = MakeBuilder().
			WithDesign(halfAdder).
			WithVectors("testdata/missing.vec").
			Build()
		Expect(err).To(HaveOccurred())
	})

	It("should reject inconsistent options", func() {
		Expect(func() {
			_, _ = MakeBuilder().WithDesign(halfAdder).WithActivations().Build()
		}).To(Panic())

		Expect(func() {
			_, _ = MakeBuilder().WithDesign(halfAdder).WithTransitionLog().Build()
		}).To(Panic())

		Expect(func() {
			_, _ = MakeBuilder().WithDesign(halfAdder).WithBrowser().Build()
		}).To(Panic())
	})
})
