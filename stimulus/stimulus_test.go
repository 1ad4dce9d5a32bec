package stimulus_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hdlsim/design"
	"github.com/sarchlab/hdlsim/logic"
	"github.com/sarchlab/hdlsim/sim"
	"github.com/sarchlab/hdlsim/stimulus"
)

func mustParse(src string) []stimulus.Vector {
	vectors, err := stimulus.Parse(strings.NewReader(src))
	Expect(err).NotTo(HaveOccurred())

	return vectors
}

var _ = Describe("Vectors", func() {
	It("should parse and sort lines", func() {
		vectors := mustParse(`
# header
10 expect q=0_1   # trailing comment
5 set a=1 b=10

10 set a=z
`)

		Expect(vectors).To(HaveLen(3))
		Expect(vectors[0].Time).To(Equal(sim.VTime(5)))
		Expect(vectors[0].Line).To(Equal(4))
		Expect(vectors[0].Assignments).To(Equal([]stimulus.Assignment{
			{Ref: "a", Bits: []logic.Value{logic.L1}},
			{Ref: "b", Bits: []logic.Value{logic.L0, logic.L1}},
		}))
		Expect(vectors[1].Op).To(Equal(stimulus.OpExpect))
		Expect(vectors[1].Assignments[0].Bits).To(Equal([]logic.Value{logic.L1, logic.L0}))
		Expect(vectors[2].Op).To(Equal(stimulus.OpSet))
	})

	DescribeTable("should reject malformed lines",
		func(src, msg string) {
			_, err := stimulus.Parse(strings.NewReader(src))
			Expect(err).To(MatchError(ContainSubstring(msg)))
		},
		Entry("missing fields", "1 set", "line 1"),
		Entry("bad time", "soon set a=1", "time"),
		Entry("bad op", "1 force a=1", "unknown operation"),
		Entry("bad assignment", "\n1 set a", "line 2"),
		Entry("bad bits", "1 set a=2", "assignment"),
	)
})

var _ = Describe("Driver and Checker", func() {
	var (
		k *sim.Kernel
		n *design.Netlist
	)

	BeforeEach(func() {
		var err error

		k = sim.NewKernel()
		n, err = design.Load("../design/testdata/counter.yaml", k)
		Expect(err).NotTo(HaveOccurred())
	})

	attach := func(vectors []stimulus.Vector) (*stimulus.Driver, *stimulus.Checker) {
		d, err := stimulus.NewDriver("vectors", vectors, n)
		Expect(err).NotTo(HaveOccurred())
		k.MustRegister(d.Spec())

		c, err := stimulus.NewChecker("checker", vectors, n)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Attach(k)).To(Succeed())

		return d, c
	}

	It("should pass the counter vectors", func() {
		vectors, err := stimulus.ParseFile("../design/testdata/counter.vec")
		Expect(err).NotTo(HaveOccurred())

		d, c := attach(vectors)
		Expect(k.RunUntil(50)).To(Succeed())

		report := c.Report()
		Expect(report.Mismatches).To(BeEmpty())
		Expect(report.Checked).To(Equal(5))
		Expect(report.Passed()).To(BeTrue())
		Expect(d.Remaining()).To(Equal(0))
	})

	It("should report mismatches", func() {
		_, c := attach(mustParse(`
3 set rst=0
10 expect q=01 clk=0
20 expect q=11
`))

		Expect(k.RunUntil(50)).To(Succeed())

		report := c.Report()
		Expect(report.Checked).To(Equal(3))
		Expect(report.Passed()).To(BeFalse())
		Expect(report.Mismatches).To(Equal([]stimulus.Mismatch{
			{Line: 3, Time: 10, Ref: "clk", Want: "0", Got: "1"},
			{Line: 4, Time: 20, Ref: "q", Want: "11", Got: "10"},
		}))
		Expect(report.Mismatches[1].String()).To(Equal("line 4, time 20: q = 10, want 11"))
	})

	It("should sample before the events of the step commit", func() {
		_, c := attach(mustParse(`
0 expect rst=1 q=xx
3 set rst=0
3 expect rst=1
4 expect rst=0
`))

		Expect(k.RunUntil(10)).To(Succeed())

		Expect(c.Report().Mismatches).To(BeEmpty())
		Expect(c.Report().Checked).To(Equal(4))
	})

	It("should count expectations that were never reached", func() {
		_, c := attach(mustParse("100 expect q=00 clk=0"))

		Expect(k.RunUntil(50)).To(Succeed())

		report := c.Report()
		Expect(report.Unreached).To(Equal(2))
		Expect(report.Passed()).To(BeFalse())
	})

	It("should apply time-zero sets during initialization", func() {
		attach(mustParse("0 set rst=0"))

		Expect(k.RunUntil(0)).To(Succeed())

		rst, _ := k.Lookup("rst")
		v, _ := k.Value(rst)
		Expect(v).To(Equal(logic.L0))
	})

	It("should reject references that do not fit", func() {
		_, err := stimulus.NewDriver("d", mustParse("1 set q=1"), n)
		Expect(err).To(MatchError(ContainSubstring("q has 2 bits")))

		_, err = stimulus.NewChecker("c", mustParse("1 expect nope=1"), n)
		Expect(err).To(MatchError(ContainSubstring("line 1")))
		Expect(err).To(MatchError(sim.ErrUnknownSignal))
	})
})
