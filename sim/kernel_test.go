package sim

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/hdlsim/logic"
)

// driveAtInit returns a process that drives sig to d at initialization.
func driveAtInit(sig SignalID, d logic.Drive) Process {
	return ProcessFunc(func(ctx *EvalCtx) error {
		if ctx.IsInit() {
			return ctx.DriveStrength(sig, d, 0)
		}

		return nil
	})
}

// registerClock adds a process that toggles clk every half period.
func registerClock(k *Kernel, clk SignalID, half VTime) {
	k.MustRegister(ProcessSpec{
		Name: "clock",
		Process: ProcessFunc(func(ctx *EvalCtx) error {
			next := logic.L0
			if !ctx.IsInit() {
				next = logic.Not(ctx.Read(clk))
			}

			if err := ctx.Drive(clk, next, 0); err != nil {
				return err
			}

			return ctx.WakeAfter(half)
		}),
	})
}

var _ = Describe("Kernel", func() {
	var (
		mockCtrl *gomock.Controller
		k        *Kernel
		hook     *recordingHook
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		k = NewKernel()
		hook = &recordingHook{}
		k.AcceptHook(hook)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should commit a zero-delay drive in delta cycle 0 and wake sensitive processes", func() {
		a := k.MustDeclare("a", WithInit(logic.L0))
		k.MustRegister(ProcessSpec{Name: "P", Process: driveAtInit(a, logic.Strong1)})

		var qDeltas []int
		k.MustRegister(ProcessSpec{
			Name: "Q",
			Process: ProcessFunc(func(ctx *EvalCtx) error {
				qDeltas = append(qDeltas, ctx.Delta())
				return nil
			}),
			Sensitivity: []SignalID{a},
		})

		Expect(k.RunUntil(0)).To(Succeed())

		Expect(hook.transitions).To(Equal([]Transition{{
			Step:     Step{Time: 0, Delta: 0},
			Signal:   a,
			Name:     "a",
			From:     logic.L0,
			To:       logic.L1,
			Strength: logic.Strong,
		}}))
		Expect(qDeltas).To(Equal([]int{-1, 0}))
		Expect(hook.activationsOf("Q", 0)).To(Equal([]ProcessState{
			ProcessScheduled, ProcessRunning, ProcessIdle,
		}))
		Expect(k.CurrentTime()).To(Equal(VTime(0)))
		Expect(k.Status()).To(Equal(StatusReady))
	})

	It("should schedule a process once per delta cycle", func() {
		a := k.MustDeclare("a", WithInit(logic.L0))
		b := k.MustDeclare("b", WithInit(logic.L0))
		k.MustRegister(ProcessSpec{
			Name: "P",
			Process: ProcessFunc(func(ctx *EvalCtx) error {
				if !ctx.IsInit() {
					return nil
				}

				if err := ctx.Drive(a, logic.L1, 0); err != nil {
					return err
				}

				return ctx.Drive(b, logic.L1, 0)
			}),
		})

		runs := 0
		sawBoth := false
		k.MustRegister(ProcessSpec{
			Name: "Q",
			Process: ProcessFunc(func(ctx *EvalCtx) error {
				if ctx.Delta() == 0 {
					runs++
					sawBoth = ctx.Event(a) && ctx.Event(b) && ctx.Rising(a)
				}

				return nil
			}),
			Sensitivity: []SignalID{a, b, a},
		})

		Expect(k.Run()).To(Succeed())

		Expect(runs).To(Equal(1))
		Expect(sawBoth).To(BeTrue())
	})

	It("should not re-enter a process that drives its own trigger", func() {
		a := k.MustDeclare("a", WithInit(logic.L0))

		var deltas []int
		k.MustRegister(ProcessSpec{
			Name: "P",
			Process: ProcessFunc(func(ctx *EvalCtx) error {
				deltas = append(deltas, ctx.Delta())
				return ctx.Drive(a, logic.L1, 0)
			}),
			Sensitivity: []SignalID{a},
		})

		Expect(k.Run()).To(Succeed())

		Expect(deltas).To(Equal([]int{-1, 0}))
	})

	It("should resolve equal-strength conflicts to X and report them", func() {
		s := k.MustDeclare("s", WithInit(logic.L0))
		k.MustRegister(ProcessSpec{Name: "P1", Process: driveAtInit(s, logic.Strong0)})
		k.MustRegister(ProcessSpec{Name: "P2", Process: driveAtInit(s, logic.Strong1)})

		Expect(k.Run()).To(Succeed())

		v, err := k.Value(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(logic.X))

		Expect(hook.conflicts).To(HaveLen(1))
		Expect(hook.conflicts[0].Name).To(Equal("s"))
		Expect(hook.conflicts[0].Resolved).To(Equal(logic.X))
		Expect(hook.conflicts[0].Drivers).To(HaveLen(2))

		Expect(hook.transitions).To(HaveLen(1))
		Expect(hook.transitions[0].Conflict).To(BeTrue())
	})

	It("should report an unknown driver against a known one as a conflict", func() {
		s := k.MustDeclare("s", WithInit(logic.L0))
		k.MustRegister(ProcessSpec{Name: "P1", Process: driveAtInit(s, logic.StrongX)})
		k.MustRegister(ProcessSpec{Name: "P2", Process: driveAtInit(s, logic.Strong1)})

		Expect(k.Run()).To(Succeed())

		v, err := k.Value(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(logic.X))
		Expect(hook.conflicts).To(HaveLen(1))
		Expect(hook.conflicts[0].Name).To(Equal("s"))
	})

	It("should report conflicts even if the value does not change", func() {
		s := k.MustDeclare("s")
		k.MustRegister(ProcessSpec{Name: "P1", Process: driveAtInit(s, logic.Strong0)})
		k.MustRegister(ProcessSpec{Name: "P2", Process: driveAtInit(s, logic.Strong1)})

		Expect(k.Run()).To(Succeed())

		Expect(hook.transitions).To(BeEmpty())
		Expect(hook.conflicts).To(HaveLen(1))
	})

	It("should let the stronger driver win", func() {
		s := k.MustDeclare("s")
		k.MustRegister(ProcessSpec{
			Name:    "weak",
			Process: driveAtInit(s, logic.Drive{Value: logic.L0, Strength: logic.Pull}),
		})
		k.MustRegister(ProcessSpec{Name: "strong", Process: driveAtInit(s, logic.Strong1)})

		Expect(k.Run()).To(Succeed())

		v, _ := k.Value(s)
		Expect(v).To(Equal(logic.L1))
		Expect(hook.conflicts).To(BeEmpty())
	})

	It("should resolve wired nets with their net kind", func() {
		s := k.MustDeclare("s", WithNetKind(logic.WiredAnd))
		k.MustRegister(ProcessSpec{Name: "P1", Process: driveAtInit(s, logic.Strong0)})
		k.MustRegister(ProcessSpec{Name: "P2", Process: driveAtInit(s, logic.Strong1)})

		Expect(k.Run()).To(Succeed())

		v, _ := k.Value(s)
		Expect(v).To(Equal(logic.L0))
		Expect(hook.conflicts).To(BeEmpty())
	})

	It("should apply same-step events from one driver in insertion order", func() {
		a := k.MustDeclare("a")

		Expect(k.Schedule(a, logic.Strong1, 3)).To(Succeed())
		Expect(k.Schedule(a, logic.Strong0, 3)).To(Succeed())
		Expect(k.Run()).To(Succeed())

		Expect(hook.transitions).To(HaveLen(1))
		Expect(hook.transitions[0].To).To(Equal(logic.L0))
		Expect(hook.transitions[0].Time).To(Equal(VTime(3)))
	})

	It("should advance time and park at the RunUntil target", func() {
		clk := k.MustDeclare("clk")
		registerClock(k, clk, 5)

		Expect(k.RunUntil(12)).To(Succeed())
		Expect(k.CurrentTime()).To(Equal(VTime(12)))
		Expect(k.Pending()).To(Equal(1))

		Expect(k.RunUntil(30)).To(Succeed())

		var times []VTime
		for _, t := range hook.transitions {
			times = append(times, t.Time)
		}
		Expect(times).To(Equal([]VTime{0, 5, 10, 15, 20, 25, 30}))
	})

	It("should replay identically", func() {
		build := func() *recordingHook {
			k := NewKernel()
			h := &recordingHook{}
			k.AcceptHook(h)

			clk := k.MustDeclare("clk")
			q0 := k.MustDeclare("q0", WithInit(logic.L0))
			q1 := k.MustDeclare("q1", WithInit(logic.L0))
			x := k.MustDeclare("x")
			registerClock(k, clk, 2)

			k.MustRegister(ProcessSpec{
				Name: "bit0",
				Process: ProcessFunc(func(ctx *EvalCtx) error {
					if ctx.Rising(clk) {
						return ctx.Drive(q0, logic.Not(ctx.Read(q0)), 1)
					}
					return nil
				}),
				Sensitivity: []SignalID{clk},
			})
			k.MustRegister(ProcessSpec{
				Name: "bit1",
				Process: ProcessFunc(func(ctx *EvalCtx) error {
					if ctx.Falling(q0) {
						return ctx.Drive(q1, logic.Not(ctx.Read(q1)), 0)
					}
					return nil
				}),
				Sensitivity: []SignalID{q0},
			})
			k.MustRegister(ProcessSpec{
				Name: "xor",
				Process: ProcessFunc(func(ctx *EvalCtx) error {
					return ctx.Drive(x, logic.Xor(ctx.Read(q0), ctx.Read(q1)), 0)
				}),
				Sensitivity: []SignalID{q0, q1},
			})

			Expect(k.RunUntil(40)).To(Succeed())

			return h
		}

		first := build()
		second := build()

		Expect(first.transitions).NotTo(BeEmpty())
		Expect(second.transitions).To(Equal(first.transitions))
		Expect(second.activations).To(Equal(first.activations))
	})

	Context("when a zero-delay loop does not settle", func() {
		BeforeEach(func() {
			k = MakeKernelBuilder().WithMaxDeltaCycles(10).Build()
			k.AcceptHook(hook)
		})

		It("should halt when two processes toggle a shared signal", func() {
			s := k.MustDeclare("s", WithInit(logic.L0))
			k.MustRegister(ProcessSpec{
				Name: "setter",
				Process: ProcessFunc(func(ctx *EvalCtx) error {
					if ctx.Read(s) == logic.L1 {
						return ctx.Release(s, 0)
					}
					return ctx.Drive(s, logic.L1, 0)
				}),
				Sensitivity: []SignalID{s},
			})
			k.MustRegister(ProcessSpec{
				Name: "clearer",
				Process: ProcessFunc(func(ctx *EvalCtx) error {
					if ctx.Read(s) == logic.L1 {
						return ctx.Drive(s, logic.L0, 0)
					}
					return ctx.Release(s, 0)
				}),
				Sensitivity: []SignalID{s},
			})

			err := k.Run()

			var oscErr *OscillationError
			Expect(errors.As(err, &oscErr)).To(BeTrue())
			Expect(oscErr.Signals).To(Equal([]string{"s"}))
			Expect(oscErr.Delta).To(Equal(10))
			Expect(oscErr.Time).To(Equal(VTime(0)))
			Expect(k.Status()).To(Equal(StatusHalted))
			Expect(k.Pending()).To(Equal(0))
			Expect(k.Run()).To(MatchError(ErrHalted))
		})

		It("should name the last signal of a ring that keeps changing", func() {
			a := k.MustDeclare("a", WithInit(logic.L0))
			b := k.MustDeclare("b", WithInit(logic.L0))
			k.MustRegister(ProcessSpec{
				Name: "inv",
				Process: ProcessFunc(func(ctx *EvalCtx) error {
					return ctx.Drive(a, logic.Not(ctx.Read(b)), 0)
				}),
				Sensitivity: []SignalID{b},
			})
			k.MustRegister(ProcessSpec{
				Name: "buf",
				Process: ProcessFunc(func(ctx *EvalCtx) error {
					return ctx.Drive(b, ctx.Read(a), 0)
				}),
				Sensitivity: []SignalID{a},
			})

			err := k.RunUntil(100)

			var oscErr *OscillationError
			Expect(errors.As(err, &oscErr)).To(BeTrue())
			Expect(oscErr.Signals).To(Equal([]string{"b"}))
			Expect(hook.terminations).To(HaveLen(1))
			Expect(hook.terminations[0].Reason).To(Equal(TerminatedByError))
		})

		It("should name the processes that keep waking themselves", func() {
			k.MustDeclare("idle")
			k.MustRegister(ProcessSpec{
				Name: "spinner",
				Process: ProcessFunc(func(ctx *EvalCtx) error {
					return ctx.WakeAfter(0)
				}),
			})

			err := k.Run()

			var oscErr *OscillationError
			Expect(errors.As(err, &oscErr)).To(BeTrue())
			Expect(oscErr.Signals).To(BeEmpty())
			Expect(oscErr.Processes).To(Equal([]string{"spinner"}))
			Expect(err).To(MatchError(ContainSubstring("woken processes: spinner")))
		})
	})

	It("should reject out-of-range times", func() {
		a := k.MustDeclare("a")

		var driveErr error
		k.MustRegister(ProcessSpec{
			Name: "late",
			Process: ProcessFunc(func(ctx *EvalCtx) error {
				if ctx.IsInit() {
					return ctx.WakeAfter(1)
				}

				driveErr = ctx.Drive(a, logic.L1, MaxTime)
				return nil
			}),
		})

		Expect(k.RunUntil(10)).To(Succeed())

		Expect(driveErr).To(MatchError(ErrTimeOutOfRange))
		Expect(k.Schedule(a, logic.Strong1, 5)).To(MatchError(ErrTimeOutOfRange))
		Expect(k.RunUntil(5)).To(MatchError(ErrTimeOutOfRange))
		Expect(k.Schedule(SignalID(42), logic.Strong1, 20)).To(MatchError(ErrUnknownSignal))
	})

	It("should stop on request and drop pending events", func() {
		clk := k.MustDeclare("clk")
		registerClock(k, clk, 5)
		k.MustRegister(ProcessSpec{
			Name: "stopper",
			Process: ProcessFunc(func(ctx *EvalCtx) error {
				if ctx.Now() >= 20 {
					ctx.Stop()
				}
				return nil
			}),
			Sensitivity: []SignalID{clk},
		})

		endHandler := NewMockSimulationEndHandler(mockCtrl)
		endHandler.EXPECT().Handle(VTime(20))
		k.RegisterSimulationEndHandler(endHandler)

		Expect(k.Run()).To(Succeed())

		Expect(k.Status()).To(Equal(StatusFinished))
		Expect(k.CurrentTime()).To(Equal(VTime(20)))
		Expect(hook.terminations).To(HaveLen(1))
		Expect(hook.terminations[0].Reason).To(Equal(TerminatedByStop))
		Expect(hook.terminations[0].Dropped).To(Equal(1))
		Expect(k.Run()).To(MatchError(ErrFinished))

		info, err := k.Process(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.State).To(Equal(ProcessRetired))
	})

	It("should stop from a process while a pause is waiting for the delta cycle", func() {
		a := k.MustDeclare("a", WithInit(logic.L0))
		k.MustRegister(ProcessSpec{Name: "P", Process: driveAtInit(a, logic.Strong1)})

		paused := make(chan struct{})
		k.MustRegister(ProcessSpec{
			Name: "Q",
			Process: ProcessFunc(func(ctx *EvalCtx) error {
				if ctx.IsInit() {
					return nil
				}

				go func() {
					k.Pause()
					close(paused)
				}()
				time.Sleep(20 * time.Millisecond)
				ctx.Stop()

				return nil
			}),
			Sensitivity: []SignalID{a},
		})

		done := make(chan error, 1)
		go func() { done <- k.Run() }()

		var err error
		Eventually(done, "2s").Should(Receive(&err))
		Expect(err).NotTo(HaveOccurred())
		Expect(k.Status()).To(Equal(StatusFinished))
		Eventually(paused, "2s").Should(BeClosed())
		k.Continue()
	})

	It("should keep a paused kernel waiting until it is stopped", func() {
		clk := k.MustDeclare("clk")
		registerClock(k, clk, 5)
		Expect(k.RunUntil(10)).To(Succeed())

		k.Pause()

		done := make(chan error, 1)
		go func() { done <- k.Run() }()

		Consistently(done, "50ms").ShouldNot(Receive())
		Expect(k.CurrentTime()).To(Equal(VTime(10)))

		k.Stop()

		var err error
		Eventually(done, "2s").Should(Receive(&err))
		Expect(err).NotTo(HaveOccurred())
		Expect(k.Status()).To(Equal(StatusFinished))
	})

	It("should terminate at the configured end time", func() {
		k = MakeKernelBuilder().WithEndTime(22).Build()
		k.AcceptHook(hook)
		clk := k.MustDeclare("clk")
		registerClock(k, clk, 5)

		Expect(k.Run()).To(Succeed())

		Expect(k.CurrentTime()).To(Equal(VTime(22)))
		Expect(k.Status()).To(Equal(StatusFinished))
		Expect(hook.terminations[0].Reason).To(Equal(TerminatedByEndTime))
		Expect(hook.transitions).To(HaveLen(5))
	})

	It("should halt when a process fails", func() {
		boom := errors.New("boom")
		k.MustRegister(ProcessSpec{
			Name:    "faulty",
			Process: ProcessFunc(func(*EvalCtx) error { return boom }),
		})

		err := k.Run()

		var procErr *ProcessError
		Expect(errors.As(err, &procErr)).To(BeTrue())
		Expect(procErr.Process).To(Equal("faulty"))
		Expect(errors.Is(err, boom)).To(BeTrue())
		Expect(k.Status()).To(Equal(StatusHalted))
	})

	It("should evaluate every process once at start-up", func() {
		p := NewMockProcess(mockCtrl)
		p.EXPECT().Evaluate(gomock.Any()).Return(nil).Times(1)

		k.MustRegister(ProcessSpec{Name: "mock", Process: p})

		Expect(k.Run()).To(Succeed())
	})

	It("should validate registration", func() {
		a := k.MustDeclare("a")

		_, err := k.Declare("a")
		Expect(err).To(MatchError(ErrDuplicateName))

		_, err = k.Register(ProcessSpec{Name: "p", Process: driveAtInit(a, logic.Strong1), Sensitivity: []SignalID{7}})
		Expect(err).To(MatchError(ErrUnknownSignal))

		k.MustRegister(ProcessSpec{Name: "p", Process: driveAtInit(a, logic.Strong1)})
		_, err = k.Register(ProcessSpec{Name: "p", Process: driveAtInit(a, logic.Strong1)})
		Expect(err).To(MatchError(ErrDuplicateName))

		Expect(k.Run()).To(Succeed())

		_, err = k.Declare("b")
		Expect(err).To(MatchError(ErrKernelStarted))
		_, err = k.Register(ProcessSpec{Name: "q", Process: driveAtInit(a, logic.Strong1)})
		Expect(err).To(MatchError(ErrKernelStarted))
	})

	It("should expose snapshots of signals and processes", func() {
		a := k.MustDeclare("a", WithInit(logic.L0))
		k.MustRegister(ProcessSpec{Name: "P", Process: driveAtInit(a, logic.Strong1), Sensitivity: []SignalID{a}})

		Expect(k.Run()).To(Succeed())

		views := k.Signals()
		Expect(views).To(HaveLen(1))
		Expect(views[0].Value).To(Equal("1"))
		Expect(views[0].Drivers).To(HaveLen(1))
		Expect(views[0].Fanout).To(Equal([]ProcessID{0}))

		procs := k.Processes()
		Expect(procs).To(HaveLen(1))
		Expect(procs[0].Activations).To(Equal(uint64(2)))
		Expect(procs[0].State).To(Equal(ProcessIdle))
	})
})
