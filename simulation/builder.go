package simulation

import (
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/xid"

	"github.com/sarchlab/hdlsim/datarecording"
	"github.com/sarchlab/hdlsim/design"
	"github.com/sarchlab/hdlsim/monitoring"
	"github.com/sarchlab/hdlsim/sim"
	"github.com/sarchlab/hdlsim/stimulus"
	"github.com/sarchlab/hdlsim/tracing"
)

// Names of the processes that apply and check a vector file.
const (
	DriverName  = "vectors.driver"
	CheckerName = "vectors.checker"
)

// Builder can be used to build a simulation.
type Builder struct {
	designPath  string
	vectorsPath string

	maxDelta   int
	endTime    sim.VTime
	hasEndTime bool

	vcdPath string

	dbOn          bool
	dbPath        string
	dbActivations bool

	monitorOn   bool
	monitorPort int
	openBrowser bool

	logger         *log.Logger
	logTransitions bool

	activity bool
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithDesign sets the YAML netlist to simulate.
func (b Builder) WithDesign(path string) Builder {
	b.designPath = path
	return b
}

// WithVectors sets the vector file that drives and checks the design.
func (b Builder) WithVectors(path string) Builder {
	b.vectorsPath = path
	return b
}

// WithMaxDeltaCycles sets the number of delta cycles after which a time
// step is considered oscillating.
func (b Builder) WithMaxDeltaCycles(n int) Builder {
	b.maxDelta = n
	return b
}

// WithEndTime sets the time at which the simulation terminates. It
// overrides the end time of the design file.
func (b Builder) WithEndTime(t sim.VTime) Builder {
	b.endTime = t
	b.hasEndTime = true
	return b
}

// WithVCD dumps the waveforms into a VCD file.
func (b Builder) WithVCD(path string) Builder {
	b.vcdPath = path
	return b
}

// WithSQLite records the simulation into an SQLite file. An empty path
// generates a unique file name.
func (b Builder) WithSQLite(path string) Builder {
	b.dbOn = true
	b.dbPath = path
	return b
}

// WithActivations also records every process state change into the SQLite
// file.
func (b Builder) WithActivations() Builder {
	b.dbActivations = true
	return b
}

// WithMonitor starts the monitoring server. A port of 0 picks a random
// port.
func (b Builder) WithMonitor(port int) Builder {
	b.monitorOn = true
	b.monitorPort = port
	return b
}

// WithBrowser opens the monitoring page once the server is up.
func (b Builder) WithBrowser() Builder {
	b.openBrowser = true
	return b
}

// WithLogger reports conflicts and the termination into logger.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// WithTransitionLog also reports every committed transition into the
// logger.
func (b Builder) WithTransitionLog() Builder {
	b.logTransitions = true
	return b
}

// WithActivity counts the transitions of every signal and the evaluations
// of every process.
func (b Builder) WithActivity() Builder {
	b.activity = true
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.dbActivations && !b.dbOn {
		panic("activations cannot be recorded without an SQLite file")
	}

	if b.logTransitions && b.logger == nil {
		panic("transition log requires a logger")
	}

	if b.openBrowser && !b.monitorOn {
		panic("browser cannot be opened when monitoring is disabled")
	}
}

// Build loads the design and wires the kernel with every requested
// recorder.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	if b.designPath == "" {
		return nil, errors.New("no design file given")
	}

	d, err := design.ParseFile(b.designPath)
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		id:     xid.New().String(),
		design: d,
	}

	s.kernel = b.buildKernel(d)
	s.kernel.AcceptHook(&simulationHook{s: s})

	s.netlist, err = d.Elaborate(s.kernel)
	if err != nil {
		return nil, errors.Wrapf(err, "design %s", b.designPath)
	}

	if err := b.attachVectors(s); err != nil {
		return nil, err
	}

	if err := b.attachRecorders(s); err != nil {
		s.Terminate()
		return nil, err
	}

	if b.monitorOn {
		b.startMonitor(s)
	}

	return s, nil
}

func (b Builder) buildKernel(d *design.Design) *sim.Kernel {
	kb := sim.MakeKernelBuilder()

	if b.maxDelta > 0 {
		kb = kb.WithMaxDeltaCycles(b.maxDelta)
	}

	switch {
	case b.hasEndTime:
		kb = kb.WithEndTime(b.endTime)
	case d.EndTime != nil:
		kb = kb.WithEndTime(sim.VTime(*d.EndTime))
	}

	return kb.Build()
}

func (b Builder) endTimeOf(d *design.Design) (sim.VTime, bool) {
	switch {
	case b.hasEndTime:
		return b.endTime, true
	case d.EndTime != nil:
		return sim.VTime(*d.EndTime), true
	default:
		return 0, false
	}
}

func (b Builder) attachVectors(s *Simulation) error {
	if b.vectorsPath == "" {
		return nil
	}

	vectors, err := stimulus.ParseFile(b.vectorsPath)
	if err != nil {
		return err
	}

	driver, err := stimulus.NewDriver(DriverName, vectors, s.netlist)
	if err != nil {
		return errors.Wrapf(err, "vectors %s", b.vectorsPath)
	}

	if _, err := s.kernel.Register(driver.Spec()); err != nil {
		return err
	}

	s.checker, err = stimulus.NewChecker(CheckerName, vectors, s.netlist)
	if err != nil {
		return errors.Wrapf(err, "vectors %s", b.vectorsPath)
	}

	return s.checker.Attach(s.kernel)
}

func (b Builder) attachRecorders(s *Simulation) error {
	if b.vcdPath != "" {
		f, err := os.Create(b.vcdPath)
		if err != nil {
			return errors.Wrap(err, "cannot create VCD file")
		}

		s.vcd = tracing.NewVCDWriter(f, s.kernel, tracing.VCDOptions{Scope: s.design.Name})
		tracing.CollectTrace(s.kernel, s.vcd)
	}

	if b.dbOn {
		backend, err := datarecording.New(b.dbPath)
		if err != nil {
			return errors.Wrap(err, "cannot create SQLite file")
		}

		s.dataRecorder = backend
		s.dbRecorder = tracing.NewDBRecorder(backend, s.kernel, b.dbActivations)
		tracing.CollectTrace(s.kernel, s.dbRecorder)

		s.execRecorder = datarecording.NewExecRecorder(backend)
		s.execRecorder.Start()
		s.execRecorder.Set("Simulation ID", s.id)
		s.execRecorder.Set("Design", b.designPath)
		if b.vectorsPath != "" {
			s.execRecorder.Set("Vectors", b.vectorsPath)
		}
	}

	if b.activity {
		s.activity = tracing.NewActivityCounter(nil)
		tracing.CollectTrace(s.kernel, s.activity)
	}

	if b.logger != nil {
		s.kernel.AcceptHook(tracing.NewConflictLogger(b.logger))
		s.kernel.AcceptHook(tracing.NewTerminationLogger(b.logger))

		if b.logTransitions {
			s.kernel.AcceptHook(tracing.NewTransitionLogger(b.logger))
		}
	}

	return nil
}

func (b Builder) startMonitor(s *Simulation) {
	s.monitor = monitoring.NewMonitor()
	if b.monitorPort > 0 {
		s.monitor.WithPortNumber(b.monitorPort)
	}

	s.monitor.WithBrowser(b.openBrowser)
	s.monitor.RegisterKernel(s.kernel)

	if end, ok := b.endTimeOf(s.design); ok {
		s.monitor.TrackTime(end)
	}

	s.monitor.StartServer()
}
