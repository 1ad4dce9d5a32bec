package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/hdlsim/hooking"
	"github.com/sarchlab/hdlsim/idgen"
	"github.com/sarchlab/hdlsim/monitoring/web"
	"github.com/sarchlab/hdlsim/sim"
)

// Monitor turns a simulation into a server that allows inspecting signals
// and processes and pausing, resuming or stopping the kernel from a browser.
type Monitor struct {
	kernel      *sim.Kernel
	portNumber  int
	openBrowser bool
	ids         idgen.Generator

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
	timeBar          *ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{ids: idgen.New()}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitoring page in the default
// browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterKernel sets the kernel to monitor. The monitor attaches itself as a
// hook to follow simulated time.
func (m *Monitor) RegisterKernel(k *sim.Kernel) {
	m.kernel = k
	k.AcceptHook(hooking.OnlyAt(m, sim.HookPosTimeAdvance, sim.HookPosTerminate))
}

// TrackTime shows the progress of simulated time towards end on the page.
func (m *Monitor) TrackTime(end sim.VTime) *ProgressBar {
	m.timeBar = m.CreateProgressBar("Simulated time", uint64(end))
	return m.timeBar
}

// Func follows the kernel so that the time progress bar stays current.
func (m *Monitor) Func(ctx hooking.HookCtx) {
	if m.timeBar == nil {
		return
	}

	switch ctx.Pos {
	case sim.HookPosTimeAdvance:
		step := ctx.Item.(sim.Step)
		m.timeBar.SetFinished(uint64(step.Time))
	case sim.HookPosTerminate:
		m.CompleteProgressBar(m.timeBar)
	}
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        strconv.FormatUint(uint64(m.ids.Generate()), 10),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler that serves the monitoring API and pages.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	fs := web.Assets()
	fServer := http.FileServer(fs)
	r.HandleFunc("/api/pause", m.pauseKernel)
	r.HandleFunc("/api/continue", m.continueKernel)
	r.HandleFunc("/api/stop", m.stopKernel)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/signals", m.listSignals)
	r.HandleFunc("/api/signal/{name}", m.signalDetails)
	r.HandleFunc("/api/signal/{name}/{field}", m.signalField)
	r.HandleFunc("/api/processes", m.listProcesses)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(fServer)

	return r
}

// StartServer starts the monitor as a web server with a custom port if
// wanted. It returns the port the server listens on.
func (m *Monitor) StartServer() int {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	port := listener.Addr().(*net.TCPAddr).Port
	url := fmt.Sprintf("http://localhost:%d", port)

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	router := m.Router()
	go func() {
		err := http.Serve(listener, router)
		dieOnErr(err)
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
		}
	}

	return port
}

func (m *Monitor) pauseKernel(w http.ResponseWriter, _ *http.Request) {
	m.kernel.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueKernel(w http.ResponseWriter, _ *http.Request) {
	m.kernel.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) stopKernel(w http.ResponseWriter, _ *http.Request) {
	m.kernel.Stop()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	step := m.kernel.CurrentStep()
	fmt.Fprintf(w, "{\"now\":%d,\"delta\":%d,\"status\":\"%s\",\"pending\":%d}",
		step.Time, step.Delta, m.kernel.Status(), m.kernel.Pending())
}

type signalRsp struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Value      string `json:"value"`
	Strength   string `json:"strength"`
	LastChange uint64 `json:"last_change"`
}

func (m *Monitor) listSignals(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")

	rsp := make([]signalRsp, 0, m.kernel.NumSignals())
	for _, s := range m.kernel.Signals() {
		if filter != "" && !strings.Contains(s.Name, filter) {
			continue
		}

		rsp = append(rsp, signalRsp{
			Name:       s.Name,
			Kind:       s.Kind,
			Value:      s.Value,
			Strength:   s.Strength,
			LastChange: uint64(s.LastChange),
		})
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) signalDetails(w http.ResponseWriter, r *http.Request) {
	view, ok := m.findSignalOr404(w, mux.Vars(r)["name"])
	if !ok {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(view)
	serializer.SetMaxDepth(2)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) signalField(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	view, ok := m.findSignalOr404(w, vars["name"])
	if !ok {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(view)
	serializer.SetMaxDepth(1)

	err := serializer.SetEntryPoint(strings.Split(vars["field"], "."))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) findSignalOr404(
	w http.ResponseWriter,
	name string,
) (*sim.SignalView, bool) {
	id, ok := m.kernel.Lookup(name)
	if ok {
		view, err := m.kernel.Signal(id)
		if err == nil {
			return &view, true
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Signal not found"))
	dieOnErr(err)

	return nil, false
}

type processRsp struct {
	Name        string `json:"name"`
	State       string `json:"state"`
	Activations uint64 `json:"activations"`
}

func (m *Monitor) listProcesses(w http.ResponseWriter, _ *http.Request) {
	procs := m.kernel.Processes()

	rsp := make([]processRsp, len(procs))
	for i, p := range procs {
		rsp[i] = processRsp{
			Name:        p.Name,
			State:       p.State.String(),
			Activations: p.Activations,
		}
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]*ProgressBar, len(m.progressBars))
	copy(bars, m.progressBars)
	m.progressBarsLock.Unlock()

	fmt.Fprint(w, "[")
	for i, b := range bars {
		if i > 0 {
			fmt.Fprint(w, ",")
		}

		bytes, err := b.MarshalJSON()
		dieOnErr(err)

		_, err = w.Write(bytes)
		dieOnErr(err)
	}
	fmt.Fprint(w, "]")
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if s := r.URL.Query().Get("ms"); s != "" {
		ms, err := strconv.Atoi(s)
		if err != nil || ms <= 0 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Error: invalid duration %q", s)
			return
		}
		duration = time.Duration(ms) * time.Millisecond
	}

	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	time.Sleep(duration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
