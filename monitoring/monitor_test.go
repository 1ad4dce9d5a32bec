package monitoring

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hdlsim/hwlib"
	"github.com/sarchlab/hdlsim/logic"
	"github.com/sarchlab/hdlsim/sim"
)

var _ = Describe("Monitor", func() {
	var (
		k      *sim.Kernel
		m      *Monitor
		server *httptest.Server
	)

	get := func(path string) (int, string) {
		rsp, err := http.Get(server.URL + path)
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())

		return rsp.StatusCode, string(body)
	}

	BeforeEach(func() {
		k = sim.MakeKernelBuilder().WithEndTime(100).Build()
		clk := k.MustDeclare("clk")
		k.MustDeclare("en", sim.WithInit(logic.L1))
		k.MustRegister(hwlib.Clock("osc", clk, 10, 0))

		m = NewMonitor()
		m.RegisterKernel(k)
		server = httptest.NewServer(m.Router())
	})

	AfterEach(func() {
		server.Close()
	})

	It("should report the current step", func() {
		Expect(k.RunUntil(42)).To(Succeed())

		code, body := get("/api/now")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"now":42,"delta":-1,"status":"ready","pending":1}`))
	})

	It("should list signals", func() {
		Expect(k.RunUntil(7)).To(Succeed())

		_, body := get("/api/signals")

		var signals []signalRsp
		Expect(json.Unmarshal([]byte(body), &signals)).To(Succeed())
		Expect(signals).To(Equal([]signalRsp{
			{Name: "clk", Kind: "wire", Value: "1", Strength: "strong", LastChange: 5},
			{Name: "en", Kind: "wire", Value: "1", Strength: "highz"},
		}))

		_, body = get("/api/signals?filter=cl")
		Expect(json.Unmarshal([]byte(body), &signals)).To(Succeed())
		Expect(signals).To(HaveLen(1))
	})

	It("should serialize one signal", func() {
		code, body := get("/api/signal/clk")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).NotTo(BeEmpty())

		code, _ = get("/api/signal/nothing")
		Expect(code).To(Equal(http.StatusNotFound))
	})

	It("should list processes", func() {
		Expect(k.RunUntil(20)).To(Succeed())

		_, body := get("/api/processes")

		var procs []processRsp
		Expect(json.Unmarshal([]byte(body), &procs)).To(Succeed())
		Expect(procs).To(HaveLen(1))
		Expect(procs[0].Name).To(Equal("osc"))
		Expect(procs[0].State).To(Equal("Idle"))
		Expect(procs[0].Activations).To(BeNumerically(">=", 4))
	})

	It("should pause and continue the kernel", func() {
		code, _ := get("/api/pause")
		Expect(code).To(Equal(http.StatusOK))

		done := make(chan error)
		go func() { done <- k.Run() }()

		Consistently(done, 50*time.Millisecond).ShouldNot(Receive())
		Expect(k.CurrentTime()).To(Equal(sim.VTime(0)))

		get("/api/continue")

		Eventually(done).Should(Receive(BeNil()))
		Expect(k.CurrentTime()).To(Equal(sim.VTime(100)))
	})

	It("should stop the kernel", func() {
		get("/api/pause")

		done := make(chan error)
		go func() { done <- k.Run() }()

		get("/api/stop")

		Eventually(done).Should(Receive(BeNil()))
		Expect(k.Status()).To(Equal(sim.StatusFinished))
		Expect(k.CurrentTime()).To(BeNumerically("<", 100))
	})

	It("should track simulated time", func() {
		bar := m.TrackTime(100)

		Expect(k.RunUntil(50)).To(Succeed())
		Expect(bar.Finished).To(Equal(uint64(50)))

		_, body := get("/api/progress")
		Expect(body).To(ContainSubstring(`"name":"Simulated time"`))
		Expect(body).To(ContainSubstring(`"finished":50`))

		Expect(k.Run()).To(Succeed())

		_, body = get("/api/progress")
		Expect(body).To(Equal("[]"))
	})

	It("should report resources", func() {
		code, body := get("/api/resource")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring("memory_size"))
	})

	It("should reject a bad profile duration", func() {
		code, _ := get("/api/profile?ms=abc")

		Expect(code).To(Equal(http.StatusBadRequest))
	})

	It("should serve the page", func() {
		code, body := get("/")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(HavePrefix("<!DOCTYPE html>"))
	})
})

var _ = Describe("ProgressBar", func() {
	It("should move progress", func() {
		b := &ProgressBar{Total: 10}

		b.IncrementInProgress(4)
		b.MoveInProgressToFinished(3)
		b.IncrementFinished(1)

		Expect(b.InProgress).To(Equal(uint64(1)))
		Expect(b.Finished).To(Equal(uint64(4)))

		b.SetFinished(20)
		Expect(b.Finished).To(Equal(uint64(10)))
	})
})
