package monitoring_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/jpegsim/monitoring"
	"github.com/sarchlab/jpegsim/stream"
	"github.com/sarchlab/jpegsim/timing/clock"
	"github.com/sarchlab/jpegsim/timing/driver"
	"github.com/sarchlab/jpegsim/timing/stage"
)

func get(h http.Handler, url string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

	return rec
}

var _ = Describe("Monitor", func() {
	var (
		env    *clock.Environment
		pe     *stage.ProcessingStage
		m      *monitoring.Monitor
		router http.Handler
	)

	BeforeEach(func() {
		env = clock.MakeBuilder().Build("Env")
		in := stream.MustNew(env, "In", 8)
		out := stream.MustNew(env, "Out", 8)

		var err error
		pe, err = stage.New(stage.Config{
			Name:            "DCT",
			CyclesToProcess: 3,
			Buffered:        stage.BufferBoth,
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = pe.Process(env, in, out)
		Expect(err).NotTo(HaveOccurred())

		driver.NewSource("Src", []uint64{1, 2, 3, 4}).Wire(env, in)
		driver.NewSink("Sink", driver.ReadyFrom(10)).Wire(env, out)
		Expect(env.Run(8)).To(Succeed())

		m = monitoring.NewMonitor().WithPortNumber(80)
		m.RegisterEnvironment(env)
		m.RegisterStage(pe)
		router = m.Router()
	})

	It("should report the current cycle", func() {
		rec := get(router, "/api/now")

		var rsp map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp["cycle"]).To(BeNumerically("==", 8))
		Expect(rsp["reset"]).To(BeFalse())
	})

	It("should fail without an environment", func() {
		rec := get(monitoring.NewMonitor().Router(), "/api/now")
		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
	})

	It("should list components", func() {
		rec := get(router, "/api/list_components")

		var names []string
		Expect(json.Unmarshal(rec.Body.Bytes(), &names)).To(Succeed())
		Expect(names).To(Equal([]string{"Env", "DCT"}))
	})

	It("should serialize a component", func() {
		rec := get(router, "/api/component/DCT")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should return 404 for an unknown component", func() {
		rec := get(router, "/api/component/Huffman")
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should report stage statistics", func() {
		rec := get(router, "/api/stats/DCT")

		var stats stage.Statistics
		Expect(json.Unmarshal(rec.Body.Bytes(), &stats)).To(Succeed())
		Expect(stats.Edges).To(Equal(uint64(8)))
		Expect(stats.Accepted).To(BeNumerically(">", 0))
	})

	It("should list buffers", func() {
		rec := get(router, "/api/buffers?sort=name")

		var rsp []map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(2))
		Expect(rsp[0]["buffer"]).To(Equal("DCT.InBuf"))
		Expect(rsp[1]["buffer"]).To(Equal("DCT.OutBuf"))
	})

	It("should limit the buffer list", func() {
		rec := get(router, "/api/buffers?limit=1&offset=1")

		var rsp []map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(1))
	})

	It("should reject a bad sort method", func() {
		rec := get(router, "/api/buffers?sort=percent")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		rec = get(router, "/api/buffers?limit=x")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should list taps", func() {
		rec := get(router, "/api/list_taps")

		var names []string
		Expect(json.Unmarshal(rec.Body.Bytes(), &names)).To(Succeed())
		Expect(names).To(ConsistOf("DCT.In", "DCT.Processed", "DCT.Out"))
	})

	It("should report tap changes", func() {
		rec := get(router, "/api/taps/DCT.In")

		var changes []stream.Change
		Expect(json.Unmarshal(rec.Body.Bytes(), &changes)).To(Succeed())
		Expect(changes).To(Equal(pe.InTap().Changes()))
	})

	It("should return 404 for an unknown tap", func() {
		rec := get(router, "/api/taps/Nope")
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should report resources", func() {
		rec := get(router, "/api/resource")

		var rsp map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveKey("memory_size"))
	})

	It("should collect a short profile", func() {
		rec := get(router, "/api/profile?ms=20")
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("should pause and continue the engine", func() {
		Expect(get(router, "/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get(router, "/api/continue").Code).To(Equal(http.StatusOK))

		Expect(env.Run(2)).To(Succeed())
		Expect(env.Cycle()).To(Equal(uint64(10)))
	})

	It("should refuse to pause without an environment", func() {
		rec := get(monitoring.NewMonitor().Router(), "/api/pause")
		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
	})

	It("should serve consistent state while the simulation runs", func() {
		finished := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			finished <- env.Run(3000)
		}()

		var lastCycle uint64

		for running := true; running; {
			select {
			case err := <-finished:
				Expect(err).NotTo(HaveOccurred())
				running = false
			default:
				var now map[string]any
				Expect(json.Unmarshal(get(router, "/api/now").Body.Bytes(), &now)).
					To(Succeed())

				cycle := uint64(now["cycle"].(float64))
				Expect(cycle).To(BeNumerically(">=", lastCycle))
				lastCycle = cycle

				var stats stage.Statistics
				Expect(json.Unmarshal(get(router, "/api/stats/DCT").Body.Bytes(), &stats)).
					To(Succeed())
				Expect(stats.Emitted).To(BeNumerically("<=", stats.Accepted))

				var changes []stream.Change
				Expect(json.Unmarshal(get(router, "/api/taps/DCT.Out").Body.Bytes(), &changes)).
					To(Succeed())
				for i := 1; i < len(changes); i++ {
					Expect(changes[i].Edge).To(BeNumerically(">", changes[i-1].Edge))
				}

				Expect(get(router, "/api/buffers").Code).To(Equal(http.StatusOK))
				Expect(get(router, "/api/component/DCT").Code).To(Equal(http.StatusOK))
			}
		}

		Expect(env.Cycle()).To(Equal(uint64(3008)))
	})

	It("should start and stop a server", func() {
		url, err := m.StartServer()
		Expect(err).NotTo(HaveOccurred())
		Expect(url).To(HavePrefix("http://localhost:"))

		rsp, err := http.Get(url + "/api/list_components")
		Expect(err).NotTo(HaveOccurred())
		rsp.Body.Close()
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))

		Expect(m.StopServer()).To(Succeed())
		Expect(m.StopServer()).To(Succeed())
	})
})
