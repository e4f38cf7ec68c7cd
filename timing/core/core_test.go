package core_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/jpegsim/timing/clock"
	"github.com/sarchlab/jpegsim/timing/core"
	"github.com/sarchlab/jpegsim/timing/driver"
	"github.com/sarchlab/jpegsim/timing/stage"
)

func stalling(name string, k int) stage.Config {
	return stage.Config{Name: name, CyclesToProcess: k, Buffered: stage.BufferNone}
}

func pipelined(name string, k int) stage.Config {
	c := stalling(name, k)
	c.Pipelined = true

	return c
}

var _ = Describe("Core", func() {
	var (
		env  *clock.Environment
		src  *driver.Source
		sink *driver.Sink
	)

	BeforeEach(func() {
		env = clock.MakeBuilder().Build("Env")
		src = driver.NewSource("Src", []uint64{1, 2, 3, 4})
		sink = driver.NewSink("Sink", nil)
	})

	It("should reject an empty chain", func() {
		_, err := core.NewCore(env, 8, src, sink)
		Expect(err).To(MatchError(core.ErrNoStages))
	})

	It("should reject an invalid stage", func() {
		_, err := core.NewCore(env, 8, src, sink, stalling("Bad", 0))
		Expect(errors.Is(err, stage.ErrConfiguration)).To(BeTrue())
	})

	It("should wire stages with links", func() {
		c, err := core.NewCore(env, 8, src, sink,
			stalling("A", 1), stalling("B", 2))

		Expect(err).NotTo(HaveOccurred())
		Expect(c.Stages).To(HaveLen(2))
		Expect(c.Links()).To(HaveLen(3))
		Expect(c.Input().Name()).To(Equal("Link[0]"))
		Expect(c.Output().Name()).To(Equal("Link[2]"))
		Expect(c.Stage("B")).To(BeIdenticalTo(c.Stages[1]))
		Expect(c.Stage("C")).To(BeNil())
		Expect(c.Env()).To(BeIdenticalTo(env))
	})

	It("should not be done initially", func() {
		c, err := core.NewCore(env, 8, src, sink, stalling("A", 1))

		Expect(err).NotTo(HaveOccurred())
		Expect(c.Done()).To(BeFalse())
	})

	It("should deliver every sample in order", func() {
		c, err := core.NewCore(env, 8, src, sink,
			stalling("A", 3), pipelined("B", 2), stalling("C", 1))
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Run(200)

		Expect(err).NotTo(HaveOccurred())
		Expect(c.Done()).To(BeTrue())
		Expect(driver.Data(sink.Received())).To(Equal([]uint64{1, 2, 3, 4}))
	})

	It("should add the stage latencies along a pipelined chain", func() {
		c, err := core.NewCore(env, 8, src, sink,
			pipelined("A", 2), pipelined("B", 3))
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Run(100)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Latencies()).To(Equal([]uint64{7, 7, 7, 7}))

		stats := c.Stats()
		Expect(stats.Injected).To(Equal(uint64(4)))
		Expect(stats.Delivered).To(Equal(uint64(4)))
		Expect(stats.MeanLatency).To(Equal(7.0))
		Expect(stats.MaxLatency).To(Equal(uint64(7)))
		Expect(stats.Throughput()).To(BeNumerically(">", 0))
		Expect(stats.Stages).To(HaveLen(2))
		Expect(stats.Stages[0].Name).To(Equal("A"))
		Expect(stats.Stages[1].Emitted).To(Equal(uint64(4)))
	})

	It("should tick one edge at a time", func() {
		c, err := core.NewCore(env, 8, src, sink, stalling("A", 1))
		Expect(err).NotTo(HaveOccurred())

		c.Tick()
		c.Tick()

		Expect(c.Stats().Cycles).To(Equal(uint64(2)))
	})

	It("should report samples in flight after a partial run", func() {
		c, err := core.NewCore(env, 8, src, sink, stalling("A", 4))
		Expect(err).NotTo(HaveOccurred())

		running, err := c.RunCycles(3)

		Expect(err).NotTo(HaveOccurred())
		Expect(running).To(BeTrue())
	})

	It("should fail when the chain cannot drain", func() {
		blocked := driver.NewSink("Sink", driver.ReadyFrom(1000))
		c, err := core.NewCore(env, 8, src, blocked, stalling("A", 1))
		Expect(err).NotTo(HaveOccurred())

		n, err := c.Run(20)

		Expect(errors.Is(err, core.ErrNotDrained)).To(BeTrue())
		Expect(n).To(Equal(uint64(20)))
	})

	It("should drop samples in flight on reset", func() {
		src = driver.NewSource("Src", []uint64{1, 2, 3, 4, 5, 6, 7, 8})
		c, err := core.NewCore(env, 8, src, sink, pipelined("A", 4))
		Expect(err).NotTo(HaveOccurred())

		_, err = c.RunCycles(3)
		Expect(err).NotTo(HaveOccurred())

		c.Reset(2)
		_, err = c.Run(100)
		Expect(err).NotTo(HaveOccurred())

		stats := c.Stats()
		Expect(stats.Stages[0].Flushed).To(BeNumerically(">", 0))
		Expect(stats.Delivered + stats.Stages[0].Flushed).
			To(Equal(stats.Injected))
	})
})
