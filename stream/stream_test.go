package stream_test

import (
	"errors"

	"github.com/sarchlab/akita/v4/sim"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/jpegsim/signal"
	"github.com/sarchlab/jpegsim/stream"
)

type hookCounter struct {
	items []stream.Change
}

func (h *hookCounter) Func(ctx sim.HookCtx) {
	if ctx.Pos == stream.HookPosChange {
		h.items = append(h.items, ctx.Item.(stream.Change))
	}
}

var _ = Describe("DataStream", func() {
	var (
		reg *registry
		s   *stream.DataStream
	)

	BeforeEach(func() {
		reg = &registry{}
		s = stream.MustNew(reg, "In", 8)
	})

	It("should register data, valid and ready", func() {
		Expect(reg.regs).To(HaveLen(3))
	})

	It("should reject widths outside 1..64", func() {
		_, err := stream.New(reg, "Bad", 0)
		Expect(errors.Is(err, stream.ErrInvalidWidth)).To(BeTrue())

		_, err = stream.New(reg, "Bad", 65)
		Expect(errors.Is(err, stream.ErrInvalidWidth)).To(BeTrue())
	})

	It("should mask data to its width", func() {
		s.Present(signal.Of(0x1ff))
		reg.step()

		Expect(s.Sample()).To(Equal(signal.Of(0xff)))
	})

	It("should accept full 64-bit data", func() {
		wide := stream.MustNew(reg, "Wide", 64)
		wide.Present(signal.Of(^uint64(0)))
		reg.step()

		Expect(wide.Data().Value()).To(Equal(^uint64(0)))
	})

	It("should fire only when valid and ready hold", func() {
		s.Present(signal.Of(1))
		reg.step()
		Expect(s.Fired()).To(BeFalse())

		s.Ready().Drive(true)
		Expect(s.Fired()).To(BeTrue())
	})

	It("should keep data when presenting a bubble", func() {
		s.Present(signal.Of(3))
		reg.step()
		s.Present(signal.Bubble)
		reg.step()

		Expect(s.Valid().Value()).To(BeFalse())
		Expect(s.Data().Value()).To(Equal(uint64(3)))
	})

	It("should zero data on clear", func() {
		s.Present(signal.Of(3))
		reg.step()
		s.Clear()
		reg.step()

		Expect(s.Sample()).To(Equal(signal.Bubble))
	})

	It("should drive a sample before the first edge", func() {
		s.Drive(signal.Of(5))

		Expect(s.Sample()).To(Equal(signal.Of(5)))
	})

	It("should duplicate into an independent stream", func() {
		s.Present(signal.Of(4))
		reg.step()

		d := s.Duplicate("InCopy")

		Expect(d.Name()).To(Equal("InCopy"))
		Expect(d.Width()).To(Equal(8))
		Expect(d.Sample()).To(Equal(signal.Bubble))
		Expect(reg.regs).To(HaveLen(6))

		d.Present(signal.Of(6))
		reg.step()
		Expect(s.Sample()).To(Equal(signal.Of(4)))
	})
})

var _ = Describe("Tap", func() {
	var (
		reg *registry
		s   *stream.DataStream
		tap *stream.Tap
	)

	BeforeEach(func() {
		reg = &registry{}
		s = stream.MustNew(reg, "Out", 8)
		tap = s.TraceTap("Out.Tap")
	})

	It("should record the first snapshot", func() {
		reg.step()

		Expect(tap.Len()).To(Equal(1))
		c, ok := tap.Last()
		Expect(ok).To(BeTrue())
		Expect(c.Edge).To(Equal(uint64(1)))
	})

	It("should record changes only", func() {
		reg.step()
		reg.step()
		s.Present(signal.Of(9))
		reg.step()
		reg.step()

		Expect(tap.Changes()).To(Equal([]stream.Change{
			{Edge: 1},
			{Edge: 3, Data: 9, Valid: true},
		}))
	})

	It("should list the edges of new valid values", func() {
		s.Present(signal.Of(1))
		reg.step()
		s.Ready().Drive(true)
		reg.step()
		s.Present(signal.Of(2))
		reg.step()

		edges, data := tap.ValidEdges()
		Expect(edges).To(Equal([]uint64{1, 3}))
		Expect(data).To(Equal([]uint64{1, 2}))
	})

	It("should invoke hooks on change", func() {
		h := &hookCounter{}
		tap.AcceptHook(h)

		reg.step()
		s.Present(signal.Of(2))
		reg.step()

		Expect(h.items).To(HaveLen(2))
		Expect(h.items[1].Data).To(Equal(uint64(2)))
	})
})
