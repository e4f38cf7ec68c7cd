package signal_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/jpegsim/signal"
)

var _ = Describe("Signal", func() {
	var s *signal.Signal[uint64]

	BeforeEach(func() {
		s = signal.New[uint64](7)
	})

	It("should start with both halves equal", func() {
		Expect(s.Value()).To(Equal(uint64(7)))
		Expect(s.Next()).To(Equal(uint64(7)))
	})

	It("should not expose a scheduled value before commit", func() {
		s.SetNext(9)

		Expect(s.Value()).To(Equal(uint64(7)))
		Expect(s.Next()).To(Equal(uint64(9)))
	})

	It("should apply the scheduled value on commit", func() {
		s.SetNext(9)

		Expect(s.Commit()).To(BeTrue())
		Expect(s.Value()).To(Equal(uint64(9)))
		Expect(s.Commit()).To(BeFalse())
	})

	It("should let the last write before commit win", func() {
		s.SetNext(1)
		s.SetNext(2)
		s.Commit()

		Expect(s.Value()).To(Equal(uint64(2)))
	})

	It("should drive both halves immediately", func() {
		Expect(s.Drive(3)).To(BeTrue())
		Expect(s.Value()).To(Equal(uint64(3)))
		Expect(s.Drive(3)).To(BeFalse())
		Expect(s.Commit()).To(BeFalse())
	})

	It("should reset both halves", func() {
		s.SetNext(4)
		s.Reset(0)

		Expect(s.Value()).To(BeZero())
		Expect(s.Next()).To(BeZero())
	})
})

var _ = Describe("Sample", func() {
	It("should treat the zero sample as a bubble", func() {
		Expect(signal.Bubble.Valid).To(BeFalse())
		Expect(signal.Bubble.String()).To(Equal("-"))
	})

	It("should build valid samples", func() {
		s := signal.Of(42)

		Expect(s.Valid).To(BeTrue())
		Expect(s.String()).To(Equal("42"))
	})
})
