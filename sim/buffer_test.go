package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BufferImpl", func() {

	var (
		buf Buffer
	)

	BeforeEach(func() {
		buf = NewBuffer("Buf", 2)
	})

	It("should allow push and pop", func() {
		Expect(buf.Capacity()).To(Equal(2))
		Expect(buf.CanPush()).To(BeTrue())

		buf.Push(1)
		Expect(buf.CanPush()).To(BeTrue())
		Expect(buf.Size()).To(Equal(1))

		buf.Push(2)
		Expect(buf.CanPush()).To(BeFalse())
		Expect(buf.Size()).To(Equal(2))
		Expect(func() {
			buf.Push(3)
		}).To(Panic())

		Expect(buf.Peek()).To(Equal(1))
		Expect(buf.Pop()).To(Equal(1))
		Expect(buf.Size()).To(Equal(1))
		Expect(buf.Peek()).To(Equal(2))
		Expect(buf.Pop()).To(Equal(2))
		Expect(buf.Size()).To(Equal(0))
		Expect(buf.Peek()).To(BeNil())
		Expect(buf.Pop()).To(BeNil())
	})

	It("should clear", func() {
		buf.Push(2)
		Expect(buf.Size()).To(Equal(1))

		buf.Clear()

		Expect(buf.Size()).To(Equal(0))
		Expect(buf.Peek()).To(BeNil())
	})

	It("should invoke hooks on push and pop", func() {
		positions := []*HookPos{}
		buf.AcceptHook(HookFunc(func(ctx HookCtx) {
			positions = append(positions, ctx.Pos)
		}))

		buf.Push(1)
		buf.Pop()

		Expect(positions).To(Equal([]*HookPos{HookPosBufPush, HookPosBufPop}))
	})

	It("should reject a non-positive capacity", func() {
		Expect(func() { NewBuffer("Empty", 0) }).To(Panic())
	})
})
