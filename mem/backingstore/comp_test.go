package backingstore

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/msisim/mem/mem"
	"github.com/sarchlab/msisim/sim"
	"go.uber.org/mock/gomock"
)

func line(b byte) []byte {
	data := make([]byte, 64)
	for i := range data {
		data[i] = b
	}

	return data
}

var _ = Describe("Backing Store", func() {
	var (
		mockCtrl *gomock.Controller
		port     *MockPort
		memory   *Comp
		src      = sim.RemotePort("L2.BottomPort")
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())

		port = NewMockPort(mockCtrl)
		port.EXPECT().
			AsRemote().
			Return(sim.RemotePort("Memory.TopPort")).
			AnyTimes()

		memory = MakeBuilder().
			WithNewStorage(1 * mem.MB).
			WithLatency(2).
			Build("Memory")
		memory.topPort = port
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should do nothing without requests", func() {
		port.EXPECT().RetrieveIncoming().Return(nil)

		Expect(memory.Tick()).To(BeFalse())
		Expect(memory.Busy()).To(BeFalse())
	})

	It("should return the whole line after the latency", func() {
		Expect(memory.Storage().Write(0x40, line(7))).To(Succeed())

		req := mem.ReadReqBuilder{}.
			WithSrc(src).
			WithDst("Memory.TopPort").
			WithAddress(0x44).
			WithByteSize(64).
			Build()

		port.EXPECT().RetrieveIncoming().Return(req)
		Expect(memory.Tick()).To(BeTrue())
		Expect(memory.Busy()).To(BeTrue())

		Expect(memory.Tick()).To(BeTrue())

		port.EXPECT().
			Send(gomock.Any()).
			Do(func(msg sim.Msg) {
				rsp := msg.(*mem.DataReadyRsp)
				Expect(rsp.RespondTo).To(Equal(req.ID))
				Expect(rsp.Dst).To(Equal(src))
				Expect(rsp.Data).To(Equal(line(7)))
			}).
			Return(nil)
		Expect(memory.Tick()).To(BeTrue())

		Expect(memory.Busy()).To(BeFalse())
		Expect(memory.Stats().Reads).To(Equal(uint64(1)))
	})

	It("should respond in the same cycle without latency", func() {
		memory.Latency = 0

		req := mem.ReadReqBuilder{}.
			WithSrc(src).
			WithDst("Memory.TopPort").
			WithAddress(0x80).
			WithByteSize(64).
			Build()

		port.EXPECT().RetrieveIncoming().Return(req)
		port.EXPECT().Send(gomock.Any()).Return(nil)

		Expect(memory.Tick()).To(BeTrue())
		Expect(memory.Busy()).To(BeFalse())
	})

	It("should write the enabled bytes of a line", func() {
		Expect(memory.Storage().Write(0x40, line(1))).To(Succeed())

		mask := mem.FullMask(64)
		mask[0] = false

		req := mem.WriteReqBuilder{}.
			WithSrc(src).
			WithDst("Memory.TopPort").
			WithAddress(0x40).
			WithData(line(9)).
			WithDirtyMask(mask).
			Build()

		port.EXPECT().RetrieveIncoming().Return(req)
		memory.Tick()
		memory.Tick()

		port.EXPECT().
			Send(gomock.AssignableToTypeOf(&mem.WriteDoneRsp{})).
			Return(nil)
		memory.Tick()

		data, err := memory.Storage().Read(0x40, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte{1, 9}))
		Expect(memory.Stats().Writes).To(Equal(uint64(1)))
	})

	It("should retry if the response cannot be sent", func() {
		memory.Latency = 0

		req := mem.ReadReqBuilder{}.
			WithSrc(src).
			WithDst("Memory.TopPort").
			WithAddress(0).
			WithByteSize(64).
			Build()

		port.EXPECT().RetrieveIncoming().Return(req)
		port.EXPECT().Send(gomock.Any()).Return(sim.NewSendError())
		Expect(memory.Tick()).To(BeTrue())
		Expect(memory.Busy()).To(BeTrue())

		port.EXPECT().Send(gomock.Any()).Return(nil)
		Expect(memory.Tick()).To(BeTrue())
		Expect(memory.Busy()).To(BeFalse())
		Expect(memory.Stats().Reads).To(Equal(uint64(1)))
	})

	It("should panic on a partial-line write", func() {
		req := mem.WriteReqBuilder{}.
			WithSrc(src).
			WithDst("Memory.TopPort").
			WithAddress(0x40).
			WithData([]byte{1, 2, 3, 4}).
			Build()

		memory.Latency = 0
		port.EXPECT().RetrieveIncoming().Return(req)

		Expect(func() { memory.Tick() }).To(Panic())
	})
})
