package bus

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/msisim/mem/coherence"
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

var _ = Describe("Bus", func() {
	var (
		mockCtrl *gomock.Controller
		agents   []*MockAgent
		bus      *Comp
	)

	noRequest := func(i int) {
		agents[i].EXPECT().BusRequest().Return(Request{}, false)
	}

	request := func(i int, req Request) {
		agents[i].EXPECT().BusRequest().Return(req, true)
	}

	lowerReq := func(i int) mem.AccessReq {
		msg := bus.BottomPort(i).RetrieveOutgoing()
		Expect(msg).NotTo(BeNil())

		return msg.(mem.AccessReq)
	}

	replyData := func(i int, req mem.AccessReq, data []byte) {
		rsp := mem.DataReadyRspBuilder{}.
			WithSrc("L2.Top[0]").
			WithDst(req.Meta().Src).
			WithRspTo(req.Meta().ID).
			WithData(data).
			Build()
		Expect(bus.BottomPort(i).Deliver(rsp)).To(BeNil())
	}

	replyDone := func(i int, req mem.AccessReq) {
		rsp := mem.WriteDoneRspBuilder{}.
			WithSrc("L2.Top[0]").
			WithDst(req.Meta().Src).
			WithRspTo(req.Meta().ID).
			Build()
		Expect(bus.BottomPort(i).Deliver(rsp)).To(BeNil())
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		agents = []*MockAgent{
			NewMockAgent(mockCtrl),
			NewMockAgent(mockCtrl),
		}

		bus = MakeBuilder().
			WithNumAgents(2).
			WithSnoopLatency(1).
			Build("Bus")

		for i, a := range agents {
			bus.ConnectAgent(i, a)
			bus.ConnectLowModule(i, sim.RemotePort("L2.Top[0]"))
		}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should do nothing if no agent requests", func() {
		noRequest(0)
		noRequest(1)

		Expect(bus.Tick()).To(BeFalse())
		Expect(bus.Current()).To(BeNil())
	})

	It("should fetch from the lower module if no agent has the line", func() {
		request(0, Request{Command: coherence.Read, Address: 0x1000})
		noRequest(1)
		Expect(bus.Tick()).To(BeTrue())
		Expect(bus.Current().Requester).To(Equal(0))

		agents[1].EXPECT().Snoop(gomock.Any()).Return(SnoopRsp{})
		Expect(bus.Tick()).To(BeTrue())

		Expect(bus.Tick()).To(BeTrue())
		req := lowerReq(0)
		Expect(req.GetAddress()).To(Equal(uint64(0x1000)))
		Expect(req.GetByteSize()).To(Equal(uint64(64)))
		Expect(req).To(BeAssignableToTypeOf(&mem.ReadReq{}))

		Expect(bus.Tick()).To(BeFalse())

		replyData(0, req, line(7))
		Expect(bus.Tick()).To(BeTrue())

		agents[0].EXPECT().Complete(gomock.Any()).Do(func(txn *Transaction) {
			Expect(txn.Command).To(Equal(coherence.Read))
			Expect(txn.DataIn).To(Equal(line(7)))
			Expect(txn.Supplier).To(Equal(-1))
		})
		Expect(bus.Tick()).To(BeTrue())

		Expect(bus.Current()).To(BeNil())
		Expect(bus.Stats().Reads).To(Equal(uint64(1)))
		Expect(bus.Stats().LowerFetches).To(Equal(uint64(1)))
	})

	It("should take the line from a modified peer and write it back", func() {
		request(0, Request{Command: coherence.Read, Address: 0x1000})
		noRequest(1)
		bus.Tick()

		agents[1].EXPECT().Snoop(gomock.Any()).Return(SnoopRsp{
			Hit:         true,
			Data:        line(9),
			WasModified: true,
		})
		bus.Tick()

		bus.Tick()
		req := lowerReq(0)
		Expect(req).To(BeAssignableToTypeOf(&mem.WriteReq{}))
		Expect(req.(*mem.WriteReq).Data).To(Equal(line(9)))

		replyDone(0, req)
		bus.Tick()

		agents[0].EXPECT().Complete(gomock.Any()).Do(func(txn *Transaction) {
			Expect(txn.DataIn).To(Equal(line(9)))
			Expect(txn.Supplier).To(Equal(1))
		})
		bus.Tick()

		Expect(bus.Stats().CacheToCache).To(Equal(uint64(1)))
		Expect(bus.Stats().LowerWrites).To(Equal(uint64(1)))
	})

	It("should not write back on a read-exclusive from a modified peer",
		func() {
			request(0, Request{Command: coherence.ReadExclusive, Address: 0x40})
			noRequest(1)
			bus.Tick()

			agents[1].EXPECT().Snoop(gomock.Any()).Return(SnoopRsp{
				Hit:         true,
				Data:        line(3),
				WasModified: true,
			})
			bus.Tick()

			agents[0].EXPECT().Complete(gomock.Any()).Do(func(txn *Transaction) {
				Expect(txn.DataIn).To(Equal(line(3)))
			})
			bus.Tick()

			Expect(bus.BottomPort(0).PeekOutgoing()).To(BeNil())
		})

	It("should complete an upgrade without data", func() {
		request(0, Request{Command: coherence.Upgrade, Address: 0x40})
		noRequest(1)
		bus.Tick()

		agents[1].EXPECT().Snoop(gomock.Any()).Return(SnoopRsp{Hit: true})
		bus.Tick()

		agents[0].EXPECT().Complete(gomock.Any())
		bus.Tick()

		Expect(bus.BottomPort(0).PeekOutgoing()).To(BeNil())
		Expect(bus.Stats().Upgrades).To(Equal(uint64(1)))
		Expect(bus.Stats().SnoopHits).To(Equal(uint64(1)))
	})

	It("should write a flush to the lower module without snooping", func() {
		noRequest(0)
		request(1, Request{
			Command: coherence.Flush,
			Address: 0x80,
			Data:    line(5),
		})
		bus.Tick()

		bus.Tick()
		req := lowerReq(1)
		Expect(req.GetAddress()).To(Equal(uint64(0x80)))

		replyDone(1, req)
		bus.Tick()

		agents[1].EXPECT().Complete(gomock.Any())
		bus.Tick()

		Expect(bus.Stats().Flushes).To(Equal(uint64(1)))
	})

	It("should alternate between agents", func() {
		upgrade := Request{Command: coherence.Upgrade, Address: 0x40}

		request(0, upgrade)
		request(1, upgrade)
		bus.Tick()
		Expect(bus.Current().Requester).To(Equal(0))

		agents[1].EXPECT().Snoop(gomock.Any()).Return(SnoopRsp{})
		bus.Tick()
		agents[0].EXPECT().Complete(gomock.Any())
		bus.Tick()

		request(0, upgrade)
		request(1, upgrade)
		bus.Tick()
		Expect(bus.Current().Requester).To(Equal(1))
	})

	It("should snoop in the granting cycle if there is no snoop latency",
		func() {
			bus = MakeBuilder().WithSnoopLatency(0).Build("Bus")
			for i, a := range agents {
				bus.ConnectAgent(i, a)
			}

			request(0, Request{Command: coherence.Upgrade, Address: 0x40})
			noRequest(1)
			agents[1].EXPECT().Snoop(gomock.Any()).Return(SnoopRsp{})
			bus.Tick()

			agents[0].EXPECT().Complete(gomock.Any())
			bus.Tick()
		})

	It("should panic on an unexpected response", func() {
		request(0, Request{Command: coherence.Read, Address: 0x1000})
		noRequest(1)
		bus.Tick()
		agents[1].EXPECT().Snoop(gomock.Any()).Return(SnoopRsp{})
		bus.Tick()
		bus.Tick()
		lowerReq(0)

		rsp := mem.WriteDoneRspBuilder{}.
			WithSrc("L2.Top[0]").
			WithDst(bus.BottomPort(0).AsRemote()).
			WithRspTo("other").
			Build()
		bus.BottomPort(0).Deliver(rsp)

		Expect(func() { bus.Tick() }).To(Panic())
	})
})
