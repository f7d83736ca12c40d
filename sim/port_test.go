package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

type sampleMsg struct {
	MsgMeta
}

func (m *sampleMsg) Meta() *MsgMeta {
	return &m.MsgMeta
}

func (m *sampleMsg) Clone() Msg {
	cloneMsg := *m
	cloneMsg.ID = GetIDGenerator().Generate()

	return &cloneMsg
}

var _ = Describe("DefaultPort", func() {
	var (
		mockController *gomock.Controller
		comp           *MockComponent
		conn           *MockConnection
		port           *defaultPort
	)

	BeforeEach(func() {
		mockController = gomock.NewController(GinkgoT())
		comp = NewMockComponent(mockController)
		conn = NewMockConnection(mockController)
		port = NewPort(comp, 4, 4, "Port").(*defaultPort)
		port.SetConnection(conn)
	})

	AfterEach(func() {
		mockController.Finish()
	})

	It("should return component", func() {
		Expect(port.Component()).To(BeIdenticalTo(comp))
	})

	It("should return name", func() {
		Expect(port.Name()).To(Equal("Port"))
		Expect(port.AsRemote()).To(Equal(RemotePort("Port")))
	})

	It("should not allow connecting twice", func() {
		conn.EXPECT().Name().Return("Conn").AnyTimes()

		Expect(func() { port.SetConnection(conn) }).To(Panic())
	})

	It("should be panic if port is not msg src", func() {
		msg := &sampleMsg{}

		Expect(func() { port.Send(msg) }).To(Panic())
	})

	It("should be panic if msg dst is not set", func() {
		msg := &sampleMsg{}
		msg.Src = port.AsRemote()

		Expect(func() { port.Send(msg) }).To(Panic())
	})

	It("should be panic if msg src is the same as dst", func() {
		msg := &sampleMsg{}
		msg.Src = port.AsRemote()
		msg.Dst = port.AsRemote()

		Expect(func() { port.Send(msg) }).To(Panic())
	})

	It("should send successfully", func() {
		msg := &sampleMsg{}
		msg.Src = port.AsRemote()
		msg.Dst = "DstPort"

		err := port.Send(msg)

		Expect(err).To(BeNil())
		Expect(port.PeekOutgoing()).To(BeIdenticalTo(msg))
	})

	It("should propagate error when outgoing buff is full", func() {
		msg := &sampleMsg{}
		msg.Src = port.AsRemote()
		msg.Dst = "DstPort"

		for i := 0; i < 4; i++ {
			Expect(port.CanSend()).To(BeTrue())
			Expect(port.Send(msg)).To(BeNil())
		}

		Expect(port.CanSend()).To(BeFalse())
		Expect(port.Send(msg)).NotTo(BeNil())
	})

	It("should deliver when successful", func() {
		msg := &sampleMsg{}

		errRet := port.Deliver(msg)

		Expect(errRet).To(BeNil())
		Expect(port.PeekIncoming()).To(BeIdenticalTo(msg))
	})

	It("should fail to deliver when incoming buffer is full", func() {
		msg := &sampleMsg{}
		for i := 0; i < 4; i++ {
			port.incomingBuf.Push(msg)
		}

		errRet := port.Deliver(msg)

		Expect(errRet).NotTo(BeNil())
	})

	It("should return nil when peeking or retrieving empty buffers", func() {
		Expect(port.PeekIncoming()).To(BeNil())
		Expect(port.PeekOutgoing()).To(BeNil())
		Expect(port.RetrieveIncoming()).To(BeNil())
		Expect(port.RetrieveOutgoing()).To(BeNil())
	})

	It("should allow component to retrieve message from incoming buffer",
		func() {
			msg := &sampleMsg{}
			port.incomingBuf.Push(msg)

			msgRet := port.RetrieveIncoming()

			Expect(msgRet).To(BeIdenticalTo(msg))
			Expect(port.PeekIncoming()).To(BeNil())
		})

	It("should allow connection to retrieve message from outgoing buffer",
		func() {
			msg := &sampleMsg{}
			port.outgoingBuf.Push(msg)

			msgRet := port.RetrieveOutgoing()

			Expect(msgRet).To(BeIdenticalTo(msg))
		})

	It("should invoke hooks when sending and retrieving", func() {
		positions := []*HookPos{}
		port.AcceptHook(HookFunc(func(ctx HookCtx) {
			positions = append(positions, ctx.Pos)
		}))

		msg := &sampleMsg{}
		msg.Src = port.AsRemote()
		msg.Dst = "DstPort"
		port.Send(msg)
		port.Deliver(msg)
		port.RetrieveIncoming()

		Expect(positions).To(Equal([]*HookPos{
			HookPosPortMsgSend,
			HookPosPortMsgRecvd,
			HookPosPortMsgRetrieveIncoming,
		}))
	})
})
