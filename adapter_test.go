package spotmicro

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestCommAdapterFansOutToSubscribedClients(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	logger := zaptest.NewLogger(t).Sugar()

	a := NewCommAdapter(bus, NewJSONCodec(), logger)
	defer a.Close()

	sinkA := &fakeSink{}
	sinkB := &fakeSink{}
	idA := a.connect(sinkA)
	idB := a.connect(sinkB)
	a.registry.subscribe(idA, []Topic{TopicImu})
	a.registry.subscribe(idB, []Topic{TopicImu})

	bus.Publish(TopicImu, ImuMsg{Yaw: 7}, Handle{})

	assert.Eventually(t, func() bool {
		return len(sinkA.sent) == 1 && len(sinkB.sent) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCommAdapterEchoExclusion(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	logger := zaptest.NewLogger(t).Sugar()

	a := NewCommAdapter(bus, NewJSONCodec(), logger)
	defer a.Close()

	sink := &fakeSink{}
	id := a.connect(sink)
	a.registry.subscribe(id, []Topic{TopicImu})

	a.fanOut(TopicImu, ImuMsg{Yaw: 1}, id)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sink.sent, "fanOut must never echo a frame back to its own excluded client")
}

func TestCommAdapterConnectCapacity(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	logger := zaptest.NewLogger(t).Sugar()

	a := NewCommAdapter(bus, NewJSONCodec(), logger)
	defer a.Close()

	for i := 0; i < MaxClients; i++ {
		assert.NotEqual(t, noClient, a.connect(&fakeSink{}))
	}
	assert.Equal(t, noClient, a.connect(&fakeSink{}))
}

func TestHandleFrameConnectSubscribesClient(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	logger := zaptest.NewLogger(t).Sugar()

	a := NewCommAdapter(bus, NewJSONCodec(), logger)
	defer a.Close()

	sink := &fakeSink{}
	id := a.connect(sink)
	a.handleFrame(id, Frame{Kind: MsgConnect, Topics: []Topic{TopicImu}})

	assert.Len(t, a.registry.subscribersOf(TopicImu, noClient), 1)
}

func TestHandleFramePingRepliesPong(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	logger := zaptest.NewLogger(t).Sugar()

	a := NewCommAdapter(bus, NewJSONCodec(), logger)
	defer a.Close()

	sink := &fakeSink{}
	id := a.connect(sink)
	a.handleFrame(id, Frame{Kind: MsgPing})

	assert.Len(t, sink.sent, 1)
	decoded, err := a.codec.Decode(sink.sent[0])
	assert.NoError(t, err)
	assert.Equal(t, MsgPong, decoded.Kind)
}

func TestHandleFrameEventRepublishesOnBus(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	logger := zaptest.NewLogger(t).Sugar()

	a := NewCommAdapter(bus, NewJSONCodec(), logger)
	defer a.Close()

	got := make(chan MotionModeMsg, 1)
	Subscribe(bus, TopicMotionMode, 0, Latest, func(msgs []MotionModeMsg) { got <- msgs[len(msgs)-1] })

	id := a.connect(&fakeSink{})
	a.handleFrame(id, Frame{Kind: MsgEvent, Topic: TopicMotionMode, Payload: MotionModeMsg{Mode: 3}})

	select {
	case msg := <-got:
		assert.Equal(t, 3, msg.Mode)
	case <-time.After(time.Second):
		t.Fatal("expected republished event to reach bus subscribers")
	}
}

func TestDisconnectClosesSinkAndUnregisters(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	logger := zaptest.NewLogger(t).Sugar()

	a := NewCommAdapter(bus, NewJSONCodec(), logger)
	defer a.Close()

	sink := &fakeSink{}
	id := a.connect(sink)
	a.disconnect(id)

	assert.True(t, sink.closed)
	assert.Nil(t, a.clientByID(id))
}
