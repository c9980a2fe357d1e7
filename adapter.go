package spotmicro

import (
	"sync"

	"go.uber.org/zap"
)

// CommAdapter is the shared bus-to-client bridge both transports embed,
// grounded on comm_base.hpp's CommBase: one bus subscription per topic,
// a client registry keyed by small integer id, and an encode-once/
// send-to-many fan-out that never re-encodes per recipient.
type CommAdapter struct {
	bus      *EventBus
	codec    Codec
	logger   *zap.SugaredLogger
	registry *clientRegistry

	subHandles [int(topicCount)]Handle
	subMu      sync.Mutex
}

// NewCommAdapter builds an adapter using codec for wire encoding; the
// caller picks JSON for WebSocket, binary for BLE's small MTU.
func NewCommAdapter(bus *EventBus, codec Codec, logger *zap.SugaredLogger) *CommAdapter {
	a := &CommAdapter{
		bus:      bus,
		codec:    codec,
		logger:   logger,
		registry: newClientRegistry(),
	}
	for t := Topic(0); t < topicCount; t++ {
		t := t
		a.subHandles[t] = Subscribe(bus, t, 0, Latest, func(msgs []any) {
			if len(msgs) == 0 {
				return
			}
			a.fanOut(t, msgs[len(msgs)-1], noClient)
		})
	}
	return a
}

// Close releases the adapter's bus subscriptions. Connected clients are
// left to their transport's own accept loop to close.
func (a *CommAdapter) Close() {
	for i := range a.subHandles {
		a.subHandles[i].Unsubscribe()
	}
}

// fanOut encodes one Frame and writes it to every client subscribed to
// topic except excl, the publishing client if any (echo avoidance, per
// §4.8's "never echo a client's own event back to it" rule).
func (a *CommAdapter) fanOut(topic Topic, payload any, excl ClientID) {
	targets := a.registry.subscribersOf(topic, excl)
	if len(targets) == 0 {
		return
	}
	frame := Frame{Kind: MsgEvent, Topic: topic, Payload: payload}
	wire, err := a.codec.Encode(frame)
	if err != nil {
		a.logger.Warnw("encode failed, dropping fan-out", "topic", topic.String(), "error", err)
		return
	}
	for _, c := range targets {
		if !c.limiter.Allow() {
			a.logger.Debugw("client send rate-limited, dropping frame", "client", c.id, "topic", topic.String())
			continue
		}
		if err := c.sink.send(wire); err != nil {
			a.logger.Debugw("client send failed", "client", c.id, "error", err)
		}
	}
}

// connect registers sink and returns its new client id, or noClient if
// the adapter is at capacity (SubscriptionExhausted's client-side analog).
func (a *CommAdapter) connect(sink clientSink) ClientID {
	return a.registry.register(sink)
}

func (a *CommAdapter) disconnect(id ClientID) {
	if c := a.clientByID(id); c != nil {
		_ = c.sink.close()
	}
	a.registry.unregister(id)
}

func (a *CommAdapter) clientByID(id ClientID) *clientConn {
	a.registry.mu.Lock()
	defer a.registry.mu.Unlock()
	if id < 0 || int(id) >= MaxClients {
		return nil
	}
	return a.registry.clients[id]
}

// handleFrame dispatches one decoded inbound frame from client id:
// Connect/Disconnect update its subscription set, Event republishes onto
// the bus with this adapter's own subscription as the excluded slot (so
// the event is not echoed back out through this adapter to any of its
// clients, the sender included), Ping gets an immediate Pong.
func (a *CommAdapter) handleFrame(id ClientID, f Frame) {
	switch f.Kind {
	case MsgConnect:
		a.registry.subscribe(id, f.Topics)
	case MsgDisconnect:
		a.registry.unsubscribe(id, f.Topics)
	case MsgEvent:
		if !f.Topic.Valid() {
			return
		}
		a.bus.Publish(f.Topic, f.Payload, a.subHandles[f.Topic])
	case MsgPing:
		a.replyPong(id)
	}
}

func (a *CommAdapter) replyPong(id ClientID) {
	c := a.clientByID(id)
	if c == nil {
		return
	}
	wire, err := a.codec.Encode(Frame{Kind: MsgPong})
	if err != nil {
		return
	}
	_ = c.sink.send(wire)
}
