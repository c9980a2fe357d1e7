package spotmicro

import (
	"sync"

	"golang.org/x/time/rate"
)

// MaxClients bounds simultaneous adapter connections (WS + BLE
// combined), mirroring comm_base.hpp's fixed client id space.
const MaxClients = 4

// clientSendRate and clientSendBurst bound how fast the fan-out writes
// to any one client, independent of how fast its subscribed topics
// publish, applied at the send boundary rather than inside the bus
// itself (bus.go's interval/batch shaping already throttles the
// *subscription*; this throttles the *transport write* on top of that).
const (
	clientSendRate  = rate.Limit(100)
	clientSendBurst = 20
)

// ClientID identifies one connected peer. -1 is the invalid id.
type ClientID int

const noClient ClientID = -1

// clientSink is what an adapter needs from a live connection to deliver
// an already-encoded frame; ws_adapter.go and ble_adapter.go each
// implement one.
type clientSink interface {
	send(b []byte) error
	close() error
}

type clientConn struct {
	id      ClientID
	sink    clientSink
	limiter *rate.Limiter
}

// clientRegistry is the per-adapter-instance client table plus the
// per-topic subscriber index, adapted from registry.go's refcounted
// port-path map into a refcount-free fixed-size slot array (a client
// owns exactly one slot for its connection lifetime, no sharing).
type clientRegistry struct {
	mu      sync.Mutex
	clients [MaxClients]*clientConn
	subs    [int(topicCount)]map[ClientID]struct{}
}

func newClientRegistry() *clientRegistry {
	r := &clientRegistry{}
	for i := range r.subs {
		r.subs[i] = make(map[ClientID]struct{})
	}
	return r
}

// register allocates a free slot for sink, or returns noClient if the
// registry is full.
func (r *clientRegistry) register(sink clientSink) ClientID {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < MaxClients; i++ {
		if r.clients[i] == nil {
			r.clients[i] = &clientConn{
				id:      ClientID(i),
				sink:    sink,
				limiter: rate.NewLimiter(clientSendRate, clientSendBurst),
			}
			return ClientID(i)
		}
	}
	return noClient
}

// unregister drops id from its slot and every topic subscription.
func (r *clientRegistry) unregister(id ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || int(id) >= MaxClients {
		return
	}
	r.clients[id] = nil
	for _, set := range r.subs {
		delete(set, id)
	}
}

func (r *clientRegistry) subscribe(id ClientID, topics []Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range topics {
		if t.Valid() {
			r.subs[t][id] = struct{}{}
		}
	}
}

func (r *clientRegistry) unsubscribe(id ClientID, topics []Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range topics {
		if t.Valid() {
			delete(r.subs[t], id)
		}
	}
}

// subscribersOf returns a snapshot of clients subscribed to topic,
// excluding excl (the publisher, to avoid echo).
func (r *clientRegistry) subscribersOf(topic Topic, excl ClientID) []*clientConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !topic.Valid() {
		return nil
	}
	out := make([]*clientConn, 0, len(r.subs[topic]))
	for id := range r.subs[topic] {
		if id == excl {
			continue
		}
		if c := r.clients[id]; c != nil {
			out = append(out, c)
		}
	}
	return out
}
