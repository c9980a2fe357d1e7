package spotmicro

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSink struct {
	sent   [][]byte
	closed bool
}

func (s *fakeSink) send(b []byte) error {
	s.sent = append(s.sent, b)
	return nil
}

func (s *fakeSink) close() error {
	s.closed = true
	return nil
}

func TestRegisterAssignsDistinctIDsUpToCapacity(t *testing.T) {
	r := newClientRegistry()
	var ids []ClientID
	for i := 0; i < MaxClients; i++ {
		id := r.register(&fakeSink{})
		assert.NotEqual(t, noClient, id)
		ids = append(ids, id)
	}
	overflow := r.register(&fakeSink{})
	assert.Equal(t, noClient, overflow)

	seen := map[ClientID]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate client id assigned")
		seen[id] = true
	}
}

func TestUnregisterFreesSlotAndSubscriptions(t *testing.T) {
	r := newClientRegistry()
	id := r.register(&fakeSink{})
	r.subscribe(id, []Topic{TopicImu})
	assert.Len(t, r.subscribersOf(TopicImu, noClient), 1)

	r.unregister(id)
	assert.Len(t, r.subscribersOf(TopicImu, noClient), 0)

	// the freed slot must be reusable
	newID := r.register(&fakeSink{})
	assert.Equal(t, id, newID)
}

func TestSubscribersOfExcludesGivenClient(t *testing.T) {
	r := newClientRegistry()
	a := r.register(&fakeSink{})
	b := r.register(&fakeSink{})
	r.subscribe(a, []Topic{TopicImu})
	r.subscribe(b, []Topic{TopicImu})

	targets := r.subscribersOf(TopicImu, a)
	assert.Len(t, targets, 1)
	assert.Equal(t, b, targets[0].id)
}

func TestSubscribeIgnoresInvalidTopic(t *testing.T) {
	r := newClientRegistry()
	id := r.register(&fakeSink{})
	r.subscribe(id, []Topic{topicCount, Topic(255)})
	for topic := Topic(0); topic < topicCount; topic++ {
		assert.Len(t, r.subscribersOf(topic, noClient), 0)
	}
}

func TestUnsubscribeRemovesOnlyNamedTopics(t *testing.T) {
	r := newClientRegistry()
	id := r.register(&fakeSink{})
	r.subscribe(id, []Topic{TopicImu, TopicSonar})
	r.unsubscribe(id, []Topic{TopicImu})

	assert.Len(t, r.subscribersOf(TopicImu, noClient), 0)
	assert.Len(t, r.subscribersOf(TopicSonar, noClient), 1)
}
