package spotmicro

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscribePublishDelivers(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	received := make(chan MotionInputMsg, 1)
	Subscribe(b, TopicMotionInput, 0, Latest, func(msgs []MotionInputMsg) {
		received <- msgs[len(msgs)-1]
	})

	b.Publish(TopicMotionInput, MotionInputMsg{Lx: 0.5}, Handle{})

	select {
	case msg := <-received:
		assert.Equal(t, 0.5, msg.Lx)
	case <-time.After(time.Second):
		t.Fatal("no delivery within timeout")
	}
}

func TestDispatchFiltersByTopic(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	var mu sync.Mutex
	var gotWrongTopic bool
	Subscribe(b, TopicImu, 0, Latest, func(msgs []ImuMsg) {
		mu.Lock()
		gotWrongTopic = true
		mu.Unlock()
	})

	done := make(chan struct{})
	Subscribe(b, TopicMotionInput, 0, Latest, func(msgs []MotionInputMsg) {
		close(done)
	})

	b.Publish(TopicMotionInput, MotionInputMsg{}, Handle{})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected subscriber never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, gotWrongTopic, "a TopicImu subscriber must never see a TopicMotionInput publish")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	var calls int
	var mu sync.Mutex
	h := Subscribe(b, TopicCommand, 0, Latest, func(msgs []CommandMsg) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	b.Publish(TopicCommand, CommandMsg{}, Handle{})
	time.Sleep(50 * time.Millisecond)
	h.Unsubscribe()
	b.Publish(TopicCommand, CommandMsg{}, Handle{})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
	assert.False(t, h.Valid())
}

func TestSubscriptionExhaustedReturnsInvalidHandle(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	var handles []Handle
	for i := 0; i < MaxSubs; i++ {
		handles = append(handles, Subscribe(b, TopicCommand, 0, Latest, func(msgs []CommandMsg) {}))
	}
	for _, h := range handles {
		assert.True(t, h.Valid())
	}

	overflow := Subscribe(b, TopicCommand, 0, Latest, func(msgs []CommandMsg) {})
	assert.False(t, overflow.Valid())
}

func TestPublishAsyncDropsOnFullQueue(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	// A subscriber that never returns stalls the worker, so the queue
	// actually fills instead of being drained as fast as it is written.
	block := make(chan struct{})
	defer close(block)
	Subscribe(b, TopicCommand, 0, Latest, func(msgs []CommandMsg) { <-block })

	ok := true
	for i := 0; i < queueDepth+10 && ok; i++ {
		ok = b.PublishAsync(TopicCommand, CommandMsg{}, Handle{})
	}
	assert.False(t, ok, "PublishAsync must eventually report a dropped message once the queue backs up")
}

func TestPeekReturnsLatestWithoutSubscription(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	_, ok := Peek[ImuMsg](b, TopicImu)
	assert.False(t, ok)

	b.Publish(TopicImu, ImuMsg{Yaw: 12}, Handle{})
	time.Sleep(20 * time.Millisecond)

	msg, ok := Peek[ImuMsg](b, TopicImu)
	assert.True(t, ok)
	assert.Equal(t, 12.0, msg.Yaw)
}

func TestBatchModeAccumulatesBetweenIntervals(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	got := make(chan []CommandMsg, 1)
	Subscribe(b, TopicCommand, 50, Batch, func(msgs []CommandMsg) {
		got <- msgs
	})

	b.Publish(TopicCommand, CommandMsg{X: 1}, Handle{})
	b.Publish(TopicCommand, CommandMsg{X: 2}, Handle{})
	time.Sleep(80 * time.Millisecond) // clear the subscribe-time interval
	b.Publish(TopicCommand, CommandMsg{X: 3}, Handle{})

	select {
	case msgs := <-got:
		assert.Len(t, msgs, 3, "the interval-elapsed dispatch delivers every item buffered since the last delivery")
	case <-time.After(time.Second):
		t.Fatal("no batch delivered within timeout")
	}
}

func TestHasSubscribers(t *testing.T) {
	b := NewEventBus()
	defer b.Close()

	assert.False(t, b.HasSubscribers(TopicCommand))
	Subscribe(b, TopicCommand, 0, Latest, func(msgs []CommandMsg) {})
	assert.True(t, b.HasSubscribers(TopicCommand))
}
