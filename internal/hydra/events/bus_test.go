package events

import (
	"fmt"
	"testing"
	"time"

	"github.com/smallbiznis/hydrapay/internal/hydra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) hydra.HeadEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatalf("subscription closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return hydra.HeadEvent{}
}

func TestBusDeliversToTopicAndWildcard(t *testing.T) {
	bus := NewBus()

	head, _, err := bus.Subscribe("head_1", 4)
	require.NoError(t, err)
	defer head.Close()
	all, _, err := bus.Subscribe(Wildcard, 4)
	require.NoError(t, err)
	defer all.Close()
	other, _, err := bus.Subscribe("head_2", 4)
	require.NoError(t, err)
	defer other.Close()

	bus.Publish(hydra.HeadEvent{Tag: hydra.TagHeadIsOpen, HeadID: "head_1"})

	assert.Equal(t, hydra.TagHeadIsOpen, receive(t, head).Tag)
	assert.Equal(t, "head_1", receive(t, all).HeadID)
	select {
	case ev := <-other.Events():
		t.Fatalf("unexpected event on other topic: %+v", ev)
	default:
	}
}

func TestBusReplaysBacklogToLateSubscriber(t *testing.T) {
	bus := NewBus()
	bus.Publish(hydra.HeadEvent{Tag: hydra.TagHeadIsOpen, HeadID: "head_1"})
	bus.Publish(hydra.HeadEvent{Tag: hydra.TagTxValid, HeadID: "head_1", TxHash: "tx_1"})

	sub, backlog, err := bus.Subscribe("head_1", 1)
	require.NoError(t, err)
	defer sub.Close()

	require.Len(t, backlog, 2)
	assert.Equal(t, hydra.TagHeadIsOpen, backlog[0].Tag)
	assert.Equal(t, "tx_1", backlog[1].TxHash)
}

func TestBusPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	sub, _, err := bus.Subscribe("head_1", 1)
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < 10; i++ {
		bus.Publish(hydra.HeadEvent{Tag: hydra.TagTxValid, HeadID: "head_1"})
	}
	assert.Len(t, sub.Events(), 1)
}

func TestSubscriptionCloseClosesChannel(t *testing.T) {
	bus := NewBus()
	sub, _, err := bus.Subscribe("head_1", 1)
	require.NoError(t, err)

	sub.Close()
	sub.Close()
	_, ok := <-sub.Events()
	assert.False(t, ok)

	bus.Publish(hydra.HeadEvent{Tag: hydra.TagTxValid, HeadID: "head_1"})
}

func TestBusRejectsEmptyTopic(t *testing.T) {
	_, _, err := NewBus().Subscribe(" ", 1)
	assert.ErrorIs(t, err, ErrInvalidTopic)

	var nilBus *Bus
	_, _, err = nilBus.Subscribe("head_1", 1)
	assert.ErrorIs(t, err, ErrBusUnavailable)
}

func TestBusForgetDropsBacklog(t *testing.T) {
	bus := NewBus()
	bus.Publish(hydra.HeadEvent{Tag: hydra.TagHeadIsClosed, HeadID: "head_1"})
	bus.Forget("head_1")

	sub, backlog, err := bus.Subscribe("head_1", 1)
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, backlog)
}

func topicCount(bus *Bus) int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	return len(bus.topics)
}

func TestBusForgetKeepsTopicsBoundedAcrossHeads(t *testing.T) {
	bus := NewBus()
	all, _, err := bus.Subscribe(Wildcard, 256)
	require.NoError(t, err)
	defer all.Close()

	for i := 0; i < 50; i++ {
		headID := fmt.Sprintf("head_%d", i)
		bus.Publish(hydra.HeadEvent{Tag: hydra.TagHeadIsOpen, HeadID: headID})
		bus.Publish(hydra.HeadEvent{Tag: hydra.TagHeadIsClosed, HeadID: headID})
		bus.Forget(headID)
	}

	// only the wildcard topic survives
	assert.Equal(t, 1, topicCount(bus))
}

func TestBusDropsForgottenTopicWhenLastStreamLeaves(t *testing.T) {
	bus := NewBus()
	sub, _, err := bus.Subscribe("head_1", 4)
	require.NoError(t, err)
	bus.Publish(hydra.HeadEvent{Tag: hydra.TagHeadIsClosed, HeadID: "head_1"})

	bus.Forget("head_1")
	assert.Equal(t, 1, topicCount(bus), "topic stays while a stream is attached")
	assert.Equal(t, hydra.TagHeadIsClosed, receive(t, sub).Tag)

	sub.Close()
	assert.Equal(t, 0, topicCount(bus))
}
