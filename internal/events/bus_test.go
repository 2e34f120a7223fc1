package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan Event, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	for len(out) < n {
		select {
		case ev := <-ch:
			out = append(out, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}

func TestBusOrdering(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(Event{RunID: "r1", Type: RunStarted})
	bus.Publish(Event{RunID: "r1", Type: NodeStarted, NodeID: "a"})
	bus.Publish(Event{RunID: "r1", Type: NodeCompleted, NodeID: "a"})

	got := collect(t, ch, 3)
	assert.Equal(t, RunStarted, got[0].Type)
	assert.Equal(t, NodeStarted, got[1].Type)
	assert.Equal(t, NodeCompleted, got[2].Type)

	// Seq strictly increases in publish order.
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Seq, got[i-1].Seq)
	}
	assert.False(t, got[0].Time.IsZero())
}

func TestBusFanOut(t *testing.T) {
	bus := NewBus()
	ch1, cancel1 := bus.Subscribe()
	defer cancel1()
	ch2, cancel2 := bus.Subscribe()
	defer cancel2()

	bus.Publish(Event{RunID: "r1", Type: RunStarted})
	bus.Publish(Event{RunID: "r1", Type: RunCompleted})

	for _, ch := range []<-chan Event{ch1, ch2} {
		got := collect(t, ch, 2)
		assert.Equal(t, RunStarted, got[0].Type)
		assert.Equal(t, RunCompleted, got[1].Type)
	}
}

func TestBusCancel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()

	bus.Publish(Event{Type: RunStarted})
	collect(t, ch, 1)

	cancel()
	cancel() // idempotent

	// The output channel closes and later publishes are not delivered.
	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after cancel")
	}
	bus.Publish(Event{Type: RunCompleted})
}

func TestBusLateSubscriberMissesHistory(t *testing.T) {
	bus := NewBus()
	bus.Publish(Event{Type: RunStarted})

	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(Event{Type: RunCompleted})
	got := collect(t, ch, 1)
	require.Equal(t, RunCompleted, got[0].Type)
}
