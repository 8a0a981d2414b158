package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerFanOutAndUnsubscribe(t *testing.T) {
	broker := NewBroker(2)
	first, unsubFirst := broker.Subscribe()
	second, unsubSecond := broker.Subscribe()
	require.Equal(t, 2, broker.Subscribers())

	broker.Publish(Event{Channel: "blog_posts_changes", Payload: "x"})

	for _, ch := range []<-chan Event{first, second} {
		select {
		case evt := <-ch:
			assert.Equal(t, "x", evt.Payload)
			assert.False(t, evt.ReceivedAt.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	unsubFirst()
	unsubFirst()
	_, open := <-first
	assert.False(t, open)
	assert.Equal(t, 1, broker.Subscribers())

	unsubSecond()
	assert.Equal(t, 0, broker.Subscribers())
}

func TestBrokerDropsWhenSubscriberIsFull(t *testing.T) {
	broker := NewBroker(1)
	ch, unsub := broker.Subscribe()
	defer unsub()

	broker.Publish(Event{Payload: "1"})
	broker.Publish(Event{Payload: "2"})

	evt := <-ch
	assert.Equal(t, "1", evt.Payload)
	select {
	case <-ch:
		t.Fatal("expected second event to be dropped")
	default:
	}
}

func TestBrokerClose(t *testing.T) {
	broker := NewBroker(1)
	ch, unsub := broker.Subscribe()
	broker.Close()
	_, open := <-ch
	assert.False(t, open)
	unsub()

	late, _ := broker.Subscribe()
	_, open = <-late
	assert.False(t, open)
}
