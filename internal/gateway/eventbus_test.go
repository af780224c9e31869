package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"

	"iotfabric/internal/model"
)

func TestEventBusDeliversToSubscriber(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe()
	defer sub.Close()

	bus.Publish(Event{Type: DeviceAdded, Device: model.DeviceEntry{ID: "a"}})

	<-sub.C()
	events := sub.Next()
	require.Len(t, events, 1)
	require.Equal(t, DeviceAdded, events[0].Type)
	require.Equal(t, "a", events[0].Device.ID)
}

func TestEventBusDropsOldestNotNewestOnOverflow(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe()
	defer sub.Close()

	for i := 0; i < subscriberQueueSize+5; i++ {
		bus.Publish(Event{Type: DeviceAdded, Device: model.DeviceEntry{ID: string(rune('a' + i%26))}})
	}

	events := sub.Next()
	// A Resync is prepended, then exactly the queue's capacity worth of the
	// most recent events survive.
	require.Equal(t, Resync, events[0].Type)
	require.Len(t, events, subscriberQueueSize+1)

	last := events[len(events)-1]
	require.Equal(t, string(rune('a'+(subscriberQueueSize+4)%26)), last.Device.ID, "the newest event must survive the overflow")
}

func TestEventBusMultipleSubscribersIndependent(t *testing.T) {
	bus := NewEventBus()
	s1 := bus.Subscribe()
	s2 := bus.Subscribe()
	defer s1.Close()
	defer s2.Close()

	bus.Publish(Event{Type: DeviceRemoved, Device: model.DeviceEntry{ID: "x"}})

	<-s1.C()
	<-s2.C()
	require.Len(t, s1.Next(), 1)
	require.Len(t, s2.Next(), 1)
}

func TestEventBusClosedSubscriberReceivesNothing(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe()
	sub.Close()

	bus.Publish(Event{Type: DeviceAdded, Device: model.DeviceEntry{ID: "a"}})

	select {
	case <-sub.C():
		t.Fatal("closed subscriber must not receive further events")
	default:
	}
}
