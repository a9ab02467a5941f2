package adminevents

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

func TestHubReplaysRecentHistory(t *testing.T) {
	hub := NewHub(3)
	for i := 0; i < 5; i++ {
		hub.Publish(types.AdminEvent{Type: fmt.Sprintf("booking.%d", i)})
	}

	sub := hub.Subscribe()
	defer sub.Close()
	require.Len(t, sub.Replay, 3)
	require.Equal(t, "booking.2", sub.Replay[0].Type)
	require.Equal(t, "booking.4", sub.Replay[2].Type)
	require.False(t, sub.Replay[0].Timestamp.IsZero())
}

func TestHubDefaultsToHundred(t *testing.T) {
	hub := NewHub(0)
	for i := 0; i < 150; i++ {
		hub.Publish(types.AdminEvent{Type: "ticket.reserved"})
	}
	require.Len(t, hub.Recent(), DefaultHistory)
}

func TestHubFansOutLiveEvents(t *testing.T) {
	hub := NewHub(10)
	first := hub.Subscribe()
	second := hub.Subscribe()
	require.Equal(t, 2, hub.Subscribers())

	hub.Publish(types.AdminEvent{Type: "waiver.updated"})
	require.Equal(t, "waiver.updated", (<-first.C).Type)
	require.Equal(t, "waiver.updated", (<-second.C).Type)

	first.Close()
	first.Close()
	require.Equal(t, 1, hub.Subscribers())
	_, open := <-first.C
	require.False(t, open)
	second.Close()
}

func TestHubDoesNotBlockOnSlowSubscriber(t *testing.T) {
	hub := NewHub(10)
	slow := hub.Subscribe()
	defer slow.Close()

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(types.AdminEvent{Type: "ticket.redeemed"})
	}
	require.Equal(t, uint64(5), hub.Dropped())
	require.Len(t, slow.C, subscriberBuffer)
}
