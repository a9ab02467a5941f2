package adminevents

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/angelmondragon/playfunia-backend/pkg/redis"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

func TestRedisBridgeForwardsToHub(t *testing.T) {
	srv := miniredis.RunT(t)
	client := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	hub := NewHub(10)
	bridge, err := NewRedisBridge(client, "admin-events", hub, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done, err := bridge.Start(ctx)
	require.NoError(t, err)

	ctxPub := context.Background()
	require.NoError(t, client.Publish(ctxPub, "admin-events", []byte("not json")))
	body, err := json.Marshal(types.AdminEvent{Type: "booking.created", Payload: map[string]any{"reference": "BK-1"}, Timestamp: time.Now()})
	require.NoError(t, err)
	require.NoError(t, client.Publish(ctxPub, "admin-events", body))

	require.Eventually(t, func() bool { return len(hub.Recent()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "booking.created", hub.Recent()[0].Type)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop")
	}
}
