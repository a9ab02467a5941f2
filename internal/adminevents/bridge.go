package adminevents

import (
	"context"
	"encoding/json"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/playfunia-backend/pkg/logger"
	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

type subscriber interface {
	Subscribe(ctx context.Context, channel string) (*goredis.PubSub, error)
}

// RedisBridge feeds messages from the admin events channel into a Hub.
type RedisBridge struct {
	redis   subscriber
	channel string
	hub     *Hub
	logger  *logger.Logger
}

func NewRedisBridge(redis subscriber, channel string, hub *Hub, logg *logger.Logger) (*RedisBridge, error) {
	if redis == nil {
		return nil, errors.New("redis client is required")
	}
	if channel == "" {
		return nil, errors.New("admin events channel is required")
	}
	if hub == nil {
		return nil, errors.New("hub is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &RedisBridge{redis: redis, channel: channel, hub: hub, logger: logg}, nil
}

// Start subscribes and returns once the subscription is confirmed. Messages
// are forwarded until ctx is done; the returned channel closes afterwards.
func (b *RedisBridge) Start(ctx context.Context) (<-chan struct{}, error) {
	sub, err := b.redis.Subscribe(ctx, b.channel)
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				b.forward(ctx, msg.Payload)
			}
		}
	}()
	return done, nil
}

func (b *RedisBridge) forward(ctx context.Context, payload string) {
	var evt types.AdminEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil || evt.Type == "" {
		b.logger.Warn(b.logger.WithField(ctx, "channel", b.channel), "dropping malformed admin event")
		return
	}
	b.hub.Publish(evt)
}
