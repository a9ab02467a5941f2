package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/angelmondragon/playfunia-backend/internal/adminevents"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

const defaultHeartbeat = 25 * time.Second

type eventHub interface {
	Subscribe() *adminevents.Subscription
}

type subscriberGauge interface {
	SubscriberConnected()
	SubscriberDisconnected()
}

// AdminEvents streams operational events as server-sent events. The hub's
// history is replayed first, then live events follow until the client leaves.
func AdminEvents(hub eventHub, heartbeat time.Duration, gauge subscriberGauge, logg *logger.Logger) http.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rc := http.NewResponseController(w)
		// The stream outlives the server write timeout.
		if err := rc.SetWriteDeadline(time.Time{}); err != nil && logg != nil {
			logg.Debug(logg.WithField(ctx, "error", err.Error()), "admin events: write deadline not cleared")
		}

		sub := hub.Subscribe()
		defer sub.Close()
		if gauge != nil {
			gauge.SubscriberConnected()
			defer gauge.SubscriberDisconnected()
		}

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			if logg != nil {
				logg.Error(ctx, "admin events: streaming unsupported", err)
			}
			return
		}
		for _, evt := range sub.Replay {
			if err := writeEvent(w, evt); err != nil {
				return
			}
		}
		_ = rc.Flush()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
					return
				}
			case evt, ok := <-sub.C:
				if !ok {
					return
				}
				if err := writeEvent(w, evt); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, evt types.AdminEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
