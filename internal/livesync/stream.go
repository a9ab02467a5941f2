package livesync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/r3labs/sse/v2"
	"gopkg.in/cenkalti/backoff.v1"

	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

// Status is the connection state of the admin event stream.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Event is one notification pushed on GET /api/admin/events.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

var refreshTypes = map[string]struct{}{
	"booking.created":          {},
	"booking.updated":          {},
	"booking.cancelled":        {},
	"booking.statusUpdated":    {},
	"ticket.reserved":          {},
	"ticket.redeemed":          {},
	"waiver.updated":           {},
	"membership.visitRecorded": {},
}

// TriggersRefresh reports whether an event type should refetch the dashboard.
func TriggersRefresh(eventType string) bool {
	_, ok := refreshTypes[eventType]
	return ok
}

type StreamOptions struct {
	URL        string
	Token      string
	HTTPClient *http.Client
	Logger     *logger.Logger
	OnStatus   func(Status)
	OnEvent    func(Event)
}

// Stream consumes the admin event stream. Reconnects are left to the SSE
// client's own backoff, bounded by the stream's context; the stream only
// reports status transitions.
type Stream struct {
	client   *sse.Client
	logger   *logger.Logger
	onStatus func(Status)
	onEvent  func(Event)

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

func NewStream(opts StreamOptions) (*Stream, error) {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		return nil, errors.New("event stream url is required")
	}
	if opts.OnEvent == nil {
		return nil, errors.New("event handler is required")
	}
	client := sse.NewClient(url)
	if opts.HTTPClient != nil {
		client.Connection = opts.HTTPClient
	}
	if token := strings.TrimSpace(opts.Token); token != "" {
		client.Headers["Authorization"] = "Bearer " + token
	}
	s := &Stream{
		client:   client,
		logger:   opts.Logger,
		onStatus: opts.OnStatus,
		onEvent:  opts.OnEvent,
	}
	client.OnConnect(func(*sse.Client) { s.setStatus(StatusConnected) })
	client.OnDisconnect(func(*sse.Client) { s.setStatus(StatusDisconnected) })
	return s, nil
}

// Start subscribes in the background. It is a no-op when already started.
func (s *Stream) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = 10 * time.Second
	policy.MaxElapsedTime = 0
	s.client.ReconnectStrategy = backoff.WithContext(policy, ctx)

	s.setStatus(StatusConnecting)
	go func() {
		defer close(s.done)
		err := s.client.SubscribeRawWithContext(ctx, s.handle)
		if err != nil && ctx.Err() == nil && s.logger != nil {
			s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "admin event stream ended")
		}
		s.setStatus(StatusDisconnected)
	}()
}

func (s *Stream) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Close cancels the subscription and waits for it to return.
func (s *Stream) Close() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Stream) handle(msg *sse.Event) {
	if msg == nil || len(msg.Data) == 0 {
		return
	}
	var evt Event
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		if s.logger != nil {
			s.logger.Debug(context.Background(), "ignoring malformed admin event")
		}
		return
	}
	if evt.Type == "" {
		return
	}
	s.onEvent(evt)
}

func (s *Stream) setStatus(next Status) {
	s.mu.Lock()
	changed := s.status != next
	s.status = next
	s.mu.Unlock()
	if changed && s.onStatus != nil {
		s.onStatus(next)
	}
}
