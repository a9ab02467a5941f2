package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/playfunia-backend/pkg/enums"
)

// ErrEmptyData marks an envelope stored without a payload.
var ErrEmptyData = errors.New("outbox envelope has no data")

// Actor is the signed-in user whose request queued the event. Guest checkouts
// and background rules leave it unset.
type Actor struct {
	UserID uuid.UUID  `json:"userId"`
	Role   enums.Role `json:"role,omitempty"`
}

// Envelope is the JSON document stored in outbox_events.payload.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	RequestID  string          `json:"requestId,omitempty"`
	Actor      *Actor          `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeData unmarshals the payload into v.
func (e Envelope) DecodeData(v any) error {
	trimmed := bytes.TrimSpace(e.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ErrEmptyData
	}
	return json.Unmarshal(trimmed, v)
}
