package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

// Encode serializes items as the persisted JSON array.
func Encode(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(items)
}

// Decode parses a persisted document. It never fails: a document that is not
// a JSON array loads as empty, and entries that do not decode or validate are
// dropped.
func Decode(ctx context.Context, data []byte, logg *logger.Logger) []Item {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []Item{}
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		warn(ctx, logg, "stored cart is not a JSON array, starting empty", err, nil)
		return []Item{}
	}
	items := make([]Item, 0, len(raw))
	for idx, entry := range raw {
		var item Item
		if err := json.Unmarshal(entry, &item); err != nil {
			warn(ctx, logg, "dropping unreadable cart item", err, map[string]any{"index": idx})
			continue
		}
		if err := item.validateShape(); err != nil {
			warn(ctx, logg, "dropping invalid cart item", err, map[string]any{"index": idx})
			continue
		}
		items = append(items, item)
	}
	return items
}

// Fingerprint hashes the canonical JSON of items. Two snapshots with the same
// items in the same order share a fingerprint.
func Fingerprint(items []Item) (string, error) {
	data, err := Encode(items)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func warn(ctx context.Context, logg *logger.Logger, msg string, err error, fields map[string]any) {
	if logg == nil {
		return
	}
	if fields == nil {
		fields = map[string]any{}
	}
	fields["error"] = err.Error()
	logg.Warn(logg.WithFields(ctx, fields), msg)
}
