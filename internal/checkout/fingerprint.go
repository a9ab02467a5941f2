package checkout

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/angelmondragon/playfunia-backend/internal/pricing"
	wire "github.com/angelmondragon/playfunia-backend/pkg/checkout"
)

// squareKeyPrefix keeps derived keys under Square's 45 character limit.
const squareKeyPrefix = "pfn-"

// Fingerprint identifies the priced content of a request. Lines are hashed in
// order; label and advisory totals are excluded.
func Fingerprint(req wire.IntentRequest) string {
	h := sha256.New()
	for _, item := range req.Items {
		parts := []string{
			item.Type,
			item.ItemID,
			strconv.Itoa(item.Quantity),
			strconv.FormatInt(pricing.ToCents(item.UnitPrice), 10),
			item.EventID,
			item.MembershipID,
			strconv.Itoa(item.DurationMonths),
		}
		h.Write([]byte(strings.Join(parts, "|")))
		h.Write([]byte{'\n'})
	}
	h.Write([]byte(pricing.NormalizePromo(req.PromoCode)))
	return hex.EncodeToString(h.Sum(nil))
}

// squareIdempotencyKey is stable for one card source charging one order.
func squareIdempotencyKey(fingerprint string, amountCents int64, locationID, referenceID, sourceID string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		fingerprint,
		strconv.FormatInt(amountCents, 10),
		locationID,
		referenceID,
		sourceID,
	}, "|")))
	return squareKeyPrefix + hex.EncodeToString(sum[:])[:40]
}

func squareReferenceID(fingerprint string) string {
	return "cart_" + fingerprint[:16]
}
