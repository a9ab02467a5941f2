package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/playfunia-backend/pkg/checkout"
)

func setupEnv(t *testing.T, apiURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cart.json")
	t.Setenv("PLAYFUNIA_CLIENT_CART_PATH", path)
	t.Setenv("PLAYFUNIA_CLIENT_CART_REDIS_KEY", "")
	t.Setenv("PLAYFUNIA_CLIENT_TOKEN", "")
	t.Setenv("PLAYFUNIA_CLIENT_STRIPE_KEY", "")
	t.Setenv("PLAYFUNIA_CLIENT_PROVIDER", "stripe")
	if apiURL != "" {
		t.Setenv("PLAYFUNIA_CLIENT_API_URL", apiURL)
	}
	return path
}

func cartctl(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func TestCartCommandsPersistBetweenRuns(t *testing.T) {
	setupEnv(t, "")

	id, err := cartctl(t, "add-ticket", "-label", "Open play", "-qty", "2", "-price", "18")
	require.NoError(t, err)
	id = strings.TrimSpace(id)
	require.NotEmpty(t, id)

	_, err = cartctl(t, "add-membership", "-plan", "gold", "-label", "Gold", "-monthly", "65", "-months", "3")
	require.NoError(t, err)

	listing, err := cartctl(t, "list")
	require.NoError(t, err)
	require.Contains(t, listing, id)
	require.Contains(t, listing, "Open play")
	require.Contains(t, listing, "Gold")
	require.Contains(t, listing, "195.00")

	_, err = cartctl(t, "remove", id)
	require.NoError(t, err)
	listing, err = cartctl(t, "list")
	require.NoError(t, err)
	require.NotContains(t, listing, "Open play")

	_, err = cartctl(t, "clear")
	require.NoError(t, err)
	listing, err = cartctl(t, "list")
	require.NoError(t, err)
	require.Contains(t, listing, "cart is empty")
}

func TestUnknownCommandFails(t *testing.T) {
	setupEnv(t, "")
	out, err := cartctl(t, "refund")
	require.Error(t, err)
	require.Contains(t, out, "usage: cartctl")
}

func TestRemoveUnknownItemFails(t *testing.T) {
	setupEnv(t, "")
	_, err := cartctl(t, "remove", "missing")
	require.Error(t, err)
}

// mockAPI answers the intent and finalize routes the way the server does in
// mock payment mode.
func mockAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/checkout/intent":
			_ = json.NewEncoder(w).Encode(map[string]any{"data": checkout.IntentResponse{
				Provider:        "mock",
				PaymentIntentID: "mock_pi_1",
				Amount:          1800,
				Currency:        "usd",
				Mock:            true,
				Summary:         checkout.Summary{Currency: "usd", Subtotal: 18, Total: 18},
			}})
		case "/api/checkout/finalize":
			var req checkout.FinalizeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			resp := checkout.FinalizeResponse{
				Provider:        "mock",
				PaymentIntentID: req.PaymentIntentID,
				Summary:         checkout.Summary{Currency: "usd", Subtotal: 18, Total: 18},
			}
			for i, item := range req.Items {
				resp.Tickets = append(resp.Tickets, checkout.TicketResult{
					CartIndex: i,
					ItemID:    item.ItemID,
					Ticket:    checkout.TicketFulfillment{ID: "tk-1", Codes: []checkout.TicketCode{{Code: "ABCD1234"}}},
				})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": resp})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGuestCheckoutMarksTicketsPaid(t *testing.T) {
	srv := mockAPI(t)
	setupEnv(t, srv.URL)

	_, err := cartctl(t, "add-ticket", "-qty", "1", "-price", "18")
	require.NoError(t, err)

	out, err := cartctl(t, "checkout", "-waiver", "-first", "Sam", "-last", "Guest", "-email", "sam@example.com", "-phone", "5185550123")
	require.NoError(t, err)
	require.Contains(t, out, "paid 18.00 via mock")
	require.Contains(t, out, "ABCD1234")

	listing, err := cartctl(t, "list")
	require.NoError(t, err)
	require.Contains(t, listing, "paid")
	require.Contains(t, listing, "ABCD1234")
}

func TestCheckoutWithoutGuestOrTokenFails(t *testing.T) {
	srv := mockAPI(t)
	setupEnv(t, srv.URL)
	_, err := cartctl(t, "add-ticket", "-price", "18")
	require.NoError(t, err)
	_, err = cartctl(t, "checkout", "-waiver")
	require.ErrorContains(t, err, "guest contact details")
}
