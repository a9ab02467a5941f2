package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	stripego "github.com/stripe/stripe-go/v84"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/playfunia-backend/internal/ledger"
	"github.com/angelmondragon/playfunia-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/httpclient"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

type apiStub struct {
	mu       sync.Mutex
	t        *testing.T
	requests map[string][]json.RawMessage
	replies  map[string]string
	status   map[string]int
	headers  map[string]http.Header
}

func newAPIStub(t *testing.T) (*apiStub, *httpclient.Client) {
	stub := &apiStub{
		t:        t,
		requests: map[string][]json.RawMessage{},
		replies:  map[string]string{},
		status:   map[string]int{},
		headers:  map[string]http.Header{},
	}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	api, err := httpclient.New(httpclient.Config{BaseURL: srv.URL, Timeout: time.Second}, nil)
	require.NoError(t, err)
	return stub, api
}

func (s *apiStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.URL.Path] = append(s.requests[r.URL.Path], body)
	s.headers[r.URL.Path] = r.Header.Clone()
	status := s.status[r.URL.Path]
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(s.replies[r.URL.Path]))
}

func (s *apiStub) lastRequest(path string, out any) {
	s.t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	reqs := s.requests[path]
	require.NotEmpty(s.t, reqs, "no request to %s", path)
	require.NoError(s.t, json.Unmarshal(reqs[len(reqs)-1], out))
}

func (s *apiStub) reply(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[path] = body
}

func (s *apiStub) fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[path] = status
}

func (s *apiStub) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests[path])
}

func (s *apiStub) header(path, key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[path].Get(key)
}

type stubAuthorizer struct {
	calls int
	id    string
}

func (a *stubAuthorizer) Authorize(_ context.Context, id, _ string) (string, error) {
	a.calls++
	if a.id != "" {
		return a.id, nil
	}
	return id, nil
}

func cartSnapshot() []ledger.Item {
	return []ledger.Item{
		ledger.NewTicket("t1", ledger.Ticket{Label: "Open play", Quantity: 2, UnitPrice: 20, Total: 40}),
		ledger.NewMembership("m1", ledger.Membership{MembershipID: "gold", Label: "Gold", MonthlyPrice: 65, DurationMonths: 1, Total: 65}),
	}
}

func TestLineItemsPreservesOrderAndRejectsBookings(t *testing.T) {
	lines, err := LineItems(cartSnapshot())
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "t1", lines[0].ItemID)
	assert.Equal(t, checkout.ItemTicket, lines[0].Type)
	assert.Equal(t, "gold", lines[1].MembershipID)
	assert.Equal(t, 1, lines[1].Quantity)

	booking := ledger.NewBooking("b-1", ledger.Booking{BookingID: "b1"})
	_, err = LineItems([]ledger.Item{booking})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestBrokerPrepareUsesServerSummary(t *testing.T) {
	stub, api := newAPIStub(t)
	stub.reply(stripeIntentPath, `{"data":{"provider":"stripe","paymentIntentId":"pi_1","clientSecret":"pi_1_secret","amount":3600,"currency":"usd","summary":{"currency":"usd","subtotal":40,"discounts":[{"label":"Promo code","amount":4}],"total":36,"lines":[]},"promoCode":"PLAYFUN10","mock":false}}`)

	provider, err := NewStripe(api, nil)
	require.NoError(t, err)
	broker, err := NewBroker(provider, logger.Nop())
	require.NoError(t, err)

	intent, err := broker.Prepare(context.Background(), Order{Items: cartSnapshot()[:1], PromoCode: " playfun10 "})
	require.NoError(t, err)
	require.Equal(t, 36.0, intent.Summary.Total)
	require.Equal(t, int64(3600), intent.Amount)

	var sent checkout.IntentRequest
	stub.lastRequest(stripeIntentPath, &sent)
	require.Equal(t, "PLAYFUN10", sent.PromoCode)
	require.Len(t, sent.Items, 1)
	require.Equal(t, 40.0, sent.Items[0].Total)
}

func TestBrokerSurfacesServerErrorsWithoutRetry(t *testing.T) {
	stub, api := newAPIStub(t)
	stub.fail(stripeIntentPath, http.StatusBadRequest)
	stub.reply(stripeIntentPath, `{"error":{"code":"VALIDATION_ERROR","message":"Please complete the waiver before paying."}}`)

	provider, _ := NewStripe(api, nil)
	broker, _ := NewBroker(provider, nil)
	_, err := broker.Prepare(context.Background(), Order{Items: cartSnapshot()})

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, "Please complete the waiver before paying.", typed.Message())
	require.Equal(t, 1, stub.count(stripeIntentPath))
}

func TestBrokerRejectsEmptyCartLocally(t *testing.T) {
	stub, api := newAPIStub(t)
	provider, _ := NewStripe(api, nil)
	broker, _ := NewBroker(provider, nil)

	_, err := broker.Prepare(context.Background(), Order{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Zero(t, stub.count(stripeIntentPath))
}

func TestStripeAuthorizeSkipsMockIntents(t *testing.T) {
	_, api := newAPIStub(t)
	auth := &stubAuthorizer{}
	provider, _ := NewStripe(api, auth)

	proof, err := provider.Authorize(context.Background(), checkout.IntentResponse{Mock: true, PaymentIntentID: "mock_pi_1"})
	require.NoError(t, err)
	require.Equal(t, "mock_pi_1", proof.PaymentIntentID)
	require.Zero(t, auth.calls)

	proof, err = provider.Authorize(context.Background(), checkout.IntentResponse{PaymentIntentID: "pi_1", ClientSecret: "s"})
	require.NoError(t, err)
	require.Equal(t, "pi_1", proof.PaymentIntentID)
	require.Equal(t, 1, auth.calls)
}

func TestStripeFinalizeSendsSnapshotAndProof(t *testing.T) {
	stub, api := newAPIStub(t)
	stub.reply(stripeFinalizePath, `{"data":{"provider":"stripe","paymentIntentId":"pi_1","summary":{"total":36},"tickets":[{"cartIndex":0,"itemId":"t1","ticket":{"id":"tk_1","codes":[{"code":"ABC123","status":"valid"}],"discounts":[],"purchasedAt":"2026-03-14T15:00:00Z"}}],"memberships":[]}}`)
	provider, _ := NewStripe(api, nil)

	out, err := provider.Finalize(context.Background(), Order{Items: cartSnapshot()[:1]}, Proof{PaymentIntentID: "pi_1"})
	require.NoError(t, err)
	require.Len(t, out.Tickets, 1)
	require.Equal(t, "ABC123", out.Tickets[0].Ticket.Codes[0].Code)

	var sent checkout.FinalizeRequest
	stub.lastRequest(stripeFinalizePath, &sent)
	require.Equal(t, "pi_1", sent.PaymentIntentID)
	require.Equal(t, "t1", sent.Items[0].ItemID)
	require.Equal(t, "finalize:pi_1", stub.header(stripeFinalizePath, "Idempotency-Key"))
}

func TestSquareFinalizeRoutesByProof(t *testing.T) {
	stub, api := newAPIStub(t)
	stub.reply(squareFinalizePath, `{"data":{"provider":"square","paymentId":"sq_1","tickets":[],"memberships":[]}}`)
	stub.reply(stripeFinalizePath, `{"data":{"provider":"mock","paymentIntentId":"mock_pi_1","tickets":[],"memberships":[]}}`)
	provider, _ := NewSquare(api, StaticTokenizer("cnon:card-nonce-ok"))

	proof, err := provider.Authorize(context.Background(), checkout.IntentResponse{Amount: 3600, Currency: "usd"})
	require.NoError(t, err)
	require.Equal(t, "cnon:card-nonce-ok", proof.SourceID)

	out, err := provider.Finalize(context.Background(), Order{Items: cartSnapshot()}, proof)
	require.NoError(t, err)
	require.Equal(t, "sq_1", out.PaymentID)
	var sent checkout.FinalizeRequest
	stub.lastRequest(squareFinalizePath, &sent)
	require.Equal(t, "cnon:card-nonce-ok", sent.SourceID)

	out, err = provider.Finalize(context.Background(), Order{Items: cartSnapshot()}, Proof{PaymentIntentID: "mock_pi_1"})
	require.NoError(t, err)
	require.Equal(t, "mock_pi_1", out.PaymentIntentID)
}

func TestDepositsMockFastPath(t *testing.T) {
	stub, api := newAPIStub(t)
	stub.reply("/api/bookings/b1/deposit/intent", `{"data":{"bookingId":"b1","paymentIntentId":"pi_test","clientSecret":"mock_secret_1","amount":200,"currency":"usd","mock":true}}`)
	stub.reply("/api/bookings/b1/deposit/confirm", `{"data":{"bookingId":"b1","balanceRemaining":400,"status":"deposit_paid"}}`)
	auth := &stubAuthorizer{}
	deposits, err := NewDeposits(api, auth)
	require.NoError(t, err)

	ctx := context.Background()
	intent, err := deposits.Prepare(ctx, "b1")
	require.NoError(t, err)
	id, err := deposits.Authorize(ctx, intent)
	require.NoError(t, err)
	require.Equal(t, "pi_test", id)
	require.Zero(t, auth.calls)

	confirmed, err := deposits.Confirm(ctx, "b1", id)
	require.NoError(t, err)
	require.Equal(t, 400.0, confirmed.BalanceRemaining)
	var sent checkout.DepositConfirmRequest
	stub.lastRequest("/api/bookings/b1/deposit/confirm", &sent)
	require.Equal(t, "pi_test", sent.PaymentIntentID)
}

type stubConfirmer struct {
	status stripego.PaymentIntentStatus
	method string
}

func (s *stubConfirmer) ConfirmPaymentIntent(_ context.Context, id, pm string) (*stripego.PaymentIntent, error) {
	s.method = pm
	return &stripego.PaymentIntent{ID: id, Status: s.status}, nil
}

func TestStripeConfirmerRequiresSucceeded(t *testing.T) {
	stub := &stubConfirmer{status: stripego.PaymentIntentStatusRequiresAction}
	confirmer := &StripeConfirmer{client: stub, paymentMethod: "pm_card_visa"}

	_, err := confirmer.Authorize(context.Background(), "pi_1", "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePayment))
	require.Equal(t, "pm_card_visa", stub.method)

	stub.status = stripego.PaymentIntentStatusSucceeded
	id, err := confirmer.Authorize(context.Background(), "pi_1", "")
	require.NoError(t, err)
	require.Equal(t, "pi_1", id)
}
