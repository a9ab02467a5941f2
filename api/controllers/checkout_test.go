package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/playfunia-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/playfunia-backend/internal/checkout"
	wire "github.com/angelmondragon/playfunia-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
)

type stubCheckoutService struct {
	buyer    checkoutsvc.Buyer
	intent   wire.IntentRequest
	finalize wire.FinalizeRequest
	err      error
}

func (s *stubCheckoutService) CreateIntent(ctx context.Context, buyer checkoutsvc.Buyer, req wire.IntentRequest) (*wire.IntentResponse, error) {
	s.buyer, s.intent = buyer, req
	if s.err != nil {
		return nil, s.err
	}
	return &wire.IntentResponse{Provider: "stripe", PaymentIntentID: "mock_pi_1", Amount: 3600, Currency: "usd", Mock: true}, nil
}

func (s *stubCheckoutService) CreateSquareIntent(ctx context.Context, buyer checkoutsvc.Buyer, req wire.IntentRequest) (*wire.IntentResponse, error) {
	s.buyer, s.intent = buyer, req
	return &wire.IntentResponse{Provider: "square", Amount: 3600, Currency: "usd"}, s.err
}

func (s *stubCheckoutService) Finalize(ctx context.Context, buyer checkoutsvc.Buyer, req wire.FinalizeRequest) (*wire.FinalizeResponse, error) {
	s.buyer, s.finalize = buyer, req
	if s.err != nil {
		return nil, s.err
	}
	return &wire.FinalizeResponse{Provider: "stripe", PaymentIntentID: req.PaymentIntentID}, nil
}

func (s *stubCheckoutService) FinalizeSquare(ctx context.Context, buyer checkoutsvc.Buyer, req wire.FinalizeRequest) (*wire.FinalizeResponse, error) {
	s.buyer, s.finalize = buyer, req
	return &wire.FinalizeResponse{Provider: "square", PaymentID: "sq_1"}, s.err
}

const intentBody = `{"items":[{"itemId":"t1","type":"ticket","label":"Open play","quantity":2,"unitPrice":18,"total":36}],"guest":{"firstName":"Ana","lastName":"Diaz","email":"ana@example.com","phone":"5185550100"}}`

func TestCheckoutIntentGuest(t *testing.T) {
	svc := &stubCheckoutService{}
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/intent", strings.NewReader(intentBody))
	resp := httptest.NewRecorder()
	CheckoutIntent(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.buyer.UserID != nil {
		t.Fatalf("expected guest buyer, got %v", svc.buyer.UserID)
	}
	if len(svc.intent.Items) != 1 || svc.intent.Guest == nil || svc.intent.Guest.Email != "ana@example.com" {
		t.Fatalf("request not forwarded: %+v", svc.intent)
	}
	var payload struct {
		Data wire.IntentResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Data.PaymentIntentID != "mock_pi_1" || !payload.Data.Mock {
		t.Fatalf("unexpected response %+v", payload.Data)
	}
}

func TestCheckoutFinalizeSignedIn(t *testing.T) {
	svc := &stubCheckoutService{}
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/finalize", strings.NewReader(`{"items":[],"paymentIntentId":"pi_9"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	resp := httptest.NewRecorder()
	CheckoutFinalize(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.buyer.UserID == nil || *svc.buyer.UserID != userID {
		t.Fatalf("expected buyer %s got %v", userID, svc.buyer.UserID)
	}
	if svc.finalize.PaymentIntentID != "pi_9" {
		t.Fatalf("expected intent id forwarded, got %q", svc.finalize.PaymentIntentID)
	}
}

func TestCheckoutMapsServiceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", pkgerrors.New(pkgerrors.CodeValidation, "Your cart is empty."), http.StatusBadRequest},
		{"payment", pkgerrors.New(pkgerrors.CodePayment, "Payment has not completed"), http.StatusPaymentRequired},
		{"state", pkgerrors.New(pkgerrors.CodeStateConflict, "cart changed"), http.StatusUnprocessableEntity},
		{"dependency", pkgerrors.New(pkgerrors.CodeDependency, "stripe down"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		svc := &stubCheckoutService{err: tt.err}
		req := httptest.NewRequest(http.MethodPost, "/api/checkout/intent", strings.NewReader(intentBody))
		resp := httptest.NewRecorder()
		CheckoutIntent(svc, nil).ServeHTTP(resp, req)
		if resp.Code != tt.want {
			t.Fatalf("%s: expected %d got %d", tt.name, tt.want, resp.Code)
		}
	}
}

func TestCheckoutRejectsUnknownFields(t *testing.T) {
	svc := &stubCheckoutService{}
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/square/finalize", strings.NewReader(`{"items":[],"sourceId":"cnon:ok","amount":1}`))
	resp := httptest.NewRecorder()
	SquareFinalize(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
