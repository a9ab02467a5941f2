package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/playfunia-backend/pkg/checkout"
	"github.com/angelmondragon/playfunia-backend/pkg/httpclient"
)

// Session is the identity collaborator. Guest returns nil for signed-in
// customers.
type Session interface {
	Token() string
	HasValidWaiver() bool
	Guest() *checkout.Guest
}

// Estimator is the pricing catalog collaborator. Its totals are for display
// only and are never used as the charge amount.
type Estimator interface {
	Estimate(ctx context.Context, packageID string, guests int, addOns []string) (float64, error)
}

type staticSession struct {
	token  string
	waiver bool
	guest  *checkout.Guest
}

func (s staticSession) Token() string { return s.token }
func (s staticSession) HasValidWaiver() bool { return s.waiver }
func (s staticSession) Guest() *checkout.Guest { return s.guest }

// GuestSession is a session without an account.
func GuestSession(guest checkout.Guest) Session {
	return staticSession{guest: &guest}
}

// SignedInSession is a session whose waiver state is already known.
func SignedInSession(token string, hasValidWaiver bool) Session {
	return staticSession{token: token, waiver: hasValidWaiver}
}

type waiverStatus struct {
	HasValidWaiver bool `json:"hasValidWaiver"`
}

// LoadSession resolves the waiver gate of a signed-in customer from the API.
func LoadSession(ctx context.Context, api *httpclient.Client, token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("token is required for a signed-in session")
	}
	var status waiverStatus
	if err := api.WithTokens(httpclient.StaticToken(token)).GetJSON(ctx, "/api/waivers/status", &status); err != nil {
		return nil, fmt.Errorf("load waiver status: %w", err)
	}
	return SignedInSession(token, status.HasValidWaiver), nil
}

// APIEstimator prices party packages through the public estimate endpoint.
type APIEstimator struct {
	api *httpclient.Client
}

func NewAPIEstimator(api *httpclient.Client) *APIEstimator {
	return &APIEstimator{api: api}
}

type estimateRequest struct {
	PartyPackageID string   `json:"partyPackageId"`
	Guests         int      `json:"guests"`
	AddOns         []string `json:"addOns,omitempty"`
}

type estimateResponse struct {
	Total float64 `json:"total"`
}

func (e *APIEstimator) Estimate(ctx context.Context, packageID string, guests int, addOns []string) (float64, error) {
	var out estimateResponse
	req := estimateRequest{PartyPackageID: packageID, Guests: guests, AddOns: addOns}
	if err := e.api.PostJSON(ctx, "/api/bookings/estimate", req, &out); err != nil {
		return 0, err
	}
	return out.Total, nil
}
