package livesync

import (
	"context"
	"errors"
	"net/url"

	"github.com/angelmondragon/playfunia-backend/pkg/httpclient"
	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

// Source reads the admin datasets and applies back-office edits.
type Source interface {
	Summary(ctx context.Context) (types.AdminSummary, error)
	Bookings(ctx context.Context) ([]types.AdminBooking, error)
	Waivers(ctx context.Context) ([]types.AdminWaiver, error)
	Tickets(ctx context.Context) ([]types.AdminTicket, error)
	Memberships(ctx context.Context) ([]types.AdminMembership, error)

	UpdateBooking(ctx context.Context, id string, patch types.BookingPatch) error
	UpdateWaiver(ctx context.Context, id string, patch types.WaiverPatch) error
	RecordVisit(ctx context.Context, membershipID string) error
}

// APISource reads the admin routes of the Playfunia API.
type APISource struct {
	api *httpclient.Client
}

func NewAPISource(api *httpclient.Client) (*APISource, error) {
	if api == nil {
		return nil, errors.New("api client is required")
	}
	return &APISource{api: api}, nil
}

func (s *APISource) Summary(ctx context.Context) (types.AdminSummary, error) {
	var out types.AdminSummary
	err := s.api.GetJSON(ctx, "/api/admin/summary", &out)
	return out, err
}

func (s *APISource) Bookings(ctx context.Context) ([]types.AdminBooking, error) {
	var out []types.AdminBooking
	err := s.api.GetJSON(ctx, "/api/admin/bookings", &out)
	return out, err
}

func (s *APISource) Waivers(ctx context.Context) ([]types.AdminWaiver, error) {
	var out []types.AdminWaiver
	err := s.api.GetJSON(ctx, "/api/admin/waivers", &out)
	return out, err
}

func (s *APISource) Tickets(ctx context.Context) ([]types.AdminTicket, error) {
	var out []types.AdminTicket
	err := s.api.GetJSON(ctx, "/api/admin/tickets", &out)
	return out, err
}

func (s *APISource) Memberships(ctx context.Context) ([]types.AdminMembership, error) {
	var out []types.AdminMembership
	err := s.api.GetJSON(ctx, "/api/admin/memberships", &out)
	return out, err
}

func (s *APISource) UpdateBooking(ctx context.Context, id string, patch types.BookingPatch) error {
	return s.api.PatchJSON(ctx, "/api/admin/bookings/"+url.PathEscape(id), patch, nil)
}

func (s *APISource) UpdateWaiver(ctx context.Context, id string, patch types.WaiverPatch) error {
	return s.api.PatchJSON(ctx, "/api/admin/waivers/"+url.PathEscape(id), patch, nil)
}

func (s *APISource) RecordVisit(ctx context.Context, membershipID string) error {
	return s.api.PostJSON(ctx, "/api/admin/memberships/"+url.PathEscape(membershipID)+"/visits", struct{}{}, nil)
}
