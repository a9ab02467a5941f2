package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/playfunia-backend/api/middleware"
	"github.com/angelmondragon/playfunia-backend/api/responses"
	"github.com/angelmondragon/playfunia-backend/api/validators"
	"github.com/angelmondragon/playfunia-backend/internal/bookings"
	wire "github.com/angelmondragon/playfunia-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

type estimateRequest struct {
	PartyPackageID string   `json:"partyPackageId" validate:"required,catalogid"`
	Guests         int      `json:"guests" validate:"min=1,max=60"`
	AddOns         []string `json:"addOns,omitempty" validate:"max=10,dive,catalogid"`
}

type createBookingRequest struct {
	PartyPackageID string   `json:"partyPackageId"`
	Location       string   `json:"location"`
	EventDate      string   `json:"eventDate"`
	StartTime      string   `json:"startTime"`
	Guests         int      `json:"guests"`
	AddOns         []string `json:"addOns,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	ContactName    string   `json:"contactName"`
	ContactEmail   string   `json:"contactEmail"`
	ContactPhone   string   `json:"contactPhone,omitempty"`
}

// BookingEstimate quotes a party package without creating a booking.
func BookingEstimate(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload estimateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quote, err := svc.Estimate(r.Context(), payload.PartyPackageID, payload.Guests, payload.AddOns)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

func CreateBooking(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createBookingRequest
		if err := validators.DecodeJSON(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contactEmail := payload.ContactEmail
		if strings.TrimSpace(contactEmail) == "" {
			contactEmail = middleware.EmailFromContext(r.Context())
		}
		booking, err := svc.Create(r.Context(), bookings.CreateInput{
			UserID:       middleware.UserUUIDFromContext(r.Context()),
			PackageID:    payload.PartyPackageID,
			Location:     payload.Location,
			EventDate:    payload.EventDate,
			StartTime:    payload.StartTime,
			Guests:       payload.Guests,
			AddOns:       payload.AddOns,
			Notes:        validators.SanitizeString(payload.Notes, 500),
			ContactName:  payload.ContactName,
			ContactEmail: contactEmail,
			ContactPhone: payload.ContactPhone,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, bookings.ToAdmin(*booking))
	}
}

// MyBookings lists the caller's own bookings.
func MyBookings(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.List(r.Context(), bookings.ListFilter{UserID: middleware.UserUUIDFromContext(r.Context()), Limit: limit})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bookings.ToAdminList(rows))
	}
}

func GetBooking(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		booking, err := svc.Get(r.Context(), id, middleware.UserUUIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bookings.ToAdmin(*booking))
	}
}

func CreateDepositIntent(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.CreateDepositIntent(r.Context(), id, middleware.UserUUIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func ConfirmDeposit(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload wire.DepositConfirmRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := svc.ConfirmDeposit(r.Context(), id, middleware.UserUUIDFromContext(r.Context()), payload.PaymentIntentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name).WithDetails(map[string]any{name: raw})
	}
	return id, nil
}
