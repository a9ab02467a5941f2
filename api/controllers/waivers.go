package controllers

import (
	"net/http"

	"github.com/angelmondragon/playfunia-backend/api/middleware"
	"github.com/angelmondragon/playfunia-backend/api/responses"
	"github.com/angelmondragon/playfunia-backend/api/validators"
	"github.com/angelmondragon/playfunia-backend/internal/waivers"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

type submitWaiverRequest struct {
	GuardianName     string   `json:"guardianName"`
	GuardianEmail    string   `json:"guardianEmail"`
	GuardianPhone    string   `json:"guardianPhone"`
	Children         []string `json:"children"`
	AcceptedPolicies []string `json:"acceptedPolicies"`
	Signature        string   `json:"signature"`
	MarketingOptIn   bool     `json:"marketingOptIn,omitempty"`
	Notes            string   `json:"notes,omitempty"`
}

type waiverStatusResponse struct {
	HasValidWaiver bool `json:"hasValidWaiver"`
}

// SubmitWaiver records a signed waiver for a signed-in user or a guest.
func SubmitWaiver(svc waivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload submitWaiverRequest
		if err := validators.DecodeJSON(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		waiver, err := svc.Submit(r.Context(), waivers.SubmitInput{
			UserID:           middleware.UserUUIDFromContext(r.Context()),
			GuardianName:     payload.GuardianName,
			GuardianEmail:    payload.GuardianEmail,
			GuardianPhone:    payload.GuardianPhone,
			Children:         payload.Children,
			AcceptedPolicies: payload.AcceptedPolicies,
			Signature:        payload.Signature,
			MarketingOptIn:   payload.MarketingOptIn,
			Notes:            validators.SanitizeString(payload.Notes, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, waivers.ToAdmin(*waiver))
	}
}

// WaiverStatus reports whether the signed-in caller may buy tickets.
func WaiverStatus(svc waivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		if userID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		ok, err := svc.HasValid(r.Context(), *userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, waiverStatusResponse{HasValidWaiver: ok})
	}
}
