package controllers

import (
	"net/http"

	"github.com/angelmondragon/playfunia-backend/api/middleware"
	"github.com/angelmondragon/playfunia-backend/api/responses"
	"github.com/angelmondragon/playfunia-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/playfunia-backend/internal/checkout"
	wire "github.com/angelmondragon/playfunia-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

// CheckoutIntent prices the cart and prepares a Stripe (or mock) intent.
func CheckoutIntent(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return checkoutHandler(svc, logg, func(r *http.Request, buyer checkoutsvc.Buyer) (any, error) {
		var payload wire.IntentRequest
		if err := validators.DecodeJSON(r, &payload); err != nil {
			return nil, err
		}
		return svc.CreateIntent(r.Context(), buyer, payload)
	})
}

// CheckoutFinalize fulfils a captured Stripe or mock intent.
func CheckoutFinalize(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return checkoutHandler(svc, logg, func(r *http.Request, buyer checkoutsvc.Buyer) (any, error) {
		var payload wire.FinalizeRequest
		if err := validators.DecodeJSON(r, &payload); err != nil {
			return nil, err
		}
		return svc.Finalize(r.Context(), buyer, payload)
	})
}

// SquareIntent prices the cart for a Square card form.
func SquareIntent(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return checkoutHandler(svc, logg, func(r *http.Request, buyer checkoutsvc.Buyer) (any, error) {
		var payload wire.IntentRequest
		if err := validators.DecodeJSON(r, &payload); err != nil {
			return nil, err
		}
		return svc.CreateSquareIntent(r.Context(), buyer, payload)
	})
}

// SquareFinalize charges a Square source token and fulfils the order.
func SquareFinalize(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return checkoutHandler(svc, logg, func(r *http.Request, buyer checkoutsvc.Buyer) (any, error) {
		var payload wire.FinalizeRequest
		if err := validators.DecodeJSON(r, &payload); err != nil {
			return nil, err
		}
		return svc.FinalizeSquare(r.Context(), buyer, payload)
	})
}

func checkoutHandler(svc checkoutsvc.Service, logg *logger.Logger, run func(*http.Request, checkoutsvc.Buyer) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		out, err := run(r, buyerFromContext(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func buyerFromContext(r *http.Request) checkoutsvc.Buyer {
	return checkoutsvc.Buyer{
		UserID: middleware.UserUUIDFromContext(r.Context()),
		Email:  middleware.EmailFromContext(r.Context()),
	}
}
