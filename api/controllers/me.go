package controllers

import (
	"net/http"

	"github.com/angelmondragon/ecobuy/api/middleware"
	"github.com/angelmondragon/ecobuy/api/responses"
	"github.com/angelmondragon/ecobuy/api/validators"
	"github.com/angelmondragon/ecobuy/internal/accounts"
	"github.com/angelmondragon/ecobuy/internal/commerce"
	pkgerrors "github.com/angelmondragon/ecobuy/pkg/errors"
	"github.com/angelmondragon/ecobuy/pkg/logger"
)

// userHandler runs the shared prelude of every /me endpoint and writes the
// updated user back.
func userHandler(svc accounts.Service, logg *logger.Logger, fn func(r *http.Request, userID string) (*commerce.User, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		user, err := fn(r, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, commerce.UserResponse{Success: true, User: user})
	}
}

func MeProfile(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return userHandler(svc, logg, func(r *http.Request, userID string) (*commerce.User, error) {
		return svc.Profile(r.Context(), userID)
	})
}

func MeUpdateProfile(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return userHandler(svc, logg, func(r *http.Request, userID string) (*commerce.User, error) {
		var body commerce.ProfileUpdate
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.UpdateProfile(r.Context(), userID, body)
	})
}

func MeReplaceCart(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return userHandler(svc, logg, func(r *http.Request, userID string) (*commerce.User, error) {
		var body commerce.CartRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.ReplaceCart(r.Context(), userID, body.Items)
	})
}

func MeReplaceWishlist(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return userHandler(svc, logg, func(r *http.Request, userID string) (*commerce.User, error) {
		var body commerce.WishlistRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.ReplaceWishlist(r.Context(), userID, body.Items)
	})
}

func MePlaceOrder(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return userHandler(svc, logg, func(r *http.Request, userID string) (*commerce.User, error) {
		var body commerce.Order
		if err := validators.DecodeJSON(r, &body); err != nil {
			return nil, err
		}
		return svc.PlaceOrder(r.Context(), userID, body)
	})
}

func MeListOrders(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		orders, err := svc.ListOrders(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if orders == nil {
			orders = []commerce.Order{}
		}
		responses.WriteSuccess(w, commerce.OrdersResponse{Success: true, Orders: orders})
	}
}
