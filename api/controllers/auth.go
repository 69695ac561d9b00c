package controllers

import (
	"net/http"

	"github.com/angelmondragon/ecobuy/api/responses"
	"github.com/angelmondragon/ecobuy/api/validators"
	"github.com/angelmondragon/ecobuy/internal/accounts"
	"github.com/angelmondragon/ecobuy/internal/commerce"
	pkgauth "github.com/angelmondragon/ecobuy/pkg/auth"
	"github.com/angelmondragon/ecobuy/pkg/config"
	pkgerrors "github.com/angelmondragon/ecobuy/pkg/errors"
	"github.com/angelmondragon/ecobuy/pkg/logger"
)

const msgLoggedOut = "Logged out"

func serviceUnavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable")
}

// AuthRegister creates an account. Field checks live in the service so the
// shopper sees its wording.
func AuthRegister(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}

		var body commerce.RegisterRequest
		if err := validators.DecodeJSON(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Register(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result.Response())
	}
}

func AuthLogin(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}

		var body commerce.LoginRequest
		if err := validators.DecodeJSON(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result.Response())
	}
}

func AuthGoogleLogin(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}

		var body commerce.GoogleLoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.GoogleLogin(r.Context(), body.Token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result.Response())
	}
}

func AuthVerify(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}

		var body commerce.VerifyRequest
		if err := validators.DecodeJSON(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Verify(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result.Response())
	}
}

// AuthResendVerification mails a fresh verification code.
func AuthResendVerification(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return statusHandler(svc, logg, func(r *http.Request) (string, error) {
		var body commerce.EmailRequest
		if err := validators.DecodeJSON(r, &body); err != nil {
			return "", err
		}
		return svc.ResendVerification(r.Context(), body.Email)
	})
}

// AuthForgotPassword mails a password reset code. The answer does not reveal
// whether the address has an account.
func AuthForgotPassword(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return statusHandler(svc, logg, func(r *http.Request) (string, error) {
		var body commerce.EmailRequest
		if err := validators.DecodeJSON(r, &body); err != nil {
			return "", err
		}
		return svc.ForgotPassword(r.Context(), body.Email)
	})
}

func AuthResetPassword(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return statusHandler(svc, logg, func(r *http.Request) (string, error) {
		var body commerce.ResetPasswordRequest
		if err := validators.DecodeJSON(r, &body); err != nil {
			return "", err
		}
		return svc.ResetPassword(r.Context(), body)
	})
}

func statusHandler(svc accounts.Service, logg *logger.Logger, call func(*http.Request) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}
		message, err := call(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteStatus(w, message)
	}
}

// AuthLogout revokes the session behind the bearer token. A missing or
// expired token has nothing to revoke and still succeeds.
func AuthLogout(svc accounts.Service, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable())
			return
		}

		token := validators.BearerToken(r)
		if token == "" {
			responses.WriteStatus(w, msgLoggedOut)
			return
		}
		claims, err := pkgauth.ParseAccessToken(cfg, token)
		if err != nil || claims.ID == "" {
			responses.WriteStatus(w, msgLoggedOut)
			return
		}

		if err := svc.Logout(r.Context(), claims.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteStatus(w, msgLoggedOut)
	}
}
