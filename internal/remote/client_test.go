package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/ecobuy/internal/commerce"
	"github.com/angelmondragon/ecobuy/pkg/config"
	pkgerrors "github.com/angelmondragon/ecobuy/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(config.AccountServiceConfig{BaseURL: srv.URL, Timeout: 2 * time.Second}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestNewValidatesBaseURL(t *testing.T) {
	_, err := New(config.AccountServiceConfig{})
	assert.Error(t, err)
	_, err = New(config.AccountServiceConfig{BaseURL: "not-a-url"})
	assert.Error(t, err)
	c, err := New(config.AccountServiceConfig{BaseURL: "https://accounts.ecobuy.test/"})
	require.NoError(t, err)
	assert.Equal(t, "https://accounts.ecobuy.test", c.baseURL.String())
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		var req commerce.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a@b.com", req.Email)
		writeJSON(w, http.StatusOK, commerce.AuthResponse{
			Success: true,
			Message: "Login successful",
			User:    &commerce.User{ID: "u1", Email: "a@b.com"},
			Token:   "jwt",
		})
	})

	res, err := c.Login(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "u1", res.User.ID)
	assert.Equal(t, "jwt", res.Token)
}

func TestRegisterPendingVerification(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, commerce.AuthResponse{
			Success:             true,
			User:                &commerce.User{ID: "u1"},
			PendingVerification: true,
		})
	})

	res, err := c.Register(context.Background(), commerce.RegisterRequest{Email: "a@b.com"})
	require.NoError(t, err)
	assert.True(t, res.PendingVerification)
	assert.Empty(t, res.Token)
}

func TestAuthResponseWithoutTokenIsDependencyError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, commerce.AuthResponse{Success: true, User: &commerce.User{ID: "u1"}})
	})
	_, err := c.Login(context.Background(), "a@b.com", "pw")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    any
		code    pkgerrors.Code
		message string
	}{
		{"code wins", http.StatusBadRequest, map[string]any{"success": false, "message": "User already exists", "code": "CONFLICT"}, pkgerrors.CodeConflict, "User already exists"},
		{"status 401", http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid credentials"}, pkgerrors.CodeUnauthorized, "Invalid credentials"},
		{"status 403", http.StatusForbidden, map[string]any{}, pkgerrors.CodeForbidden, "access denied"},
		{"status 404", http.StatusNotFound, map[string]any{}, pkgerrors.CodeNotFound, "resource not found"},
		{"status 409", http.StatusConflict, map[string]any{"message": "dup"}, pkgerrors.CodeConflict, "dup"},
		{"status 429", http.StatusTooManyRequests, map[string]any{}, pkgerrors.CodeRateLimit, "rate limit exceeded"},
		{"status 502", http.StatusBadGateway, "upstream html", pkgerrors.CodeDependency, "dependency unavailable"},
		{"legacy error field", http.StatusBadRequest, map[string]any{"success": false, "error": "Google login failed"}, pkgerrors.CodeValidation, "Google login failed"},
		{"success false on 200", http.StatusOK, map[string]any{"success": false, "message": "nope"}, pkgerrors.CodeValidation, "nope"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			})
			_, err := c.Login(context.Background(), "a@b.com", "pw")
			typed := pkgerrors.As(err)
			require.NotNil(t, typed, "expected typed error, got %v", err)
			assert.Equal(t, tc.code, typed.Code())
			assert.Equal(t, tc.message, typed.Message())
		})
	}
}

func TestRecoveryCalls(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.Header.Get("Authorization"))
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/auth/reset-password" {
			var req commerce.ResetPasswordRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "123456", req.Code)
			assert.Equal(t, "newpass1", req.Password)
		} else {
			var req commerce.EmailRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "a@b.com", req.Email)
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "sent"})
	})
	ctx := context.Background()

	msg, err := c.ResendVerification(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "sent", msg)
	_, err = c.ForgotPassword(ctx, "a@b.com")
	require.NoError(t, err)
	_, err = c.ResetPassword(ctx, commerce.ResetPasswordRequest{Email: "a@b.com", Code: "123456", Password: "newpass1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"/auth/resend-verification", "/auth/forgot-password", "/auth/reset-password"}, paths)
}

func TestUnverifiedLoginKeepsServiceMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "message": "Account not verified", "code": "FORBIDDEN"})
	})
	_, err := c.Login(context.Background(), "a@b.com", "pw")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
	assert.Equal(t, "Account not verified", typed.Message())
}

func TestTransportFailureIsDependency(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(config.AccountServiceConfig{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)
	_, err = c.Login(context.Background(), "a@b.com", "pw")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
	assert.Equal(t, "account service unreachable", typed.Message())
}

func TestAuthenticatedCallsSendBearer(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/api/v1/me/orders":
			if r.Method == http.MethodGet {
				writeJSON(w, http.StatusOK, commerce.OrdersResponse{Success: true, Orders: []commerce.Order{{ID: "ORD-AAAAA"}}})
				return
			}
			var order commerce.Order
			require.NoError(t, json.NewDecoder(r.Body).Decode(&order))
			assert.Equal(t, "ORD-AAAAA", order.ID)
		case "/api/v1/me/cart":
			var body commerce.CartRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.NotNil(t, body.Items)
		case "/auth/logout":
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
			return
		}
		writeJSON(w, http.StatusOK, commerce.UserResponse{Success: true, User: &commerce.User{ID: "u1"}})
	})
	ctx := context.Background()

	_, err := c.Me(ctx, "tok")
	require.NoError(t, err)
	name := "Bo"
	_, err = c.UpdateProfile(ctx, "tok", commerce.ProfileUpdate{FirstName: &name})
	require.NoError(t, err)
	_, err = c.ReplaceCart(ctx, "tok", nil)
	require.NoError(t, err)
	_, err = c.ReplaceWishlist(ctx, "tok", []commerce.WishlistItem{{ID: "p1"}})
	require.NoError(t, err)
	_, err = c.PlaceOrder(ctx, "tok", commerce.Order{ID: "ORD-AAAAA"})
	require.NoError(t, err)
	orders, err := c.ListOrders(ctx, "tok")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	require.NoError(t, c.Logout(ctx, "tok"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"GET /api/v1/me",
		"PATCH /api/v1/me",
		"PUT /api/v1/me/cart",
		"PUT /api/v1/me/wishlist",
		"POST /api/v1/me/orders",
		"GET /api/v1/me/orders",
		"POST /auth/logout",
	}, seen)
}

func TestSyncCallsHonourLimiter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, commerce.UserResponse{Success: true, User: &commerce.User{ID: "u1"}})
	})
	c.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	_, err := c.ReplaceCart(context.Background(), "tok", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.ReplaceCart(ctx, "tok", nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRateLimit))

	_, err = c.Login(context.Background(), "a@b.com", "pw")
	assert.Error(t, err, "login response lacks token so it fails, but it must not wait on the limiter")
}
