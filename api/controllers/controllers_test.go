package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/ecobuy/api/middleware"
	"github.com/angelmondragon/ecobuy/internal/accounts"
	"github.com/angelmondragon/ecobuy/internal/commerce"
	pkgauth "github.com/angelmondragon/ecobuy/pkg/auth"
	"github.com/angelmondragon/ecobuy/pkg/config"
	pkgerrors "github.com/angelmondragon/ecobuy/pkg/errors"
	"github.com/angelmondragon/ecobuy/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	result    *accounts.AuthResult
	user      *commerce.User
	orders    []commerce.Order
	err       error
	gotReg    commerce.RegisterRequest
	gotCart   []commerce.CartItem
	gotOrder  commerce.Order
	gotUserID string
	gotEmail  string
	gotReset  commerce.ResetPasswordRequest
	message   string
	revoked   []string
}

func (s *stubService) Register(_ context.Context, req commerce.RegisterRequest) (*accounts.AuthResult, error) {
	s.gotReg = req
	return s.result, s.err
}

func (s *stubService) Login(context.Context, commerce.LoginRequest) (*accounts.AuthResult, error) {
	return s.result, s.err
}

func (s *stubService) GoogleLogin(context.Context, string) (*accounts.AuthResult, error) {
	return s.result, s.err
}

func (s *stubService) Verify(context.Context, commerce.VerifyRequest) (*accounts.AuthResult, error) {
	return s.result, s.err
}

func (s *stubService) ResendVerification(_ context.Context, email string) (string, error) {
	s.gotEmail = email
	return s.message, s.err
}

func (s *stubService) ForgotPassword(_ context.Context, email string) (string, error) {
	s.gotEmail = email
	return s.message, s.err
}

func (s *stubService) ResetPassword(_ context.Context, req commerce.ResetPasswordRequest) (string, error) {
	s.gotReset = req
	return s.message, s.err
}

func (s *stubService) Logout(_ context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return s.err
}

func (s *stubService) Profile(_ context.Context, userID string) (*commerce.User, error) {
	s.gotUserID = userID
	return s.user, s.err
}

func (s *stubService) UpdateProfile(_ context.Context, userID string, _ commerce.ProfileUpdate) (*commerce.User, error) {
	s.gotUserID = userID
	return s.user, s.err
}

func (s *stubService) ReplaceCart(_ context.Context, userID string, items []commerce.CartItem) (*commerce.User, error) {
	s.gotUserID = userID
	s.gotCart = items
	return s.user, s.err
}

func (s *stubService) ReplaceWishlist(_ context.Context, userID string, _ []commerce.WishlistItem) (*commerce.User, error) {
	s.gotUserID = userID
	return s.user, s.err
}

func (s *stubService) PlaceOrder(_ context.Context, userID string, order commerce.Order) (*commerce.User, error) {
	s.gotUserID = userID
	s.gotOrder = order
	return s.user, s.err
}

func (s *stubService) ListOrders(_ context.Context, userID string) ([]commerce.Order, error) {
	s.gotUserID = userID
	return s.orders, s.err
}

func ann() commerce.User {
	return commerce.User{ID: "u-1", Email: "a@b.com", Name: "Ann Lee", FirstName: "Ann", LastName: "Lee", Verified: true}
}

func post(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func TestAuthRegisterCreated(t *testing.T) {
	svc := &stubService{result: &accounts.AuthResult{User: ann(), Token: "tok", Message: "User registered successfully"}}
	rec := httptest.NewRecorder()
	AuthRegister(svc, nil).ServeHTTP(rec, post(`{"email":"a@b.com","password":"secret1","firstName":"Ann","lastName":"Lee"}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	var body commerce.AuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "tok", body.Token)
	assert.Equal(t, "Ann Lee", body.User.Name)
	assert.Equal(t, "Ann", svc.gotReg.FirstName)
}

func TestAuthRegisterPendingHasNoToken(t *testing.T) {
	svc := &stubService{result: &accounts.AuthResult{User: ann(), PendingVerification: true, Message: "Check your email"}}
	rec := httptest.NewRecorder()
	AuthRegister(svc, nil).ServeHTTP(rec, post(`{"email":"a@b.com","password":"secret1","firstName":"Ann","lastName":"Lee"}`))

	var raw map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	assert.Equal(t, true, raw["pendingVerification"])
	assert.NotContains(t, raw, "token")
}

func TestAuthLoginMapsServiceError(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid credentials")}
	rec := httptest.NewRecorder()
	AuthLogin(svc, nil).ServeHTTP(rec, post(`{"email":"a@b.com","password":"nope"}`))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "Invalid credentials", body.Message)
	assert.Equal(t, string(pkgerrors.CodeUnauthorized), body.Code)
}

func TestAuthLoginUnverifiedIsForbidden(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeForbidden, "Account not verified")}
	rec := httptest.NewRecorder()
	AuthLogin(svc, nil).ServeHTTP(rec, post(`{"email":"a@b.com","password":"secret1"}`))

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Account not verified", body.Message)
}

func TestAuthRecoveryHandlers(t *testing.T) {
	svc := &stubService{message: "sent"}

	rec := httptest.NewRecorder()
	AuthResendVerification(svc, nil).ServeHTTP(rec, post(`{"email":"a@b.com"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var body types.StatusEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "sent", body.Message)
	assert.Equal(t, "a@b.com", svc.gotEmail)

	rec = httptest.NewRecorder()
	AuthForgotPassword(svc, nil).ServeHTTP(rec, post(`{"email":"c@d.com"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c@d.com", svc.gotEmail)

	rec = httptest.NewRecorder()
	AuthResetPassword(svc, nil).ServeHTTP(rec, post(`{"email":"a@b.com","code":"123456","password":"newpass1"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "123456", svc.gotReset.Code)
	assert.Equal(t, "newpass1", svc.gotReset.Password)
}

func TestAuthResetPasswordNeedsSixDigitCode(t *testing.T) {
	svc := &stubService{}
	rec := httptest.NewRecorder()
	AuthResetPassword(svc, nil).ServeHTTP(rec, post(`{"email":"a@b.com","code":"12ab","password":"newpass1"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.gotReset.Email)

	rec = httptest.NewRecorder()
	AuthForgotPassword(svc, nil).ServeHTTP(rec, post(`{"email":"nope"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthLoginRejectsMalformedBody(t *testing.T) {
	rec := httptest.NewRecorder()
	AuthLogin(&stubService{}, nil).ServeHTTP(rec, post(`{"email":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthGoogleLoginRequiresToken(t *testing.T) {
	rec := httptest.NewRecorder()
	AuthGoogleLogin(&stubService{}, nil).ServeHTTP(rec, post(`{"token":""}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNilServiceIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	AuthVerify(nil, nil).ServeHTTP(rec, post(`{}`))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAuthLogoutRevokesTokenSession(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "ecobuy", ExpirationMinutes: 10}
	token, err := pkgauth.MintAccessToken(cfg, time.Now(), pkgauth.AccessTokenPayload{UserID: "u-1", JTI: "sess-1"})
	require.NoError(t, err)

	svc := &stubService{}
	req := post("")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	AuthLogout(svc, cfg, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"sess-1"}, svc.revoked)

	rec = httptest.NewRecorder()
	AuthLogout(svc, cfg, nil).ServeHTTP(rec, post(""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, svc.revoked, 1)
}

func TestMeRequiresUserContext(t *testing.T) {
	rec := httptest.NewRecorder()
	MeProfile(&stubService{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeReplaceCart(t *testing.T) {
	user := ann()
	svc := &stubService{user: &user}
	rec := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"items":[{"id":"p1","name":"Bag","price":10,"image":"","quantity":2}]}`)), "u-1")
	MeReplaceCart(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", svc.gotUserID)
	require.Len(t, svc.gotCart, 1)
	assert.Equal(t, 2, svc.gotCart[0].Quantity)

	var body commerce.UserResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "u-1", body.User.ID)
}

func TestMeReplaceCartRejectsBadQuantity(t *testing.T) {
	svc := &stubService{}
	rec := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"items":[{"id":"p1","price":10,"quantity":0}]}`)), "u-1")
	MeReplaceCart(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.gotCart)
}

func TestMePlaceOrderPassesOrder(t *testing.T) {
	user := ann()
	svc := &stubService{user: &user}
	rec := httptest.NewRecorder()
	body := `{"id":"ORD-AB123","date":"2026-03-01T12:00:00Z","status":"processing","total":20,"items":[{"id":"p1","name":"Bag","quantity":2,"price":10,"image":""}]}`
	MePlaceOrder(svc, nil).ServeHTTP(rec, asUser(post(body), "u-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ORD-AB123", svc.gotOrder.ID)
	assert.Len(t, svc.gotOrder.Items, 1)
}

func TestMeListOrdersNeverNull(t *testing.T) {
	svc := &stubService{}
	rec := httptest.NewRecorder()
	MeListOrders(svc, nil).ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/", nil), "u-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"orders":[]`)
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}

	rec := httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{}}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"up"`)

	rec = httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{err: errors.New("down")}}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
