package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/ecobuy/internal/commerce"
	"github.com/angelmondragon/ecobuy/pkg/config"
	pkgerrors "github.com/angelmondragon/ecobuy/pkg/errors"
	"github.com/angelmondragon/ecobuy/pkg/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	pathRegister    = "/auth/register"
	pathLogin       = "/auth/login"
	pathGoogleLogin = "/auth/google-login"
	pathVerify      = "/auth/verify"
	pathResendCode  = "/auth/resend-verification"
	pathForgot      = "/auth/forgot-password"
	pathReset       = "/auth/reset-password"
	pathLogout      = "/auth/logout"
	pathMe          = "/api/v1/me"
	pathCart        = "/api/v1/me/cart"
	pathWishlist    = "/api/v1/me/wishlist"
	pathOrders      = "/api/v1/me/orders"

	maxResponseBytes = 1 << 20
)

var _ Accounts = (*Client)(nil)

// Client talks JSON over HTTP to the account service. It never retries.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	limiter *rate.Limiter
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLimiter overrides the limiter applied to state sync calls.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func New(cfg config.AccountServiceConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("account service base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid account service url %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.SyncRate > 0 {
		limit = rate.Limit(cfg.SyncRate)
	}
	burst := cfg.SyncBurst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(limit, burst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Register(ctx context.Context, req commerce.RegisterRequest) (*AuthResult, error) {
	var resp commerce.AuthResponse
	if err := c.do(ctx, http.MethodPost, pathRegister, "", req, &resp); err != nil {
		return nil, err
	}
	return authResult(resp)
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var resp commerce.AuthResponse
	body := commerce.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, pathLogin, "", body, &resp); err != nil {
		return nil, err
	}
	return authResult(resp)
}

func (c *Client) GoogleLogin(ctx context.Context, idToken string) (*AuthResult, error) {
	var resp commerce.AuthResponse
	if err := c.do(ctx, http.MethodPost, pathGoogleLogin, "", commerce.GoogleLoginRequest{Token: idToken}, &resp); err != nil {
		return nil, err
	}
	return authResult(resp)
}

func (c *Client) Verify(ctx context.Context, email, code string) (*AuthResult, error) {
	var resp commerce.AuthResponse
	if err := c.do(ctx, http.MethodPost, pathVerify, "", commerce.VerifyRequest{Email: email, Code: code}, &resp); err != nil {
		return nil, err
	}
	return authResult(resp)
}

func (c *Client) ResendVerification(ctx context.Context, email string) (string, error) {
	return c.statusCall(ctx, pathResendCode, commerce.EmailRequest{Email: email})
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	return c.statusCall(ctx, pathForgot, commerce.EmailRequest{Email: email})
}

func (c *Client) ResetPassword(ctx context.Context, req commerce.ResetPasswordRequest) (string, error) {
	return c.statusCall(ctx, pathReset, req)
}

// statusCall posts an unauthenticated request whose answer only carries a
// message.
func (c *Client) statusCall(ctx context.Context, path string, body any) (string, error) {
	var resp types.StatusEnvelope
	if err := c.do(ctx, http.MethodPost, path, "", body, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	var resp types.StatusEnvelope
	return c.do(ctx, http.MethodPost, pathLogout, token, nil, &resp)
}

func (c *Client) Me(ctx context.Context, token string) (*commerce.User, error) {
	return c.userCall(ctx, http.MethodGet, pathMe, token, nil, false)
}

func (c *Client) UpdateProfile(ctx context.Context, token string, update commerce.ProfileUpdate) (*commerce.User, error) {
	return c.userCall(ctx, http.MethodPatch, pathMe, token, update, true)
}

func (c *Client) ReplaceCart(ctx context.Context, token string, items []commerce.CartItem) (*commerce.User, error) {
	return c.userCall(ctx, http.MethodPut, pathCart, token, commerce.CartRequest{Items: nonNil(items)}, true)
}

func (c *Client) ReplaceWishlist(ctx context.Context, token string, items []commerce.WishlistItem) (*commerce.User, error) {
	return c.userCall(ctx, http.MethodPut, pathWishlist, token, commerce.WishlistRequest{Items: nonNil(items)}, true)
}

func (c *Client) PlaceOrder(ctx context.Context, token string, order commerce.Order) (*commerce.User, error) {
	return c.userCall(ctx, http.MethodPost, pathOrders, token, order, true)
}

func (c *Client) ListOrders(ctx context.Context, token string) ([]commerce.Order, error) {
	var resp commerce.OrdersResponse
	if err := c.do(ctx, http.MethodGet, pathOrders, token, nil, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Orders), nil
}

func (c *Client) userCall(ctx context.Context, method, path, token string, body any, throttled bool) (*commerce.User, error) {
	if throttled {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeRateLimit, err, "sync rate limit wait aborted")
		}
	}
	var resp commerce.UserResponse
	if err := c.do(ctx, method, path, token, body, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "account service returned no user")
	}
	return resp.User, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "account service unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read account service response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeFailure(resp.StatusCode, raw)
	}

	var status struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "malformed account service response")
	}
	if status.Success != nil && !*status.Success {
		return decodeFailure(http.StatusBadRequest, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "malformed account service response")
	}
	return nil
}

// decodeFailure maps an error body to a typed error. A recognised "code"
// wins; otherwise the HTTP status decides.
func decodeFailure(status int, raw []byte) error {
	var env types.ErrorEnvelope
	_ = json.Unmarshal(raw, &env)

	code, ok := pkgerrors.ParseCode(env.Code)
	if !ok {
		code = pkgerrors.CodeForStatus(status)
	}
	message := strings.TrimSpace(env.Message)
	if message == "" {
		message = strings.TrimSpace(env.Error)
	}
	if message == "" {
		message = pkgerrors.MetadataFor(code).PublicMessage
	}
	typed := pkgerrors.New(code, message)
	if env.Details != nil {
		typed = typed.WithDetails(env.Details)
	}
	return typed
}

func authResult(resp commerce.AuthResponse) (*AuthResult, error) {
	if resp.User == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "account service returned no user")
	}
	if resp.Token == "" && !resp.PendingVerification {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "account service returned no token")
	}
	return &AuthResult{
		User:                *resp.User,
		Token:               resp.Token,
		Message:             resp.Message,
		PendingVerification: resp.PendingVerification,
	}, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
