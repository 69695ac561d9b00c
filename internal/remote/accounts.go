package remote

import (
	"context"

	"github.com/angelmondragon/ecobuy/internal/commerce"
)

// AuthResult is what the account service returns after a successful
// authentication step.
type AuthResult struct {
	User    commerce.User
	Token   string
	Message string
	// PendingVerification means the account exists but the email code has
	// not been confirmed yet; no token is issued.
	PendingVerification bool
}

// Accounts is the account service surface the storefront store depends on.
type Accounts interface {
	Register(ctx context.Context, req commerce.RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	GoogleLogin(ctx context.Context, idToken string) (*AuthResult, error)
	Verify(ctx context.Context, email, code string) (*AuthResult, error)
	ResendVerification(ctx context.Context, email string) (string, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, req commerce.ResetPasswordRequest) (string, error)
	Logout(ctx context.Context, token string) error

	Me(ctx context.Context, token string) (*commerce.User, error)
	UpdateProfile(ctx context.Context, token string, update commerce.ProfileUpdate) (*commerce.User, error)
	ReplaceCart(ctx context.Context, token string, items []commerce.CartItem) (*commerce.User, error)
	ReplaceWishlist(ctx context.Context, token string, items []commerce.WishlistItem) (*commerce.User, error)
	PlaceOrder(ctx context.Context, token string, order commerce.Order) (*commerce.User, error)
	ListOrders(ctx context.Context, token string) ([]commerce.Order, error)
}
