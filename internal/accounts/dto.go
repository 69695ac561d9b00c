package accounts

import "github.com/angelmondragon/ecobuy/internal/commerce"

// AuthResult is returned by every operation that authenticates a shopper.
// Token is empty while verification is pending.
type AuthResult struct {
	User                commerce.User
	Token               string
	Message             string
	PendingVerification bool
}

// Response converts the result into the wire body.
func (r *AuthResult) Response() commerce.AuthResponse {
	user := r.User.Clone()
	return commerce.AuthResponse{
		Success:             true,
		Message:             r.Message,
		User:                &user,
		Token:               r.Token,
		PendingVerification: r.PendingVerification,
	}
}
