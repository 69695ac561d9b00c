package commerce

// Request and response bodies of the account service HTTP contract. Every
// success body carries "success": true; failures use types.ErrorEnvelope.

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Phone     string `json:"phone,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type GoogleLoginRequest struct {
	Token string `json:"token" validate:"required"`
}

type VerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// EmailRequest starts resend-verification and forgot-password.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
	Password string `json:"password" validate:"required"`
}

type CartRequest struct {
	Items []CartItem `json:"items" validate:"dive"`
}

type WishlistRequest struct {
	Items []WishlistItem `json:"items" validate:"dive"`
}

// AuthResponse answers register, login, google-login and verify.
type AuthResponse struct {
	Success             bool   `json:"success"`
	Message             string `json:"message,omitempty"`
	User                *User  `json:"user,omitempty"`
	Token               string `json:"token,omitempty"`
	PendingVerification bool   `json:"pendingVerification,omitempty"`
}

// UserResponse answers the /api/v1/me family.
type UserResponse struct {
	Success bool  `json:"success"`
	User    *User `json:"user"`
}

type OrdersResponse struct {
	Success bool    `json:"success"`
	Orders  []Order `json:"orders"`
}
