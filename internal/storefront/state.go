package storefront

import (
	"github.com/angelmondragon/ecobuy/internal/commerce"
	pkgerrors "github.com/angelmondragon/ecobuy/pkg/errors"
)

// State is the authentication lifecycle of the store.
type State string

const (
	StateLoading             State = "loading"
	StateUnauthenticated     State = "unauthenticated"
	StatePendingVerification State = "pending_verification"
	StateAuthenticated       State = "authenticated"
)

// ErrNotReady is returned by every operation invoked before Restore.
var ErrNotReady = pkgerrors.New(pkgerrors.CodeStateConflict, "store is still loading")

// Snapshot is the full view state handed to subscribers.
type Snapshot struct {
	State         State
	User          *commerce.User
	Authenticated bool
	Loading       bool
	// PendingEmail is set while an emailed verification code is awaited.
	PendingEmail string
}

// Outcome describes what a mutating operation did.
type Outcome struct {
	// Changed is true when state was mutated and committed.
	Changed bool
	// Message is short text a view may show the shopper.
	Message string
	// Order is set by CreateOrder when an order was placed.
	Order *commerce.Order
	// Sync is set when a remote sync job was queued for this change.
	Sync *SyncTicket
}

// RegisterInput carries the sign-up form.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// ResetPasswordInput carries the password reset form.
type ResetPasswordInput struct {
	Email    string
	Code     string
	Password string
}

const (
	opRestore        = "restore"
	opLogin          = "login"
	opRegister       = "register"
	opVerify         = "verifyEmail"
	opResendCode     = "resendVerification"
	opForgotPassword = "forgotPassword"
	opResetPassword  = "resetPassword"
	opGoogleLogin    = "googleLogin"
	opLogout         = "logout"
	opRefresh        = "refresh"
	opUpdateProfile  = "updateProfile"
	opAddToCart      = "addToCart"
	opRemoveFromCart = "removeFromCart"
	opUpdateQuantity = "updateCartItemQuantity"
	opClearCart      = "clearCart"
	opAddToWishlist  = "addToWishlist"
	opRemoveWishlist = "removeFromWishlist"
	opClearWishlist  = "clearWishlist"
	opCreateOrder    = "createOrder"
	opSyncCart       = "replaceCart"
	opSyncWishlist   = "replaceWishlist"
	opSyncOrder      = "placeOrder"
	opSyncLogout     = "logout"
)

const (
	msgFillAllFields       = "Please fill in all fields"
	msgInvalidEmail        = "Please enter a valid email address"
	msgPasswordTooShort    = "Password must be at least %d characters"
	msgInvalidCredentials  = "Invalid credentials"
	msgEmailTaken          = "User with this email already exists"
	msgNoUser              = "No user is logged in"
	msgSaveFailed          = "could not save your changes"
	msgWelcomeBack         = "Welcome back!"
	msgWelcome             = "Welcome to EcoBuy!"
	msgCheckEmail          = "Check your email to verify your account"
	msgVerified            = "Your email has been verified"
	msgLoggedOut           = "You have been successfully logged out"
	msgProfileUpdated      = "Your profile has been updated successfully"
	msgGoogleOffline       = "Google sign-in is unavailable offline"
	msgAddedToCart         = "%s has been added to your cart"
	msgRemovedFromCart     = "%s has been removed from your cart"
	msgCartUpdated         = "Your cart has been updated"
	msgCartCleared         = "Your cart has been cleared"
	msgInWishlist          = "%s is already in your wishlist"
	msgAddedToWishlist     = "%s has been added to your wishlist"
	msgRemovedFromWish     = "%s has been removed from your wishlist"
	msgWishlistCleared     = "Your wishlist has been cleared"
	msgOrderPlaced         = "Your order #%s has been placed successfully."
	msgNoPendingVerify     = "No verification is pending"
	msgCodeRequired        = "Please enter the verification code"
	msgCodeResent          = "A new verification code is on its way"
	msgResetSent           = "If that email has an account, a reset code is on its way"
	msgPasswordReset       = "Your password has been reset. Please sign in"
	msgNeedsAccountService = "This needs the account service"
	msgSyncQueueFull       = "sync queue full"
	msgStoreClosed         = "store is closed"

	minPasswordLength = 5
)
