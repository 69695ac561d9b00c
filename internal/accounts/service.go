package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/ecobuy/internal/commerce"
	pkgauth "github.com/angelmondragon/ecobuy/pkg/auth"
	"github.com/angelmondragon/ecobuy/pkg/auth/session"
	"github.com/angelmondragon/ecobuy/pkg/config"
	"github.com/angelmondragon/ecobuy/pkg/db"
	"github.com/angelmondragon/ecobuy/pkg/db/models"
	"github.com/angelmondragon/ecobuy/pkg/email"
	"github.com/angelmondragon/ecobuy/pkg/enums"
	pkgerrors "github.com/angelmondragon/ecobuy/pkg/errors"
	"github.com/angelmondragon/ecobuy/pkg/google"
	"github.com/angelmondragon/ecobuy/pkg/logger"
	"github.com/angelmondragon/ecobuy/pkg/metrics"
	"github.com/angelmondragon/ecobuy/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	msgProvideAllFields   = "Please provide all fields"
	msgProvideCredentials = "Please provide email and password"
	msgInvalidEmail       = "Please provide a valid email"
	msgPasswordTooShort   = "Password must be at least %d characters"
	msgUserExists         = "User already exists"
	msgInvalidCredentials = "Invalid credentials"
	msgNotVerified        = "Account not verified"
	msgInvalidCode        = "Invalid or expired verification code"
	msgInvalidResetCode   = "Invalid or expired reset code"
	msgAlreadyVerified    = "Account already verified"
	msgMailerDisabled     = "Email delivery is not configured"
	msgMailFailed         = "We could not send the email. Please try again"
	msgUserNotFound       = "User not found"
	msgOrderExists        = "Order already exists"
	msgGoogleDisabled     = "Google sign-in is not configured"
	msgInvalidGoogleToken = "Invalid Google token"

	msgRegistered      = "User registered successfully"
	msgCheckEmail      = "Check your email to verify your account"
	msgLoggedIn        = "Logged in successfully"
	msgEmailVerified   = "Email verified successfully"
	msgGoogleConnected = "Logged in with Google"
	msgCodeResent      = "A new verification code has been sent"
	msgResetRequested  = "If that email has an account, a reset code has been sent"
	msgPasswordReset   = "Password reset successfully"

	defaultMinPasswordLength = 5
)

// Service is the account service behind the HTTP API.
type Service interface {
	Register(ctx context.Context, req commerce.RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, req commerce.LoginRequest) (*AuthResult, error)
	GoogleLogin(ctx context.Context, idToken string) (*AuthResult, error)
	Verify(ctx context.Context, req commerce.VerifyRequest) (*AuthResult, error)
	ResendVerification(ctx context.Context, email string) (string, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, req commerce.ResetPasswordRequest) (string, error)
	Logout(ctx context.Context, accessID string) error

	Profile(ctx context.Context, userID string) (*commerce.User, error)
	UpdateProfile(ctx context.Context, userID string, update commerce.ProfileUpdate) (*commerce.User, error)
	ReplaceCart(ctx context.Context, userID string, items []commerce.CartItem) (*commerce.User, error)
	ReplaceWishlist(ctx context.Context, userID string, items []commerce.WishlistItem) (*commerce.User, error)
	PlaceOrder(ctx context.Context, userID string, order commerce.Order) (*commerce.User, error)
	ListOrders(ctx context.Context, userID string) ([]commerce.Order, error)
}

type accountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByGoogleID(ctx context.Context, googleID string) (*models.Account, error)
	Save(ctx context.Context, account *models.Account) error
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	Mutate(ctx context.Context, id string, fn func(*models.Account) error) (*models.Account, error)
}

type sessionManager interface {
	Start(ctx context.Context, accessID, userID string) error
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the account service dependencies.
type ServiceParams struct {
	Repo     accountRepository
	Sessions sessionManager
	Mailer   email.Sender
	// Google may be nil when Google sign-in is not configured.
	Google   google.Verifier
	JWT      config.JWTConfig
	Password config.PasswordConfig
	Email    config.EmailConfig
	Flags    config.FeatureFlagsConfig
	Logger   *logger.Logger
	Metrics  *metrics.AuthMetrics
	Clock    func() time.Time
}

type service struct {
	repo     accountRepository
	sessions sessionManager
	mailer   email.Sender
	google   google.Verifier
	jwt      config.JWTConfig
	password config.PasswordConfig
	email    config.EmailConfig
	flags    config.FeatureFlagsConfig
	logg     *logger.Logger
	metrics  *metrics.AuthMetrics
	now      func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("account repository is required")
	}
	if p.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if p.Flags.RequireVerification && p.Mailer == nil {
		return nil, fmt.Errorf("mailer is required when verification is enabled")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	if p.Password.MinLength <= 0 {
		p.Password.MinLength = defaultMinPasswordLength
	}
	if p.Email.CodeTTL <= 0 {
		p.Email.CodeTTL = 24 * time.Hour
	}
	if p.Email.ResetTTL <= 0 {
		p.Email.ResetTTL = time.Hour
	}
	return &service{
		repo:     p.Repo,
		sessions: p.Sessions,
		mailer:   p.Mailer,
		google:   p.Google,
		jwt:      p.JWT,
		password: p.Password,
		email:    p.Email,
		flags:    p.Flags,
		logg:     p.Logger,
		metrics:  p.Metrics,
		now:      p.Clock,
	}, nil
}

func (s *service) Register(ctx context.Context, req commerce.RegisterRequest) (result *AuthResult, err error) {
	defer func() { s.metrics.IncAttempt("register", err == nil) }()

	req.Email = commerce.NormalizeEmail(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgProvideAllFields)
	}
	if !commerce.ValidEmail(req.Email) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgInvalidEmail)
	}
	if len(req.Password) < s.password.MinLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf(msgPasswordTooShort, s.password.MinLength))
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, msgUserExists)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup account")
	}

	hash, err := security.HashPassword(req.Password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	account := newAccount(req.Email, req.FirstName, req.LastName)
	account.PasswordHash = &hash
	account.Phone = req.Phone

	var code string
	if s.flags.RequireVerification {
		if code, err = s.armVerification(account); err != nil {
			return nil, err
		}
	} else {
		account.Verified = true
	}

	if err := s.repo.Create(ctx, account); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, msgUserExists)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create account")
	}
	ctx = s.logg.WithUserID(ctx, account.ID)

	if !account.Verified {
		_ = s.sendCode(ctx, account, code)
		s.logg.Info(ctx, "accounts.register.pending")
		return &AuthResult{User: account.ToUser(), PendingVerification: true, Message: msgCheckEmail}, nil
	}

	token, err := s.issueToken(ctx, account)
	if err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "accounts.register.completed")
	return &AuthResult{User: account.ToUser(), Token: token, Message: msgRegistered}, nil
}

func (s *service) Login(ctx context.Context, req commerce.LoginRequest) (result *AuthResult, err error) {
	defer func() { s.metrics.IncAttempt("login", err == nil) }()

	email := commerce.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgProvideCredentials)
	}

	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, msgInvalidCredentials)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup account")
	}
	if account.PasswordHash == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, msgInvalidCredentials)
	}
	valid, err := security.VerifyPassword(req.Password, *account.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, msgInvalidCredentials)
	}
	if !account.Verified {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, msgNotVerified)
	}

	token, err := s.issueToken(ctx, account)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: account.ToUser(), Token: token, Message: msgLoggedIn}, nil
}

// GoogleLogin signs in by Google identity, linking an existing account with
// the same email before creating a new one.
func (s *service) GoogleLogin(ctx context.Context, idToken string) (result *AuthResult, err error) {
	defer func() { s.metrics.IncAttempt("google", err == nil) }()

	if s.google == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, msgGoogleDisabled)
	}
	if strings.TrimSpace(idToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgProvideAllFields)
	}
	identity, err := s.google.Verify(ctx, idToken)
	if err != nil {
		if errors.Is(err, google.ErrNotConfigured) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgGoogleDisabled)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msgInvalidGoogleToken)
	}

	account, err := s.repo.FindByGoogleID(ctx, identity.Subject)
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		account, err = s.linkOrCreateGoogle(ctx, identity)
		if err != nil {
			return nil, err
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup google account")
	}

	token, err := s.issueToken(ctx, account)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: account.ToUser(), Token: token, Message: msgGoogleConnected}, nil
}

func (s *service) linkOrCreateGoogle(ctx context.Context, id *google.Identity) (*models.Account, error) {
	email := commerce.NormalizeEmail(id.Email)
	subject := id.Subject

	existing, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		if !id.EmailVerified {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, msgInvalidGoogleToken)
		}
		existing.GoogleID = &subject
		existing.Verified = true
		existing.VerificationCodeHash = nil
		existing.VerificationExpiresAt = nil
		if existing.AvatarURL == "" {
			existing.AvatarURL = id.Picture
		}
		if err := s.repo.Save(ctx, existing); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "link google account")
		}
		s.logg.Info(s.logg.WithUserID(ctx, existing.ID), "accounts.google.linked")
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup account")
	}

	first, last := id.GivenName, id.FamilyName
	if first == "" && last == "" {
		first, last = commerce.SplitName(id.Name)
	}
	account := newAccount(email, first, last)
	account.GoogleID = &subject
	account.AvatarURL = id.Picture
	account.Verified = true
	if err := s.repo.Create(ctx, account); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, msgUserExists)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create google account")
	}
	s.logg.Info(s.logg.WithUserID(ctx, account.ID), "accounts.google.created")
	return account, nil
}

func (s *service) Verify(ctx context.Context, req commerce.VerifyRequest) (result *AuthResult, err error) {
	defer func() { s.metrics.IncAttempt("verify", err == nil) }()

	email := commerce.NormalizeEmail(req.Email)
	code := strings.TrimSpace(req.Code)
	if email == "" || code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgProvideAllFields)
	}

	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, msgInvalidCode)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup account")
	}
	if account.VerificationCodeHash == nil || account.VerificationExpiresAt == nil ||
		!s.now().Before(*account.VerificationExpiresAt) ||
		!security.VerifyCode(code, *account.VerificationCodeHash) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgInvalidCode)
	}

	err = s.repo.UpdateFields(ctx, account.ID, map[string]any{
		"verified":                true,
		"verification_code_hash":  nil,
		"verification_expires_at": nil,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark verified")
	}
	account.Verified = true
	account.VerificationCodeHash = nil
	account.VerificationExpiresAt = nil

	token, err := s.issueToken(ctx, account)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: account.ToUser(), Token: token, Message: msgEmailVerified}, nil
}

// ResendVerification replaces the pending code of an unverified account and
// mails it.
func (s *service) ResendVerification(ctx context.Context, address string) (message string, err error) {
	defer func() { s.metrics.IncAttempt("resend", err == nil) }()

	account, err := s.accountByEmail(ctx, address)
	if err != nil {
		return "", err
	}
	if account.Verified {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, msgAlreadyVerified)
	}
	if s.mailer == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, msgMailerDisabled)
	}
	code, err := s.armVerification(account)
	if err != nil {
		return "", err
	}
	err = s.repo.UpdateFields(ctx, account.ID, map[string]any{
		"verification_code_hash":  *account.VerificationCodeHash,
		"verification_expires_at": *account.VerificationExpiresAt,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store verification code")
	}
	ctx = s.logg.WithUserID(ctx, account.ID)
	if err := s.sendCode(ctx, account, code); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgMailFailed)
	}
	s.logg.Info(ctx, "accounts.verification.resent")
	return msgCodeResent, nil
}

// ForgotPassword mails a reset code. Unknown addresses get the same answer
// as known ones.
func (s *service) ForgotPassword(ctx context.Context, address string) (message string, err error) {
	defer func() { s.metrics.IncAttempt("forgot", err == nil) }()

	if s.mailer == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, msgMailerDisabled)
	}
	account, err := s.accountByEmail(ctx, address)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return msgResetRequested, nil
		}
		return "", err
	}

	code, err := security.GenerateVerificationCode()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate reset code")
	}
	digest := security.HashCode(code)
	expires := s.now().UTC().Add(s.email.ResetTTL)
	err = s.repo.UpdateFields(ctx, account.ID, map[string]any{
		"reset_code_hash":  digest,
		"reset_expires_at": expires,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store reset code")
	}

	ctx = s.logg.WithUserID(ctx, account.ID)
	err = s.mailer.SendPasswordReset(ctx, email.PasswordResetMessage{
		To:        account.Email,
		FirstName: account.FirstName,
		Code:      code,
		ExpiresIn: s.email.ResetTTL.String(),
	})
	if err != nil {
		s.logg.Error(ctx, "accounts.reset.send_failed", err)
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgMailFailed)
	}
	s.logg.Info(ctx, "accounts.reset.requested")
	return msgResetRequested, nil
}

// ResetPassword sets a new password when the mailed reset code matches.
// Proving control of the inbox also verifies the account.
func (s *service) ResetPassword(ctx context.Context, req commerce.ResetPasswordRequest) (message string, err error) {
	defer func() { s.metrics.IncAttempt("reset", err == nil) }()

	code := strings.TrimSpace(req.Code)
	if code == "" || req.Password == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, msgProvideAllFields)
	}
	if len(req.Password) < s.password.MinLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf(msgPasswordTooShort, s.password.MinLength))
	}
	account, err := s.accountByEmail(ctx, req.Email)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeValidation, msgInvalidResetCode)
		}
		return "", err
	}

	hash, err := security.HashPassword(req.Password, s.password)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	_, err = s.repo.Mutate(ctx, account.ID, func(a *models.Account) error {
		if a.ResetCodeHash == nil || a.ResetExpiresAt == nil ||
			!s.now().Before(*a.ResetExpiresAt) ||
			!security.VerifyCode(code, *a.ResetCodeHash) {
			return pkgerrors.New(pkgerrors.CodeValidation, msgInvalidResetCode)
		}
		a.PasswordHash = &hash
		a.ResetCodeHash = nil
		a.ResetExpiresAt = nil
		a.Verified = true
		a.VerificationCodeHash = nil
		a.VerificationExpiresAt = nil
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return "", typed
		}
		return "", s.lookupError(err)
	}
	s.logg.Info(s.logg.WithUserID(ctx, account.ID), "accounts.reset.completed")
	return msgPasswordReset, nil
}

func (s *service) accountByEmail(ctx context.Context, address string) (*models.Account, error) {
	address = commerce.NormalizeEmail(address)
	if address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgProvideAllFields)
	}
	if !commerce.ValidEmail(address) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgInvalidEmail)
	}
	account, err := s.repo.FindByEmail(ctx, address)
	if err != nil {
		return nil, s.lookupError(err)
	}
	return account, nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) Profile(ctx context.Context, userID string) (*commerce.User, error) {
	account, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	user := account.ToUser()
	return &user, nil
}

func (s *service) UpdateProfile(ctx context.Context, userID string, update commerce.ProfileUpdate) (*commerce.User, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, func(a *models.Account) error {
		if update.FirstName != nil && strings.TrimSpace(*update.FirstName) != "" {
			a.FirstName = strings.TrimSpace(*update.FirstName)
		}
		if update.LastName != nil && strings.TrimSpace(*update.LastName) != "" {
			a.LastName = strings.TrimSpace(*update.LastName)
		}
		if update.Phone != nil {
			a.Phone = strings.TrimSpace(*update.Phone)
		}
		if update.AvatarURL != nil {
			a.AvatarURL = strings.TrimSpace(*update.AvatarURL)
		}
		return nil
	})
}

// ReplaceCart stores items as the whole cart, folding duplicate ids.
func (s *service) ReplaceCart(ctx context.Context, userID string, items []commerce.CartItem) (*commerce.User, error) {
	if err := commerce.ValidateCartItems(items); err != nil {
		return nil, err
	}
	cart := commerce.MergeCart(items)
	return s.mutate(ctx, userID, func(a *models.Account) error {
		a.Cart = cart
		return nil
	})
}

func (s *service) ReplaceWishlist(ctx context.Context, userID string, items []commerce.WishlistItem) (*commerce.User, error) {
	if err := commerce.ValidateWishlistItems(items); err != nil {
		return nil, err
	}
	list := commerce.DedupeWishlist(items)
	return s.mutate(ctx, userID, func(a *models.Account) error {
		a.Wishlist = list
		return nil
	})
}

// PlaceOrder appends a processing order and clears the stored cart. The
// total is recomputed from the items.
func (s *service) PlaceOrder(ctx context.Context, userID string, order commerce.Order) (*commerce.User, error) {
	if err := commerce.ValidateOrder(order); err != nil {
		return nil, err
	}
	order = order.Clone()
	order.Status = enums.OrderStatusProcessing
	order.Total = commerce.OrderTotal(order.Items)
	if order.Date.IsZero() {
		order.Date = s.now().UTC().Truncate(time.Millisecond)
	}

	user, err := s.mutate(ctx, userID, func(a *models.Account) error {
		for _, existing := range a.Orders {
			if existing.ID == order.ID {
				return pkgerrors.New(pkgerrors.CodeConflict, msgOrderExists)
			}
		}
		a.Orders = append(a.Orders, order)
		a.Cart = []commerce.CartItem{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"user_id": userID, "order_id": order.ID}), "accounts.order.placed")
	return user, nil
}

func (s *service) ListOrders(ctx context.Context, userID string) ([]commerce.Order, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Orders, nil
}

func (s *service) mutate(ctx context.Context, userID string, fn func(*models.Account) error) (*commerce.User, error) {
	account, err := s.repo.Mutate(ctx, userID, func(a *models.Account) error {
		if err := fn(a); err != nil {
			return err
		}
		fillCollections(a)
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, s.lookupError(err)
	}
	user := account.ToUser()
	return &user, nil
}

func (s *service) lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msgUserNotFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account")
}

func (s *service) armVerification(account *models.Account) (string, error) {
	code, err := security.GenerateVerificationCode()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate verification code")
	}
	digest := security.HashCode(code)
	expires := s.now().UTC().Add(s.email.CodeTTL)
	account.Verified = false
	account.VerificationCodeHash = &digest
	account.VerificationExpiresAt = &expires
	return code, nil
}

// sendCode mails the verification code and logs failures. A shopper whose
// mail never arrived asks for another code with ResendVerification.
func (s *service) sendCode(ctx context.Context, account *models.Account, code string) error {
	err := s.mailer.SendVerificationCode(ctx, email.VerificationMessage{
		To:        account.Email,
		FirstName: account.FirstName,
		Code:      code,
		ExpiresIn: s.email.CodeTTL.String(),
	})
	if err != nil {
		s.logg.Error(ctx, "accounts.verification.send_failed", err)
	}
	return err
}

func (s *service) issueToken(ctx context.Context, account *models.Account) (string, error) {
	accessID := session.NewAccessID()
	token, err := pkgauth.MintAccessToken(s.jwt, s.now(), pkgauth.AccessTokenPayload{
		UserID: account.ID,
		Email:  account.Email,
		JTI:    accessID,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	if err := s.sessions.Start(ctx, accessID, account.ID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session")
	}
	return token, nil
}

func newAccount(email, first, last string) *models.Account {
	account := &models.Account{
		ID:        uuid.NewString(),
		Email:     email,
		FirstName: first,
		LastName:  last,
	}
	fillCollections(account)
	return account
}

func fillCollections(a *models.Account) {
	if a.Cart == nil {
		a.Cart = []commerce.CartItem{}
	}
	if a.Wishlist == nil {
		a.Wishlist = []commerce.WishlistItem{}
	}
	if a.Orders == nil {
		a.Orders = []commerce.Order{}
	}
}
