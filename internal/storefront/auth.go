package storefront

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/ecobuy/internal/cache"
	"github.com/angelmondragon/ecobuy/internal/commerce"
	"github.com/angelmondragon/ecobuy/internal/remote"
	"github.com/angelmondragon/ecobuy/pkg/enums"
	pkgerrors "github.com/angelmondragon/ecobuy/pkg/errors"
	"github.com/angelmondragon/ecobuy/pkg/metrics"
	"github.com/angelmondragon/ecobuy/pkg/security"
	"github.com/google/uuid"
)

// Login signs the shopper in with email and password. An account that still
// needs its emailed code moves the store into pending verification for that
// email and the service's error is returned.
func (s *Store) Login(ctx context.Context, email, password string) (Outcome, error) {
	ctx = s.logg.WithOperation(ctx, opLogin)
	email = commerce.NormalizeEmail(email)
	if email == "" || password == "" {
		return s.fail(opLogin, pkgerrors.New(pkgerrors.CodeValidation, msgFillAllFields))
	}
	if !commerce.ValidEmail(email) {
		return s.fail(opLogin, pkgerrors.New(pkgerrors.CodeValidation, msgInvalidEmail))
	}
	if err := s.ready(); err != nil {
		return s.fail(opLogin, err)
	}

	if s.Offline() {
		return s.loginLocal(ctx, email, password)
	}

	done := s.beginLoading()
	defer done()
	res, err := s.accounts.Login(ctx, email, password)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "storefront.login.rejected")
		switch {
		case pkgerrors.IsCode(err, pkgerrors.CodeForbidden):
			return s.awaitVerification(ctx, opLogin, email, err)
		case pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized):
			err = pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msgInvalidCredentials)
		}
		return s.fail(opLogin, err)
	}
	return s.applyAuth(ctx, opLogin, res, msgWelcomeBack)
}

func (s *Store) loginLocal(ctx context.Context, email, password string) (Outcome, error) {
	s.mu.Lock()
	account, err := s.cache.FindAccount(ctx, email)
	if err != nil {
		s.mu.Unlock()
		return s.fail(opLogin, pkgerrors.Wrap(pkgerrors.CodeInternal, err, msgSaveFailed))
	}
	if account == nil || !s.passwordMatches(ctx, password, account.PasswordHash) {
		s.mu.Unlock()
		return s.fail(opLogin, pkgerrors.New(pkgerrors.CodeUnauthorized, msgInvalidCredentials))
	}
	if err := s.adoptLocked(ctx, account.User, "", enums.SessionSourceLocal); err != nil {
		s.mu.Unlock()
		return s.fail(opLogin, err)
	}
	s.publishLocked()
	s.metrics.ObserveMutation(opLogin, metrics.OutcomeChanged)
	return Outcome{Changed: true, Message: msgWelcomeBack}, nil
}

func (s *Store) passwordMatches(ctx context.Context, password, hash string) bool {
	ok, err := security.VerifyPassword(password, hash)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "storefront.login.bad_hash")
		return false
	}
	return ok
}

// Register creates an account. The account service may hold the shopper in
// pending verification until the emailed code is confirmed.
func (s *Store) Register(ctx context.Context, in RegisterInput) (Outcome, error) {
	ctx = s.logg.WithOperation(ctx, opRegister)
	in.Email = commerce.NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Email == "" || in.Password == "" || in.FirstName == "" || in.LastName == "" {
		return s.fail(opRegister, pkgerrors.New(pkgerrors.CodeValidation, msgFillAllFields))
	}
	if !commerce.ValidEmail(in.Email) {
		return s.fail(opRegister, pkgerrors.New(pkgerrors.CodeValidation, msgInvalidEmail))
	}
	if len(in.Password) < minPasswordLength {
		return s.fail(opRegister, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf(msgPasswordTooShort, minPasswordLength)))
	}
	if err := s.ready(); err != nil {
		return s.fail(opRegister, err)
	}

	if s.Offline() {
		return s.registerLocal(ctx, in)
	}

	done := s.beginLoading()
	defer done()
	res, err := s.accounts.Register(ctx, commerce.RegisterRequest{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			err = pkgerrors.Wrap(pkgerrors.CodeConflict, err, msgEmailTaken)
		}
		return s.fail(opRegister, err)
	}
	if res.PendingVerification && res.User.Email == "" {
		res.User.Email = in.Email
	}
	return s.applyAuth(ctx, opRegister, res, msgWelcome)
}

func (s *Store) registerLocal(ctx context.Context, in RegisterInput) (Outcome, error) {
	hash, err := security.HashPassword(in.Password, s.password)
	if err != nil {
		return s.fail(opRegister, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password"))
	}
	user := commerce.User{
		ID:        uuid.NewString(),
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Name:      commerce.DisplayName(in.FirstName, in.LastName),
		Phone:     in.Phone,
		Verified:  true,
	}.Clone()

	s.mu.Lock()
	accounts, err := s.cache.LoadAccounts(ctx)
	if err != nil {
		s.mu.Unlock()
		return s.fail(opRegister, pkgerrors.Wrap(pkgerrors.CodeInternal, err, msgSaveFailed))
	}
	for _, account := range accounts {
		if commerce.NormalizeEmail(account.User.Email) == in.Email {
			s.mu.Unlock()
			return s.fail(opRegister, pkgerrors.New(pkgerrors.CodeConflict, msgEmailTaken))
		}
	}
	accounts = append(accounts, cache.LocalAccount{User: user, PasswordHash: hash})
	if err := s.cache.SaveAccounts(ctx, accounts); err != nil {
		s.mu.Unlock()
		return s.fail(opRegister, pkgerrors.Wrap(pkgerrors.CodeInternal, err, msgSaveFailed))
	}
	if err := s.adoptLocked(ctx, user, "", enums.SessionSourceLocal); err != nil {
		s.mu.Unlock()
		return s.fail(opRegister, err)
	}
	s.publishLocked()
	s.metrics.ObserveMutation(opRegister, metrics.OutcomeChanged)
	return Outcome{Changed: true, Message: msgWelcome}, nil
}

// VerifyEmail confirms the code mailed after registration. An empty email
// falls back to the registration the store is waiting on, which survives
// restarts.
func (s *Store) VerifyEmail(ctx context.Context, email, code string) (Outcome, error) {
	ctx = s.logg.WithOperation(ctx, opVerify)
	code = strings.TrimSpace(code)
	if code == "" {
		return s.fail(opVerify, pkgerrors.New(pkgerrors.CodeValidation, msgCodeRequired))
	}
	if err := s.ready(); err != nil {
		return s.fail(opVerify, err)
	}
	if s.Offline() {
		return s.fail(opVerify, pkgerrors.New(pkgerrors.CodeValidation, msgNeedsAccountService))
	}
	email, err := s.emailOrPending(email)
	if err != nil {
		return s.fail(opVerify, err)
	}

	done := s.beginLoading()
	defer done()
	res, err := s.accounts.Verify(ctx, email, code)
	if err != nil {
		return s.fail(opVerify, err)
	}
	return s.applyAuth(ctx, opVerify, res, msgVerified)
}

// ResendVerification asks the account service to mail a fresh code. A
// signed-out store starts waiting on that email.
func (s *Store) ResendVerification(ctx context.Context, email string) (Outcome, error) {
	ctx = s.logg.WithOperation(ctx, opResendCode)
	if err := s.ready(); err != nil {
		return s.fail(opResendCode, err)
	}
	if s.Offline() {
		return s.fail(opResendCode, pkgerrors.New(pkgerrors.CodeValidation, msgNeedsAccountService))
	}
	email, err := s.emailOrPending(email)
	if err != nil {
		return s.fail(opResendCode, err)
	}

	done := s.beginLoading()
	defer done()
	message, err := s.accounts.ResendVerification(ctx, email)
	if err != nil {
		return s.fail(opResendCode, err)
	}
	if message == "" {
		message = msgCodeResent
	}

	s.mu.Lock()
	if s.state == StateAuthenticated || (s.state == StatePendingVerification && s.pendingEmail == email) {
		s.mu.Unlock()
		s.metrics.ObserveMutation(opResendCode, metrics.OutcomeNoop)
		return Outcome{Message: message}, nil
	}
	ticket, err := s.pendLocked(ctx, email)
	if err != nil {
		s.mu.Unlock()
		return s.fail(opResendCode, err)
	}
	s.publishLocked()
	s.reportFailedFast(ctx, ticket)
	s.metrics.ObserveMutation(opResendCode, metrics.OutcomeChanged)
	return Outcome{Changed: true, Message: message, Sync: ticket}, nil
}

// ForgotPassword asks the account service to mail a password reset code.
// The store's session is not touched.
func (s *Store) ForgotPassword(ctx context.Context, email string) (Outcome, error) {
	ctx = s.logg.WithOperation(ctx, opForgotPassword)
	email = commerce.NormalizeEmail(email)
	if email == "" {
		return s.fail(opForgotPassword, pkgerrors.New(pkgerrors.CodeValidation, msgFillAllFields))
	}
	if !commerce.ValidEmail(email) {
		return s.fail(opForgotPassword, pkgerrors.New(pkgerrors.CodeValidation, msgInvalidEmail))
	}
	if err := s.ready(); err != nil {
		return s.fail(opForgotPassword, err)
	}
	if s.Offline() {
		return s.fail(opForgotPassword, pkgerrors.New(pkgerrors.CodeValidation, msgNeedsAccountService))
	}

	done := s.beginLoading()
	defer done()
	message, err := s.accounts.ForgotPassword(ctx, email)
	if err != nil {
		return s.fail(opForgotPassword, err)
	}
	if message == "" {
		message = msgResetSent
	}
	s.metrics.ObserveMutation(opForgotPassword, metrics.OutcomeNoop)
	return Outcome{Message: message}, nil
}

// ResetPassword sets a new password with the mailed reset code. The shopper
// signs in afterwards with Login.
func (s *Store) ResetPassword(ctx context.Context, in ResetPasswordInput) (Outcome, error) {
	ctx = s.logg.WithOperation(ctx, opResetPassword)
	in.Email = commerce.NormalizeEmail(in.Email)
	in.Code = strings.TrimSpace(in.Code)
	if in.Email == "" || in.Code == "" || in.Password == "" {
		return s.fail(opResetPassword, pkgerrors.New(pkgerrors.CodeValidation, msgFillAllFields))
	}
	if !commerce.ValidEmail(in.Email) {
		return s.fail(opResetPassword, pkgerrors.New(pkgerrors.CodeValidation, msgInvalidEmail))
	}
	if len(in.Password) < minPasswordLength {
		return s.fail(opResetPassword, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf(msgPasswordTooShort, minPasswordLength)))
	}
	if err := s.ready(); err != nil {
		return s.fail(opResetPassword, err)
	}
	if s.Offline() {
		return s.fail(opResetPassword, pkgerrors.New(pkgerrors.CodeValidation, msgNeedsAccountService))
	}

	done := s.beginLoading()
	defer done()
	message, err := s.accounts.ResetPassword(ctx, commerce.ResetPasswordRequest{
		Email:    in.Email,
		Code:     in.Code,
		Password: in.Password,
	})
	if err != nil {
		return s.fail(opResetPassword, err)
	}
	if message == "" {
		message = msgPasswordReset
	}
	s.metrics.ObserveMutation(opResetPassword, metrics.OutcomeNoop)
	return Outcome{Message: message}, nil
}

func (s *Store) emailOrPending(email string) (string, error) {
	email = commerce.NormalizeEmail(email)
	if email == "" {
		s.mu.Lock()
		email = s.pendingEmail
		s.mu.Unlock()
	}
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, msgNoPendingVerify)
	}
	if !commerce.ValidEmail(email) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, msgInvalidEmail)
	}
	return email, nil
}

// GoogleLogin exchanges a Google ID token for a session. It needs the
// account service.
func (s *Store) GoogleLogin(ctx context.Context, idToken string) (Outcome, error) {
	ctx = s.logg.WithOperation(ctx, opGoogleLogin)
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return s.fail(opGoogleLogin, pkgerrors.New(pkgerrors.CodeValidation, msgFillAllFields))
	}
	if s.Offline() {
		return s.fail(opGoogleLogin, pkgerrors.New(pkgerrors.CodeValidation, msgGoogleOffline))
	}
	if err := s.ready(); err != nil {
		return s.fail(opGoogleLogin, err)
	}

	done := s.beginLoading()
	defer done()
	res, err := s.accounts.GoogleLogin(ctx, idToken)
	if err != nil {
		return s.fail(opGoogleLogin, err)
	}
	return s.applyAuth(ctx, opGoogleLogin, res, msgWelcomeBack)
}

// Logout clears the session. Calling it while signed out does nothing.
func (s *Store) Logout(ctx context.Context) (Outcome, error) {
	ctx = s.logg.WithOperation(ctx, opLogout)

	s.mu.Lock()
	if s.state == StateLoading {
		s.mu.Unlock()
		return s.fail(opLogout, ErrNotReady)
	}
	if s.user == nil && s.state != StatePendingVerification {
		s.mu.Unlock()
		s.metrics.ObserveMutation(opLogout, metrics.OutcomeNoop)
		return Outcome{}, nil
	}

	var ticket *SyncTicket
	if s.user != nil {
		ctx = s.logg.WithUserID(ctx, s.user.ID)
		ticket = s.endRemoteSessionLocked()
	}
	if err := s.cache.ClearSession(ctx); err != nil {
		s.logg.Error(ctx, "storefront.logout.clear_failed", err)
	}
	s.user = nil
	s.token = ""
	s.source = ""
	s.pendingEmail = ""
	s.state = StateUnauthenticated
	s.publishLocked()

	s.reportFailedFast(ctx, ticket)
	s.metrics.ObserveMutation(opLogout, metrics.OutcomeChanged)
	return Outcome{Changed: true, Message: msgLoggedOut, Sync: ticket}, nil
}

// UpdateProfile edits the shopper's profile. Remote sessions wait for the
// account service and commit what it returns.
func (s *Store) UpdateProfile(ctx context.Context, update commerce.ProfileUpdate) (Outcome, error) {
	ctx = s.logg.WithOperation(ctx, opUpdateProfile)
	if err := update.Validate(); err != nil {
		return s.fail(opUpdateProfile, err)
	}

	s.mu.Lock()
	state, source, token := s.state, s.source, s.token
	hasUser := s.user != nil
	s.mu.Unlock()
	if state == StateLoading {
		return s.fail(opUpdateProfile, ErrNotReady)
	}
	if !hasUser {
		return s.fail(opUpdateProfile, pkgerrors.New(pkgerrors.CodeUnauthorized, msgNoUser))
	}

	if source != enums.SessionSourceRemote || s.accounts == nil {
		return s.mutate(ctx, opUpdateProfile, func(current commerce.User) (commerce.User, bool, string, error) {
			return commerce.ApplyProfile(current, update), true, msgProfileUpdated, nil
		}, nil)
	}

	done := s.beginLoading()
	defer done()
	updated, err := s.accounts.UpdateProfile(ctx, token, update)
	if err != nil {
		return s.fail(opUpdateProfile, err)
	}
	return s.mutate(ctx, opUpdateProfile, func(current commerce.User) (commerce.User, bool, string, error) {
		current.FirstName = updated.FirstName
		current.LastName = updated.LastName
		current.Name = updated.Name
		current.Phone = updated.Phone
		current.AvatarURL = updated.AvatarURL
		if current.Name == "" {
			current.Name = commerce.DisplayName(current.FirstName, current.LastName)
		}
		return current, true, msgProfileUpdated, nil
	}, nil)
}

// Refresh replaces the shopper with the account service's copy. Local
// sessions are left alone.
func (s *Store) Refresh(ctx context.Context) (Outcome, error) {
	ctx = s.logg.WithOperation(ctx, opRefresh)

	s.mu.Lock()
	state, source, token := s.state, s.source, s.token
	s.mu.Unlock()
	if state == StateLoading {
		return s.fail(opRefresh, ErrNotReady)
	}
	if state != StateAuthenticated || source != enums.SessionSourceRemote || s.accounts == nil {
		s.metrics.ObserveMutation(opRefresh, metrics.OutcomeNoop)
		return Outcome{}, nil
	}

	fresh, err := s.accounts.Me(ctx, token)
	if err != nil {
		return s.fail(opRefresh, err)
	}
	return s.mutate(ctx, opRefresh, func(current commerce.User) (commerce.User, bool, string, error) {
		if fresh.ID != current.ID {
			return current, false, "", pkgerrors.New(pkgerrors.CodeStateConflict, "account changed during refresh")
		}
		return fresh.Clone(), true, "", nil
	}, nil)
}

// applyAuth commits a successful account service answer.
func (s *Store) applyAuth(ctx context.Context, op string, res *remote.AuthResult, message string) (Outcome, error) {
	if res.Message != "" {
		message = res.Message
	}

	s.mu.Lock()
	if res.PendingVerification {
		ticket, err := s.pendLocked(ctx, commerce.NormalizeEmail(res.User.Email))
		if err != nil {
			s.mu.Unlock()
			return s.fail(op, err)
		}
		s.publishLocked()
		s.reportFailedFast(ctx, ticket)
		s.metrics.ObserveMutation(op, metrics.OutcomeChanged)
		return Outcome{Changed: true, Message: msgCheckEmail, Sync: ticket}, nil
	}
	ticket := s.replacedSessionLocked(res.User.ID)
	if err := s.adoptLocked(ctx, res.User, res.Token, enums.SessionSourceRemote); err != nil {
		s.mu.Unlock()
		return s.fail(op, err)
	}
	s.publishLocked()
	s.reportFailedFast(ctx, ticket)
	s.metrics.ObserveMutation(op, metrics.OutcomeChanged)
	return Outcome{Changed: true, Message: message, Sync: ticket}, nil
}

// awaitVerification parks the store on email after the account service
// refused a sign-in because the address is unconfirmed. cause is returned.
func (s *Store) awaitVerification(ctx context.Context, op, email string, cause error) (Outcome, error) {
	s.mu.Lock()
	if s.state == StatePendingVerification && s.pendingEmail == email {
		s.mu.Unlock()
		return s.fail(op, cause)
	}
	ticket, err := s.pendLocked(ctx, email)
	if err != nil {
		s.mu.Unlock()
		s.logg.Error(ctx, "storefront.pending.save_failed", err)
		return s.fail(op, cause)
	}
	s.publishLocked()
	s.reportFailedFast(ctx, ticket)
	return s.fail(op, cause)
}

// pendLocked persists a registration waiting on its emailed code and makes
// it current. A signed-in remote session it replaces is logged out.
func (s *Store) pendLocked(ctx context.Context, email string) (*SyncTicket, error) {
	pending := cache.Session{User: commerce.User{Email: email}, Source: enums.SessionSourcePending}
	if err := s.cache.SaveSession(ctx, pending); err != nil {
		s.logg.Error(ctx, "storefront.session.save_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, msgSaveFailed)
	}
	ticket := s.endRemoteSessionLocked()
	s.user = nil
	s.token = ""
	s.source = ""
	s.pendingEmail = email
	s.state = StatePendingVerification
	return ticket, nil
}

// replacedSessionLocked logs out the current remote session when a sign-in
// for a different shopper is about to replace it.
func (s *Store) replacedSessionLocked(nextUserID string) *SyncTicket {
	if s.user == nil || s.user.ID == nextUserID {
		return nil
	}
	return s.endRemoteSessionLocked()
}

// endRemoteSessionLocked queues a best-effort logout for the current token.
func (s *Store) endRemoteSessionLocked() *SyncTicket {
	if s.source != enums.SessionSourceRemote || s.accounts == nil || s.token == "" {
		return nil
	}
	return s.enqueueLocked(opSyncLogout, func(ctx context.Context, accounts remote.Accounts, token string) error {
		return accounts.Logout(ctx, token)
	})
}

// adoptLocked persists a new session and makes it current.
func (s *Store) adoptLocked(ctx context.Context, user commerce.User, token string, source enums.SessionSource) error {
	user = user.Clone()
	if err := s.cache.SaveSession(ctx, cache.Session{User: user, Token: token, Source: source}); err != nil {
		s.logg.Error(ctx, "storefront.session.save_failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msgSaveFailed)
	}
	s.user = &user
	s.token = token
	s.source = source
	s.pendingEmail = ""
	s.state = StateAuthenticated
	return nil
}

func (s *Store) fail(op string, err error) (Outcome, error) {
	s.metrics.ObserveMutation(op, metrics.OutcomeError)
	return Outcome{}, err
}
