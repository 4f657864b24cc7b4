package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"

	"github.com/mveljko/gatehouse/internal/gatehouse/domain"
	"github.com/mveljko/gatehouse/internal/gatehouse/store"
	"github.com/mveljko/gatehouse/pkg/cryptox"
	"github.com/mveljko/gatehouse/pkg/idx"
	"github.com/mveljko/gatehouse/pkg/slogx"
	"github.com/pquerna/otp/totp"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrUserExists         = errors.New("user_already_exists")

	ErrInvalidUsername = errors.New("username must be 3-20 characters: letters, digits, underscore or hyphen")
	ErrInvalidEmail    = errors.New("email address is not valid")
	ErrWeakPassword    = errors.New("password must be at least 8 characters and contain a letter and a digit")
	ErrInvalidTOTPCode = errors.New("invalid verification code")
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)
	hasLetter  = regexp.MustCompile(`[A-Za-z]`)
	hasDigit   = regexp.MustCompile(`[0-9]`)
)

// UserService owns registration and credential verification. Every
// authentication attempt, successful or not, is written to the attempts
// log with the source address.
type UserService struct {
	Store store.Store

	// TOTPIssuer is the issuer label shown in authenticator apps.
	TOTPIssuer string
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`

	// EnrollTOTP opts the new account into a TOTP second factor. The
	// provisioning URI comes back in RegisterResult for the client to
	// display as a QR code.
	EnrollTOTP bool `json:"enroll_totp,omitempty"`
}

type RegisterResult struct {
	UserID string
	// OTPAuthURL is empty unless TOTP enrollment was requested.
	OTPAuthURL string
}

// Register validates the input, hashes the password and creates the
// account. Validation failures come back as the sentinel errors above so
// the handler can render them verbatim; they carry no secrets.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	if !usernameRe.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(in.Password) < 8 || !hasLetter.MatchString(in.Password) || !hasDigit.MatchString(in.Password) {
		return nil, ErrWeakPassword
	}

	exists, err := s.Store.Users().Exists(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}

	result := &RegisterResult{UserID: user.ID}

	if in.EnrollTOTP {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      s.TOTPIssuer,
			AccountName: username,
		})
		if err != nil {
			return nil, err
		}
		secret := key.Secret()
		user.TOTPSecret = &secret
		user.TwoFactorEnabled = true
		result.OTPAuthURL = key.URL()
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost the race against a concurrent registration.
			return nil, ErrUserExists
		}
		return nil, err
	}

	slogx.FromContext(ctx).Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", username))

	return result, nil
}

// Authenticate verifies a username/password pair, plus the TOTP code when
// the account has a second factor enrolled. The attempt is logged either
// way. An unknown username and a wrong password return the same error so
// responses cannot be used to enumerate accounts.
func (s *UserService) Authenticate(ctx context.Context, username, password, otpCode, ip string) (*domain.User, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logAttempt(ctx, nil, ip, false)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		s.logAttempt(ctx, &user.ID, ip, false)
		l.Info("login failed: bad password", slog.String("username", user.Username))
		return nil, ErrInvalidCredentials
	}

	if user.HasTOTP() {
		if otpCode == "" || !totp.Validate(otpCode, *user.TOTPSecret) {
			s.logAttempt(ctx, &user.ID, ip, false)
			l.Info("login failed: bad totp code", slog.String("username", user.Username))
			return nil, ErrInvalidCredentials
		}
	}

	s.logAttempt(ctx, &user.ID, ip, true)
	return &user, nil
}

// ChangePassword verifies the current password before accepting the new
// one. The new password goes through the same strength rules as
// registration.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := cryptox.VerifyPassword(current, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}
	if len(next) < 8 || !hasLetter.MatchString(next) || !hasDigit.MatchString(next) {
		return ErrWeakPassword
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return err
	}
	return s.Store.Users().UpdatePasswordHash(ctx, userID, hash)
}

// logAttempt is best effort. Losing an audit row must not turn a valid
// login into an error.
func (s *UserService) logAttempt(ctx context.Context, userID *string, ip string, success bool) {
	err := s.Store.Attempts().Log(ctx, domain.Attempt{
		ID:      idx.New().String(),
		UserID:  userID,
		IP:      ip,
		Success: success,
	})
	if err != nil {
		slogx.FromContext(ctx).Error("failed to log auth attempt",
			slog.String("error", err.Error()))
	}
}
