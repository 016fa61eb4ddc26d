package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/mail"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/security"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/store"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/util"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactive           = errors.New("account is inactive")
	ErrInvalidOTP         = errors.New("invalid or expired code")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrInvalidRefresh     = errors.New("invalid refresh token")
)

// UserStore is the part of Repo the auth flows use.
type UserStore interface {
	FindByIdentifier(ctx context.Context, ident string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	SetPassword(ctx context.Context, id int64, hash string) error
}

type OTPStore interface {
	Save(ctx context.Context, purpose, subject, code string) error
	Verify(ctx context.Context, purpose, subject, code string) error
}

type RefreshStore interface {
	Put(ctx context.Context, userID int64, jti string) error
	Consume(ctx context.Context, userID int64, jti string) error
	RevokeAll(ctx context.Context, userID int64) error
}

type TokenIssuer interface {
	Issue(p security.Principal) (security.Tokens, security.RefreshClaims, error)
	ParseRefresh(token string) (security.RefreshClaims, error)
}

type Service struct {
	logger  *zap.Logger
	users   UserStore
	otp     OTPStore
	refresh RefreshStore
	tokens  TokenIssuer
	mailer  mail.Mailer
	otpLen  int
	otpTTL  time.Duration
}

func NewService(logger *zap.Logger, users UserStore, otp OTPStore, refresh RefreshStore, tokens TokenIssuer,
	mailer mail.Mailer, otpLen int, otpTTL time.Duration) *Service {
	return &Service{logger: logger, users: users, otp: otp, refresh: refresh, tokens: tokens, mailer: mailer,
		otpLen: otpLen, otpTTL: otpTTL}
}

// LoginResult carries either tokens or a pending two-factor challenge.
type LoginResult struct {
	Requires2FA bool             `json:"requires2FA"`
	UserID      int64            `json:"userId"`
	Tokens      *security.Tokens `json:"tokens,omitempty"`
	User        *User            `json:"user,omitempty"`
}

func (s *Service) Login(ctx context.Context, ident, password string) (LoginResult, error) {
	u, err := s.users.FindByIdentifier(ctx, ident)
	if errors.Is(err, ErrNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if !util.ComparePassword(u.PasswordHash, password) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return LoginResult{}, ErrInactive
	}
	if u.Require2FA {
		if err := s.sendCode(ctx, store.PurposeLogin2FA, strconv.FormatInt(u.ID, 10), u.Email, "Your MEMP login code"); err != nil {
			return LoginResult{}, err
		}
		return LoginResult{Requires2FA: true, UserID: u.ID}, nil
	}
	return s.issue(ctx, u)
}

func (s *Service) VerifyTwoFactor(ctx context.Context, userID int64, code string) (LoginResult, error) {
	if err := s.verifyCode(ctx, store.PurposeLogin2FA, strconv.FormatInt(userID, 10), code); err != nil {
		return LoginResult{}, err
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return LoginResult{}, err
	}
	if !u.IsActive {
		return LoginResult{}, ErrInactive
	}
	return s.issue(ctx, u)
}

func (s *Service) issue(ctx context.Context, u *User) (LoginResult, error) {
	tokens, rc, err := s.tokens.Issue(u.Principal())
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.refresh.Put(ctx, u.ID, rc.JTI); err != nil {
		return LoginResult{}, fmt.Errorf("store refresh: %w", err)
	}
	return LoginResult{UserID: u.ID, Tokens: &tokens, User: u}, nil
}

// Refresh rotates the pair: the presented refresh token is consumed and a new one stored.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (security.Tokens, error) {
	rc, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return security.Tokens{}, ErrInvalidRefresh
	}
	if err := s.refresh.Consume(ctx, rc.UserID, rc.JTI); err != nil {
		if errors.Is(err, store.ErrRefreshInvalid) {
			return security.Tokens{}, ErrInvalidRefresh
		}
		return security.Tokens{}, err
	}
	u, err := s.users.FindByID(ctx, rc.UserID)
	if err != nil {
		return security.Tokens{}, err
	}
	if !u.IsActive {
		return security.Tokens{}, ErrInactive
	}
	res, err := s.issue(ctx, u)
	if err != nil {
		return security.Tokens{}, err
	}
	return *res.Tokens, nil
}

// Logout consumes the refresh token; an already used token is not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	rc, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return ErrInvalidRefresh
	}
	if err := s.refresh.Consume(ctx, rc.UserID, rc.JTI); err != nil && !errors.Is(err, store.ErrRefreshInvalid) {
		return err
	}
	return nil
}

// ForgotPassword emails a reset code. Unknown or inactive addresses are
// silently ignored so callers cannot discover accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !u.IsActive {
		return nil
	}
	err = s.sendCode(ctx, store.PurposePasswordReset, u.Email, u.Email, "Your MEMP password reset code")
	if errors.Is(err, store.ErrOTPCooldown) {
		return nil
	}
	return err
}

func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := util.ValidatePassword(newPassword); err != nil {
		return err
	}
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidOTP
	}
	if err != nil {
		return err
	}
	if err := s.verifyCode(ctx, store.PurposePasswordReset, u.Email, code); err != nil {
		return err
	}
	return s.setPassword(ctx, u.ID, newPassword)
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !util.ComparePassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	if err := util.ValidatePassword(next); err != nil {
		return err
	}
	return s.setPassword(ctx, u.ID, next)
}

// setPassword stores the hash and signs the user out everywhere.
func (s *Service) setPassword(ctx context.Context, userID int64, pw string) error {
	hash, err := util.HashPassword(pw)
	if err != nil {
		return err
	}
	if err := s.users.SetPassword(ctx, userID, hash); err != nil {
		return err
	}
	if err := s.refresh.RevokeAll(ctx, userID); err != nil {
		s.logger.Warn("revoke refresh tokens failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	return nil
}

func (s *Service) sendCode(ctx context.Context, purpose, subject, to, title string) error {
	code, err := util.GenerateNumericOTP(s.otpLen)
	if err != nil {
		return err
	}
	if err := s.otp.Save(ctx, purpose, subject, code); err != nil {
		return err
	}
	body := fmt.Sprintf("Your code is %s. It expires in %d minutes.", code, int(s.otpTTL.Minutes()))
	if err := s.mailer.Send(ctx, mail.Message{To: to, Subject: title, Body: body}); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	return nil
}

func (s *Service) verifyCode(ctx context.Context, purpose, subject, code string) error {
	err := s.otp.Verify(ctx, purpose, subject, code)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrOTPMaxAttempts):
		return ErrTooManyAttempts
	case errors.Is(err, store.ErrOTPExpired), errors.Is(err, store.ErrOTPInvalid):
		return ErrInvalidOTP
	}
	return err
}
