package users

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/mail"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/security"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/store"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/util"
)

type fakeUsers struct {
	byID map[int64]*User
}

func (f *fakeUsers) FindByIdentifier(_ context.Context, ident string) (*User, error) {
	for _, u := range f.byID {
		if strings.EqualFold(u.Username, ident) || strings.EqualFold(u.Email, ident) {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeUsers) FindByID(_ context.Context, id int64) (*User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (f *fakeUsers) SetPassword(_ context.Context, id int64, hash string) error {
	f.byID[id].PasswordHash = hash
	return nil
}

type fakeOTP struct {
	codes    map[string]string
	attempts int
}

func (f *fakeOTP) Save(_ context.Context, purpose, subject, code string) error {
	f.codes[purpose+":"+subject] = code
	return nil
}

func (f *fakeOTP) Verify(_ context.Context, purpose, subject, code string) error {
	f.attempts++
	if f.attempts > 3 {
		return store.ErrOTPMaxAttempts
	}
	c, ok := f.codes[purpose+":"+subject]
	if !ok {
		return store.ErrOTPExpired
	}
	if c != code {
		return store.ErrOTPInvalid
	}
	delete(f.codes, purpose+":"+subject)
	return nil
}

type fakeRefresh struct {
	live    map[string]bool
	revoked []int64
}

func (f *fakeRefresh) Put(_ context.Context, _ int64, jti string) error {
	f.live[jti] = true
	return nil
}

func (f *fakeRefresh) Consume(_ context.Context, _ int64, jti string) error {
	if !f.live[jti] {
		return store.ErrRefreshInvalid
	}
	delete(f.live, jti)
	return nil
}

func (f *fakeRefresh) RevokeAll(_ context.Context, userID int64) error {
	f.revoked = append(f.revoked, userID)
	f.live = map[string]bool{}
	return nil
}

type captureMailer struct{ sent []mail.Message }

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

type env struct {
	svc     *Service
	users   *fakeUsers
	otp     *fakeOTP
	refresh *fakeRefresh
	mailer  *captureMailer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	hash, err := util.HashPassword("Secret123")
	require.NoError(t, err)
	e := &env{
		users: &fakeUsers{byID: map[int64]*User{
			1: {ID: 1, Username: "captain", Email: "captain@memp.test", PasswordHash: hash, UserRights: security.RightsVesselUser, IsActive: true},
			2: {ID: 2, Username: "admin", Email: "admin@memp.test", PasswordHash: hash, UserRights: security.RightsAdmin, IsActive: true, Require2FA: true},
			3: {ID: 3, Username: "former", Email: "former@memp.test", PasswordHash: hash, IsActive: false},
		}},
		otp:     &fakeOTP{codes: map[string]string{}},
		refresh: &fakeRefresh{live: map[string]bool{}},
		mailer:  &captureMailer{},
	}
	jwtm := security.NewJWTManager("test-signing-key", 15*time.Minute, 24*time.Hour)
	e.svc = NewService(zap.NewNop(), e.users, e.otp, e.refresh, jwtm, e.mailer, 6, 5*time.Minute)
	return e
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res, err := e.svc.Login(ctx, "CAPTAIN", "Secret123")
	require.NoError(t, err)
	assert.False(t, res.Requires2FA)
	require.NotNil(t, res.Tokens)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.Len(t, e.refresh.live, 1)

	_, err = e.svc.Login(ctx, "captain@memp.test", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = e.svc.Login(ctx, "nobody", "Secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = e.svc.Login(ctx, "former", "Secret123")
	assert.ErrorIs(t, err, ErrInactive)
}

func TestLoginTwoFactor(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res, err := e.svc.Login(ctx, "admin", "Secret123")
	require.NoError(t, err)
	assert.True(t, res.Requires2FA)
	assert.Nil(t, res.Tokens)
	require.Len(t, e.mailer.sent, 1)
	assert.Equal(t, "admin@memp.test", e.mailer.sent[0].To)

	code := e.otp.codes[store.PurposeLogin2FA+":2"]
	require.Len(t, code, 6)
	assert.Contains(t, e.mailer.sent[0].Body, code)

	_, err = e.svc.VerifyTwoFactor(ctx, 2, "000000x")
	assert.ErrorIs(t, err, ErrInvalidOTP)

	res, err = e.svc.VerifyTwoFactor(ctx, 2, code)
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	assert.Equal(t, security.RightsAdmin, res.User.UserRights)

	_, err = e.svc.VerifyTwoFactor(ctx, 2, code)
	assert.ErrorIs(t, err, ErrInvalidOTP, "codes are single use")
}

func TestRefreshRotates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res, err := e.svc.Login(ctx, "captain", "Secret123")
	require.NoError(t, err)

	next, err := e.svc.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.Tokens.RefreshToken, next.RefreshToken)

	_, err = e.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh, "a rotated token is rejected")

	_, err = e.svc.Refresh(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh, "access tokens are not refresh tokens")

	require.NoError(t, e.svc.Logout(ctx, next.RefreshToken))
	require.NoError(t, e.svc.Logout(ctx, next.RefreshToken))
	assert.Empty(t, e.refresh.live)
}

func TestPasswordReset(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.svc.ForgotPassword(ctx, "ghost@memp.test"))
	require.NoError(t, e.svc.ForgotPassword(ctx, "former@memp.test"))
	assert.Empty(t, e.mailer.sent)

	require.NoError(t, e.svc.ForgotPassword(ctx, "Captain@memp.test"))
	require.Len(t, e.mailer.sent, 1)
	code := e.otp.codes[store.PurposePasswordReset+":captain@memp.test"]

	err := e.svc.ResetPassword(ctx, "captain@memp.test", code, "short")
	assert.ErrorIs(t, err, util.ErrWeakPassword)

	require.NoError(t, e.svc.ResetPassword(ctx, "captain@memp.test", code, "NewSecret9"))
	assert.Equal(t, []int64{1}, e.refresh.revoked)

	_, err = e.svc.Login(ctx, "captain", "NewSecret9")
	require.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	err := e.svc.ChangePassword(ctx, 1, "nope", "NewSecret9")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = e.svc.ChangePassword(ctx, 1, "Secret123", "password")
	assert.True(t, errors.Is(err, util.ErrWeakPassword))

	require.NoError(t, e.svc.ChangePassword(ctx, 1, "Secret123", "NewSecret9"))
	assert.True(t, util.ComparePassword(e.users.byID[1].PasswordHash, "NewSecret9"))
}

func TestPatchNormalize(t *testing.T) {
	p := Patch{Username: ptr(" bosun "), Email: ptr(" Bosun@MEMP.test "), Password: ptr("Secret123")}
	require.NoError(t, p.normalize(true))
	assert.Equal(t, "bosun", *p.Username)
	assert.Equal(t, "bosun@memp.test", *p.Email)

	assert.ErrorIs(t, (&Patch{Username: ptr("a")}).normalize(true), ErrInvalid)
	assert.ErrorIs(t, (&Patch{Username: ptr("two words")}).normalize(false), ErrInvalid)
	assert.ErrorIs(t, (&Patch{Email: ptr("@x")}).normalize(false), ErrInvalid)
	assert.ErrorIs(t, (&Patch{UserRights: ptr(" ")}).normalize(false), ErrInvalid)
}

func ptr[T any](v T) *T { return &v }
