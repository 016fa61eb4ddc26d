package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/security"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/users"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/util"
)

type fakeAuth struct {
	AuthService

	login   func(ident, password string) (users.LoginResult, error)
	forgot  func(email string) error
	changed []int64
}

func (f *fakeAuth) Login(_ context.Context, ident, password string) (users.LoginResult, error) {
	return f.login(ident, password)
}

func (f *fakeAuth) ForgotPassword(_ context.Context, email string) error { return f.forgot(email) }

func (f *fakeAuth) ChangePassword(_ context.Context, userID int64, _, next string) error {
	if err := util.ValidatePassword(next); err != nil {
		return err
	}
	f.changed = append(f.changed, userID)
	return nil
}

func authRoutes(h *AuthHandler) func(gin.IRoutes) {
	return func(r gin.IRoutes) {
		r.POST("/login", h.Login)
		r.POST("/request-forgot-password-otp", h.ForgotPassword)
		r.POST("/change-password", h.ChangePassword)
	}
}

func TestLogin(t *testing.T) {
	svc := &fakeAuth{login: func(ident, password string) (users.LoginResult, error) {
		switch {
		case ident == "master" && password == "secret12":
			return users.LoginResult{Requires2FA: true, UserID: 42}, nil
		case ident == "chief" && password == "secret12":
			return users.LoginResult{UserID: 7, Tokens: &security.Tokens{AccessToken: "a", RefreshToken: "r", ExpiresIn: 3600}}, nil
		}
		return users.LoginResult{}, users.ErrInvalidCredentials
	}}
	h := newEngine(nil, authRoutes(NewAuthHandler(zap.NewNop(), svc)))

	t.Run("two factor pending", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/login", gin.H{"identifier": " master ", "password": "secret12"})
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Requires2FA bool  `json:"requires2FA"`
			UserID      int64 `json:"userId"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.Requires2FA)
		assert.EqualValues(t, 42, body.UserID)
	})

	t.Run("tokens", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/login", gin.H{"identifier": "chief", "password": "secret12"})
		require.Equal(t, http.StatusOK, w.Code)
		var body users.LoginResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.NotNil(t, body.Tokens)
		assert.Equal(t, "r", body.Tokens.RefreshToken)
	})

	t.Run("bad credentials", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/login", gin.H{"identifier": "chief", "password": "nope"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Unauthorized", errorBody(t, w).Message)
	})

	t.Run("missing password", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/login", gin.H{"identifier": "chief"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestForgotPasswordAlwaysOK(t *testing.T) {
	var got string
	svc := &fakeAuth{forgot: func(email string) error {
		got = email
		return errors.New("smtp down")
	}}
	h := newEngine(nil, authRoutes(NewAuthHandler(zap.NewNop(), svc)))

	w := doJSON(t, h, http.MethodPost, "/request-forgot-password-otp", gin.H{"email": " Chief@Ship.COM "})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "chief@ship.com", got)
}

func TestChangePassword(t *testing.T) {
	svc := &fakeAuth{}

	anon := newEngine(nil, authRoutes(NewAuthHandler(zap.NewNop(), svc)))
	w := doJSON(t, anon, http.MethodPost, "/change-password", gin.H{"currentPassword": "old", "newPassword": "newpass99"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	h := newEngine(vesselUser, authRoutes(NewAuthHandler(zap.NewNop(), svc)))
	w = doJSON(t, h, http.MethodPost, "/change-password", gin.H{"currentPassword": "old", "newPassword": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.changed)

	w = doJSON(t, h, http.MethodPost, "/change-password", gin.H{"currentPassword": "old", "newPassword": "newpass99"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{7}, svc.changed)
}
