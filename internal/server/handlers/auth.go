package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/security"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/mw"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/users"
)

// AuthService is implemented by users.Service.
type AuthService interface {
	Login(ctx context.Context, ident, password string) (users.LoginResult, error)
	VerifyTwoFactor(ctx context.Context, userID int64, code string) (users.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (security.Tokens, error)
	Logout(ctx context.Context, refreshToken string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	ChangePassword(ctx context.Context, userID int64, current, next string) error
}

type AuthHandler struct {
	logger *zap.Logger
	auth   AuthService
}

func NewAuthHandler(logger *zap.Logger, auth AuthService) *AuthHandler {
	return &AuthHandler{logger: logger, auth: auth}
}

type loginReq struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.auth.Login(ctx, strings.TrimSpace(req.Identifier), req.Password)
	if err != nil {
		fail(c, h.logger, "login", err)
		return
	}
	if res.Requires2FA {
		resp.OK(c, gin.H{"requires2FA": true, "userId": res.UserID, "message": "A verification code was sent to your email."})
		return
	}
	resp.OK(c, res)
}

type verifyLoginReq struct {
	UserID int64  `json:"userId" binding:"required"`
	OTP    string `json:"otp" binding:"required"`
}

// POST /verify-login-otp
func (h *AuthHandler) VerifyLoginOTP(c *gin.Context) {
	var req verifyLoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.auth.VerifyTwoFactor(ctx, req.UserID, strings.TrimSpace(req.OTP))
	if err != nil {
		fail(c, h.logger, "verify login otp", err)
		return
	}
	resp.OK(c, res)
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// POST /refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	tokens, err := h.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		fail(c, h.logger, "refresh", err)
		return
	}
	resp.OK(c, gin.H{"tokens": tokens})
}

// POST /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.auth.Logout(ctx, req.RefreshToken); err != nil {
		fail(c, h.logger, "logout", err)
		return
	}
	resp.Message(c, "Logged out.")
}

type forgotReq struct {
	Email string `json:"email" binding:"required"`
}

// POST /request-forgot-password-otp always answers 200.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.auth.ForgotPassword(ctx, strings.ToLower(strings.TrimSpace(req.Email))); err != nil {
		h.logger.Error("forgot password", zap.Error(err))
	}
	resp.Message(c, "If the address is registered, a reset code has been sent.")
}

type resetReq struct {
	Email       string `json:"email" binding:"required"`
	OTP         string `json:"otp" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// POST /verify-forgot-password-otp
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	err := h.auth.ResetPassword(ctx, strings.ToLower(strings.TrimSpace(req.Email)), strings.TrimSpace(req.OTP), req.NewPassword)
	if err != nil {
		fail(c, h.logger, "reset password", err)
		return
	}
	resp.Message(c, "Password has been reset.")
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// POST /change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	p, ok := mw.PrincipalFrom(c)
	if !ok {
		resp.Error(c, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req changePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.auth.ChangePassword(ctx, p.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		fail(c, h.logger, "change password", err)
		return
	}
	resp.Message(c, "Password changed.")
}
