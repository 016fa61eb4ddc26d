package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Principal is the authenticated user carried by an access token.
type Principal struct {
	UserID     int64  `json:"userId"`
	Username   string `json:"username"`
	UserRights string `json:"userRights"`
}

// IsAdmin reports whether the principal may manage users.
func (p Principal) IsAdmin() bool { return p.UserRights == RightsAdmin }

const (
	RightsAdmin      = "Admin"
	RightsVesselUser = "Vessel User"
)

type Tokens struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type JWTManager struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewJWTManager(signingKey string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		signingKey: []byte(signingKey),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type AccessClaims struct {
	jwt.RegisteredClaims
	Type       string `json:"typ"`
	UserID     int64  `json:"userId"`
	Username   string `json:"username"`
	UserRights string `json:"userRights"`
}

type RefreshClaims struct {
	jwt.RegisteredClaims
	Type   string `json:"typ"`
	UserID int64  `json:"userId"`
	JTI    string `json:"jti"`
}

// Issue signs an access/refresh pair; the refresh claims are returned so the caller can store the jti.
func (m *JWTManager) Issue(p Principal) (Tokens, RefreshClaims, error) {
	now := time.Now()
	sub := strconv.FormatInt(p.UserID, 10)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
		Type:       tokenTypeAccess,
		UserID:     p.UserID,
		Username:   p.Username,
		UserRights: p.UserRights,
	})
	accessToken, err := access.SignedString(m.signingKey)
	if err != nil {
		return Tokens{}, RefreshClaims{}, err
	}

	refreshClaims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.refreshTTL)),
		},
		Type:   tokenTypeRefresh,
		UserID: p.UserID,
		JTI:    uuid.NewString(),
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(m.signingKey)
	if err != nil {
		return Tokens{}, RefreshClaims{}, err
	}

	return Tokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(m.accessTTL.Seconds()),
	}, refreshClaims, nil
}

func (m *JWTManager) ParseAccess(tokenStr string) (Principal, error) {
	var claims AccessClaims
	if err := m.parse(tokenStr, &claims); err != nil {
		return Principal{}, err
	}
	if claims.Type != tokenTypeAccess || claims.UserID <= 0 {
		return Principal{}, ErrInvalidToken
	}
	return Principal{UserID: claims.UserID, Username: claims.Username, UserRights: claims.UserRights}, nil
}

func (m *JWTManager) ParseRefresh(tokenStr string) (RefreshClaims, error) {
	var claims RefreshClaims
	if err := m.parse(tokenStr, &claims); err != nil {
		return RefreshClaims{}, err
	}
	if claims.Type != tokenTypeRefresh || claims.UserID <= 0 || claims.JTI == "" {
		return RefreshClaims{}, ErrInvalidToken
	}
	return claims, nil
}

func (m *JWTManager) parse(tokenStr string, claims jwt.Claims) error {
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return ErrInvalidToken
	}
	return nil
}
