package httpapi

import (
	"context"
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"glowdesk/backend/internal/cache"
	"glowdesk/backend/internal/domain"
	"glowdesk/backend/internal/xid"
)

const tokenIssuer = "glowdesk"

var (
	errInvalidToken = errors.New("invalid or expired token")
	errRevokedToken = errors.New("token has been logged out")
	errSessionEnded = errors.New("session has ended")
)

// AuthManager issues and checks the bearer tokens that front the store's
// single session.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	revoker  cache.TokenRevoker
	now      func() time.Time
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
	Name string `json:"name"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, revoker cache.TokenRevoker) *AuthManager {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	if revoker == nil {
		revoker = cache.NewMemoryTokenRevoker(time.Now)
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		revoker:  revoker,
		now:      time.Now,
	}
}

func (a *AuthManager) Issue(user domain.User) (domain.LoginResponse, error) {
	now := a.now().UTC()
	expiresAt := now.Add(a.tokenTTL)
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        xid.New("tok"),
			Subject:   user.Email,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Role: user.Role,
		Name: user.Name,
	}

	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		User:        user,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) Authenticate(ctx context.Context, tokenStr string) (domain.Actor, error) {
	claims := &sessionClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer), jwtlib.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return domain.Actor{}, errInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" || claims.ID == "" {
		return domain.Actor{}, errInvalidToken
	}

	revoked, err := a.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return domain.Actor{}, err
	}
	if revoked {
		return domain.Actor{}, errRevokedToken
	}
	return domain.Actor{Email: sub, Role: claims.Role, Token: claims.ID}, nil
}

func (a *AuthManager) Revoke(ctx context.Context, actor domain.Actor) error {
	return a.revoker.Revoke(ctx, actor.Token, a.tokenTTL)
}
