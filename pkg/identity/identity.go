// Package identity extracts the verified user behind a connection request.
//
// Tokens are issued by the identity service; this package only checks them.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/NicolasHaas/peermatch/pkg/model"
)

var (
	ErrNoCredentials = errors.New("identity: no credentials")
	ErrInvalidToken  = errors.New("identity: invalid token")
)

// Identity is the verified user of a connection.
type Identity struct {
	UserID model.UserID
	Role   model.Role
}

// Verifier authenticates an incoming HTTP request.
type Verifier interface {
	Verify(r *http.Request) (Identity, error)
}

// Claims are the access token claims. UserID falls back to the standard sub
// claim when absent.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HS256 access tokens taken from the Authorization
// header, the token query parameter or a cookie, in that order.
type JWTVerifier struct {
	secret []byte
	cookie string
	parser *jwt.Parser
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
// cookieName may be empty to disable cookie lookup.
func NewJWTVerifier(secret []byte, cookieName string) *JWTVerifier {
	return &JWTVerifier{
		secret: secret,
		cookie: cookieName,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(5*time.Second),
		),
	}
}

func (v *JWTVerifier) token(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	if v.cookie != "" {
		if c, err := r.Cookie(v.cookie); err == nil {
			return c.Value
		}
	}
	return ""
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(r *http.Request) (Identity, error) {
	raw := v.token(r)
	if raw == "" {
		return Identity{}, ErrNoCredentials
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	uid := model.UserID(id)
	if err := model.ValidateUserID(uid); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Identity{UserID: uid, Role: model.ParseRole(claims.Role)}, nil
}

// Sign issues a token for tests and local tooling.
func Sign(secret []byte, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: id.UserID.String(),
		Role:   id.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// HeaderVerifier trusts a header set by an authenticating proxy in front of
// the server, e.g. X-User-Id. RoleHeader is optional.
type HeaderVerifier struct {
	UserHeader string
	RoleHeader string
}

// Verify implements Verifier.
func (v HeaderVerifier) Verify(r *http.Request) (Identity, error) {
	raw := strings.TrimSpace(r.Header.Get(v.UserHeader))
	if raw == "" {
		return Identity{}, ErrNoCredentials
	}
	uid := model.UserID(raw)
	if err := model.ValidateUserID(uid); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	role := model.RoleUser
	if v.RoleHeader != "" {
		role = model.ParseRole(r.Header.Get(v.RoleHeader))
	}
	return Identity{UserID: uid, Role: role}, nil
}
