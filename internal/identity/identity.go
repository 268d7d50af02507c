package identity

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// RoleAdminRead grants access to the administrative progress view.
const RoleAdminRead = "quiz-admin:read"

// Identity is what the quiz needs to know about the current user. The
// identity provider behind it is opaque.
type Identity interface {
	IsAuthenticated() bool
	HasRole(role string) bool
	Token() string
	// Subject identifies whose progress this is: the token subject, or a
	// client-chosen id for anonymous users. It may be empty.
	Subject() string
}

// Anonymous is the identity of a user without a token. ClientID lets a
// returning browser resume its own anonymous session.
type Anonymous struct {
	ClientID string
}

func (Anonymous) IsAuthenticated() bool { return false }
func (Anonymous) HasRole(string) bool { return false }
func (Anonymous) Token() string { return "" }
func (a Anonymous) Subject() string { return a.ClientID }

// Claims are the token claims the quiz reads.
type Claims struct {
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Principal is an authenticated user backed by a validated bearer token.
type Principal struct {
	token  string
	claims *Claims
}

func (p *Principal) IsAuthenticated() bool { return true }

func (p *Principal) HasRole(role string) bool {
	for _, r := range p.claims.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (p *Principal) Token() string { return p.token }

// Subject returns the user identifier carried by the token.
func (p *Principal) Subject() string { return p.claims.Subject }

var ErrInvalidToken = errors.New("invalid token")

// Verifier validates HS256 bearer tokens.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Parse validates raw and returns the Principal it describes.
func (v *Verifier) Parse(raw string) (*Principal, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if raw == "" || len(v.secret) == 0 {
		return nil, ErrInvalidToken
	}
	t, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, ErrInvalidToken
	}
	return &Principal{token: raw, claims: c}, nil
}

// Resolve returns Anonymous with the given client id for an empty or
// invalid token.
func (v *Verifier) Resolve(raw, clientID string) Identity {
	if strings.TrimSpace(raw) == "" {
		return Anonymous{ClientID: clientID}
	}
	p, err := v.Parse(raw)
	if err != nil {
		return Anonymous{ClientID: clientID}
	}
	return p
}

// SignToken issues a token; used by dev tooling and tests.
func (v *Verifier) SignToken(subject string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Static is a fixed identity, handy where tokens are resolved upstream.
type Static struct {
	UserID        string
	Authenticated bool
	Roles         []string
	BearerToken   string
}

func (s Static) IsAuthenticated() bool { return s.Authenticated }

func (s Static) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (s Static) Token() string { return s.BearerToken }

func (s Static) Subject() string { return s.UserID }
