package utils // helpers for signing, decoding and verifying bearer tokens

import (
	"crypto/rsa"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenIssuer is stamped into every token the service signs.
const tokenIssuer = "fleet-os"

// ErrInvalidToken is returned when a token fails structural decoding or
// signature verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the claim set shared by access and refresh tokens: subject,
// email, role and (for tenant-scoped users) the public tenant id.
type Claims struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the numeric subject claim.
func (c *Claims) UserID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// SignedToken pairs a serialized token with its expiry.
type SignedToken struct {
	Token string
	Exp   time.Time
}

// NewToken builds and signs an RS256 token for a user. The same claim shape
// is used for both access and refresh tokens; only the TTL differs. The jti
// claim makes every mint unique: iat/exp have second precision, so without
// it two tokens minted in the same second would serialize identically and a
// rotation could reissue the string it just revoked.
func NewToken(key *rsa.PrivateKey, userID uint64, email, role, tenantID string, ttl time.Duration) (SignedToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Email:    email,
		Role:     role,
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(userID, 10),
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// DecodeClaims parses a token's claims without verifying the signature.
// Refresh relies on this: trust comes from the persisted session record for
// the token string, not from the signature at decode time.
func DecodeClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyToken parses a token and checks its RS256 signature and expiry
// against the given public key.
func VerifyToken(pub *rsa.PublicKey, token string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return pub, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
