package utils

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestNewTokenRoundTrip(t *testing.T) {
	key := testKey(t)

	signed, err := NewToken(key, 42, "dana@example.com", "DRIVER", "t-1", 15*time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if until := time.Until(signed.Exp); until <= 0 || until > 15*time.Minute {
		t.Fatalf("expiry %v outside the requested TTL", signed.Exp)
	}

	claims, err := VerifyToken(&key.PublicKey, signed.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	uid, err := claims.UserID()
	if err != nil {
		t.Fatalf("subject: %v", err)
	}
	if uid != 42 || claims.Email != "dana@example.com" || claims.Role != "DRIVER" || claims.TenantID != "t-1" {
		t.Fatalf("claims = {%d %s %s %s}", uid, claims.Email, claims.Role, claims.TenantID)
	}
	if claims.Issuer != tokenIssuer {
		t.Fatalf("issuer = %q, want %q", claims.Issuer, tokenIssuer)
	}
}

func TestNewTokenUniquePerMint(t *testing.T) {
	key := testKey(t)

	// Identical inputs in the same instant must still produce distinct
	// token strings; rotation depends on never reissuing a minted string.
	first, err := NewToken(key, 42, "dana@example.com", "DRIVER", "t-1", 15*time.Minute)
	if err != nil {
		t.Fatalf("first sign: %v", err)
	}
	second, err := NewToken(key, 42, "dana@example.com", "DRIVER", "t-1", 15*time.Minute)
	if err != nil {
		t.Fatalf("second sign: %v", err)
	}
	if first.Token == second.Token {
		t.Fatal("identical token minted twice")
	}

	a, err := VerifyToken(&key.PublicKey, first.Token)
	if err != nil {
		t.Fatalf("verify first: %v", err)
	}
	b, err := VerifyToken(&key.PublicKey, second.Token)
	if err != nil {
		t.Fatalf("verify second: %v", err)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("jti not unique: %q vs %q", a.ID, b.ID)
	}
}

func TestVerifyTokenWrongKey(t *testing.T) {
	key := testKey(t)
	other := testKey(t)

	signed, err := NewToken(key, 1, "a@example.com", "DRIVER", "", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := VerifyToken(&other.PublicKey, signed.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("verify err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	key := testKey(t)

	signed, err := NewToken(key, 1, "a@example.com", "DRIVER", "", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := VerifyToken(&key.PublicKey, signed.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("verify err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyTokenRejectsHMAC(t *testing.T) {
	key := testKey(t)

	// A token signed with HS256 must never pass, whatever its claims say.
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign forged token: %v", err)
	}
	if _, err := VerifyToken(&key.PublicKey, forged); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("verify err = %v, want ErrInvalidToken", err)
	}
}

func TestDecodeClaimsStructuralOnly(t *testing.T) {
	key := testKey(t)

	signed, err := NewToken(key, 7, "a@example.com", "TENANT_ADMIN", "t-9", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	// Decoding ignores signature and expiry; trust is established elsewhere.
	claims, err := DecodeClaims(signed.Token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if uid, _ := claims.UserID(); uid != 7 || claims.TenantID != "t-9" {
		t.Fatalf("claims = {%d %s}", uid, claims.TenantID)
	}

	if _, err := DecodeClaims("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("decode garbage err = %v, want ErrInvalidToken", err)
	}
}
