// Package config loads application configuration from environment variables.
package config

import (
	"crypto/rsa"
	"log"
	"os"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The RSA key pair signs and verifies bearer
// tokens; only the private key is configured, the public half is derived.
type Config struct {
	Env            string          // application environment ("dev", "prod")
	Port           string          // HTTP port to listen on
	DBUser         string          // database username
	DBPass         string          // database password (optional)
	DBHost         string          // database host address
	DBPort         string          // database port number
	DBName         string          // database name
	ClientURL      string          // base URL of the web client, used in activation links
	PrivateKey     *rsa.PrivateKey // RS256 signing key for bearer tokens
	PublicKey      *rsa.PublicKey  // verification half of PrivateKey
	AccessTTLMin   int             // access token time-to-live in minutes
	RefreshTTLDays int             // refresh token time-to-live in days
	BcryptCost     int             // bcrypt cost for password hashing
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	key := mustRSAKey("JWT_PRIVATE_KEY_FILE")
	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		ClientURL:      must("CLIENT_URL"),
		PrivateKey:     key,
		PublicKey:      &key.PublicKey,
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
	}
	if cfg.AccessTTLMin*60 >= cfg.RefreshTTLDays*24*3600 {
		log.Fatalf("access token TTL (%dm) must be shorter than refresh token TTL (%dd)",
			cfg.AccessTTLMin, cfg.RefreshTTLDays)
	}
	return cfg
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// mustRSAKey reads a PEM-encoded RSA private key from the file named by the
// given environment variable.
func mustRSAKey(key string) *rsa.PrivateKey {
	path := must(key)
	pem, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	pk, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		log.Fatalf("parse RSA private key %s: %v", path, err)
	}
	return pk
}
