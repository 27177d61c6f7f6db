// Command jwt-mint signs an RS256 bearer token for local testing of the
// server's OIDC authentication.
package main

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/pflag"
)

type mintOptions struct {
	Issuer   string
	Audience []string
	Subject  string
	KeyID    string
	Lifetime time.Duration
	Now      time.Time
}

func main() {
	defaultSubject := "user-1"
	if current, err := user.Current(); err == nil {
		defaultSubject = current.Username
	}

	keyPath := pflag.String("key", ".auth/jwt_private.pem", "Path to RSA private key (PEM)")
	issuer := pflag.String("issuer", "https://localhost:9000", "Token issuer")
	audience := pflag.String("audience", "graphql-app-example", "Token audience (comma-separated)")
	subject := pflag.String("subject", defaultSubject, "Token subject")
	kid := pflag.String("kid", "local-key", "Key ID header")
	expires := pflag.Duration("expires", time.Hour, "Token lifetime")
	pflag.Parse()

	key, err := loadPrivateKey(*keyPath)
	if err != nil {
		exitErr(err)
	}

	signed, err := mintToken(key, mintOptions{
		Issuer:   *issuer,
		Audience: splitList(*audience),
		Subject:  *subject,
		KeyID:    *kid,
		Lifetime: *expires,
		Now:      time.Now(),
	})
	if err != nil {
		exitErr(err)
	}
	fmt.Println(signed)
}

func mintToken(key *rsa.PrivateKey, opts mintOptions) (string, error) {
	if len(opts.Audience) == 0 {
		return "", errors.New("at least one audience is required")
	}
	if opts.Lifetime <= 0 {
		return "", errors.New("token lifetime must be positive")
	}

	claims := jwt.RegisteredClaims{
		Issuer:    opts.Issuer,
		Subject:   opts.Subject,
		Audience:  jwt.ClaimStrings(opts.Audience),
		IssuedAt:  jwt.NewNumericDate(opts.Now),
		NotBefore: jwt.NewNumericDate(opts.Now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(opts.Now.Add(opts.Lifetime)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if opts.KeyID != "" {
		token.Header["kid"] = opts.KeyID
	}
	return token.SignedString(key)
}

// loadPrivateKey accepts PKCS#1 and PKCS#8 encoded RSA keys.
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	return parsePrivateKey(data)
}

func parsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to decode private key PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", parsed)
	}
	return key, nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
