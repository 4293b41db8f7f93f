// Package apitoken issues and verifies the bearer tokens required by the
// HTTP interface. Tokens are HS256 JWTs signed with a secret that only the
// running daemon knows.
package apitoken

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

const (
	// TokenFile is the name of the file the daemon writes its token to.
	TokenFile = "api.token"

	subject    = "signer-api"
	secretSize = 32
)

var (
	// ErrMissingToken ...
	ErrMissingToken = errors.New("missing api token")
	// ErrInvalidToken ...
	ErrInvalidToken = errors.New("invalid api token")
	// ErrShortSecret ...
	ErrShortSecret = fmt.Errorf("secret must be at least %d bytes", secretSize)
)

// Authority signs and verifies api tokens with its secret.
type Authority struct {
	secret []byte
}

// NewAuthority returns an authority using the given secret.
func NewAuthority(secret []byte) (*Authority, error) {
	if len(secret) < secretSize {
		return nil, ErrShortSecret
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Authority{s}, nil
}

// NewRandomAuthority returns an authority with a fresh random secret. Tokens
// issued by a previous authority are not accepted.
func NewRandomAuthority() (*Authority, error) {
	secret := make([]byte, secretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return &Authority{secret}, nil
}

// NewToken returns a signed token without expiry.
func (a *Authority) NewToken() (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Id:       uuid.New().String(),
		Subject:  subject,
		IssuedAt: time.Now().Unix(),
	})
	return token.SignedString(a.secret)
}

// Verify returns ErrInvalidToken if the token is not signed by this
// authority.
func (a *Authority) Verify(tokenString string) error {
	if len(tokenString) <= 0 {
		return ErrMissingToken
	}

	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf(
					"unexpected signing method %v", token.Header["alg"],
				)
			}
			return a.secret, nil
		},
	)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	if claims.Subject != subject {
		return ErrInvalidToken
	}
	return nil
}

// WriteTokenFile writes the token to the given path, readable by the owner
// only.
func WriteTokenFile(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModeDir|0700); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return err
	}
	// WriteFile keeps the mode of an already existing file.
	return os.Chmod(path, 0600)
}

// ReadTokenFile returns the token written by WriteTokenFile.
func ReadTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
