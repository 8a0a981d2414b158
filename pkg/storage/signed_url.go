package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken marks a malformed or tampered download token.
	ErrInvalidToken = errors.New("storage: invalid signed token")
	// ErrTokenExpired marks a token whose expiry is in the past.
	ErrTokenExpired = errors.New("storage: signed token expired")
)

// SignedObject is the payload recovered from a verified token.
type SignedObject struct {
	Bucket    string
	Key       string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates signed download tokens.
type SignedURLSigner struct {
	secret []byte
}

// NewSignedURLSigner constructs a signer with the provided secret.
func NewSignedURLSigner(secret string) *SignedURLSigner {
	return &SignedURLSigner{secret: []byte(secret)}
}

// Sign returns a token granting read access to bucket/key until expiresAt.
func (s *SignedURLSigner) Sign(bucket, key string, expiresAt time.Time) (string, error) {
	if bucket == "" || key == "" {
		return "", fmt.Errorf("bucket and key required")
	}
	if len(s.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	encodedBucket := base64.RawURLEncoding.EncodeToString([]byte(bucket))
	encodedKey := base64.RawURLEncoding.EncodeToString([]byte(key))
	exp := strconv.FormatInt(expiresAt.UnixMilli(), 10)
	signature := s.sign(encodedBucket, exp, encodedKey)
	return strings.Join([]string{encodedBucket, exp, encodedKey, signature}, "."), nil
}

// Verify validates a token against now and returns the embedded object reference.
func (s *SignedURLSigner) Verify(token string, now time.Time) (SignedObject, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return SignedObject{}, ErrInvalidToken
	}
	encodedBucket, exp, encodedKey, signature := parts[0], parts[1], parts[2], parts[3]

	expected := s.sign(encodedBucket, exp, encodedKey)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return SignedObject{}, ErrInvalidToken
	}

	expMillis, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return SignedObject{}, ErrInvalidToken
	}
	bucket, err := base64.RawURLEncoding.DecodeString(encodedBucket)
	if err != nil {
		return SignedObject{}, ErrInvalidToken
	}
	key, err := base64.RawURLEncoding.DecodeString(encodedKey)
	if err != nil {
		return SignedObject{}, ErrInvalidToken
	}

	obj := SignedObject{Bucket: string(bucket), Key: string(key), ExpiresAt: time.UnixMilli(expMillis).UTC()}
	if now.After(obj.ExpiresAt) {
		return obj, ErrTokenExpired
	}
	return obj, nil
}

func (s *SignedURLSigner) sign(bucket, exp, key string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(bucket + "|" + exp + "|" + key))
	return hex.EncodeToString(mac.Sum(nil))
}
