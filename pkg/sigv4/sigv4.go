// Package sigv4 derives AWS Signature Version 4 signing keys and signs
// POST policy documents with them.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

const (
	Algorithm  = "AWS4-HMAC-SHA256"
	Terminator = "aws4_request"

	// DateStampFormat is the YYYYMMDD layout used in credential scopes.
	DateStampFormat = "20060102"
	// AmzDateFormat is the layout of the x-amz-date form field.
	AmzDateFormat = "20060102T150405Z"
)

var (
	ErrMissingSecret    = errors.New("sigv4: secret access key is not configured")
	ErrInvalidDateStamp = errors.New("sigv4: date stamp must be YYYYMMDD")
)

// Scope narrows a signing key to one date, region and service.
type Scope struct {
	DateStamp string
	Region    string
	Service   string
}

// NewScope builds a scope for the UTC day containing t.
func NewScope(t time.Time, region, service string) Scope {
	return Scope{DateStamp: t.UTC().Format(DateStampFormat), Region: region, Service: service}
}

// Credential returns the x-amz-credential value for accessKeyID.
func (s Scope) Credential(accessKeyID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", accessKeyID, s.DateStamp, s.Region, s.Service, Terminator)
}

// AmzDate returns the x-amz-date value at midnight of the scope's day.
func (s Scope) AmzDate() string {
	return s.DateStamp + "T000000Z"
}

func (s Scope) validate() error {
	if _, err := time.Parse(DateStampFormat, s.DateStamp); err != nil || len(s.DateStamp) != 8 {
		return fmt.Errorf("%w: %q", ErrInvalidDateStamp, s.DateStamp)
	}
	return nil
}

// DeriveSigningKey runs the four step HMAC chain
// secret -> date -> region -> service -> "aws4_request".
// The returned key is 32 bytes and must not be persisted.
func DeriveSigningKey(secret string, scope Scope) ([]byte, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if err := scope.validate(); err != nil {
		return nil, err
	}
	kDate := hmacSHA256([]byte("AWS4"+secret), scope.DateStamp)
	kRegion := hmacSHA256(kDate, scope.Region)
	kService := hmacSHA256(kRegion, scope.Service)
	return hmacSHA256(kService, Terminator), nil
}

// Sign returns the lower-case hex HMAC-SHA256 of payload.
func Sign(key []byte, payload string) string {
	return hex.EncodeToString(hmacSHA256(key, payload))
}

// Verify reports whether signature is the signature of payload under key.
func Verify(key []byte, payload, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, hmacSHA256(key, payload))
}

// SignPolicy derives the scoped key and signs a base64 encoded policy.
func SignPolicy(secret string, scope Scope, base64Policy string) (string, error) {
	key, err := DeriveSigningKey(secret, scope)
	if err != nil {
		return "", err
	}
	return Sign(key, base64Policy), nil
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
