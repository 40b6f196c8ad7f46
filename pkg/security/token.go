package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// TokenBytes is the entropy of a signing link token.
const TokenBytes = 32

// NewToken returns a hex-encoded random token with TokenBytes of entropy.
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewDocumentID returns an audit identifier of the form AGR-YYYYMMDD-XXXXXXXX.
func NewDocumentID(now time.Time) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate document id: %w", err)
	}
	return fmt.Sprintf("AGR-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(b))), nil
}

// SHA256Hex returns the hex sha256 digest of b.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
