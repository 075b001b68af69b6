package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

// ResetTokenTTL is how long a password reset token stays usable.
const ResetTokenTTL = 5 * time.Minute

const resetTokenBytes = 20

// ResetToken is a freshly issued password reset token. Raw goes to the user;
// only Hash and Expiry are stored.
type ResetToken struct {
	Raw    string
	Hash   string
	Expiry time.Time
}

// IssueResetToken generates a random token that expires ResetTokenTTL after now.
func IssueResetToken(now time.Time) (ResetToken, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return ResetToken{}, fmt.Errorf("generate reset token: %w", err)
	}
	raw := hex.EncodeToString(buf)
	return ResetToken{
		Raw:    raw,
		Hash:   HashResetToken(raw),
		Expiry: now.Add(ResetTokenTTL),
	}, nil
}

// HashResetToken returns the hex SHA-256 digest stored for raw.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ConsumeResetToken reports whether raw matches storedHash and now is not
// past expiry.
func ConsumeResetToken(raw, storedHash string, expiry, now time.Time) bool {
	if storedHash == "" || now.After(expiry) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashResetToken(raw)), []byte(storedHash)) == 1
}
