package helpers

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"
)

const resetTokenBytes = 20

// ResetTokenGenerator produces one-time password reset tokens.
// Only the sha256 digest is persisted; it is deterministic so a presented
// token can be looked up by recomputing it.
type ResetTokenGenerator struct {
	ttl time.Duration
	now func() time.Time
}

func NewResetTokenGenerator(ttl time.Duration) *ResetTokenGenerator {
	return &ResetTokenGenerator{ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the generator that reads time from now.
func (g *ResetTokenGenerator) WithClock(now func() time.Time) *ResetTokenGenerator {
	c := *g
	c.now = now
	return &c
}

func (g *ResetTokenGenerator) TTL() time.Duration { return g.ttl }

// Generate returns the plaintext token for the user, its digest, and its expiry.
func (g *ResetTokenGenerator) Generate() (plain, hashed string, expiry time.Time, err error) {
	b := make([]byte, resetTokenBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", time.Time{}, err
	}
	plain = hex.EncodeToString(b)
	return plain, HashResetToken(plain), g.now().Add(g.ttl), nil
}

// Match reports whether candidate hashes to storedHash.
func (g *ResetTokenGenerator) Match(candidate, storedHash string) bool {
	got := HashResetToken(candidate)
	return subtle.ConstantTimeCompare([]byte(got), []byte(storedHash)) == 1
}

// HashResetToken is the deterministic sha256 hex digest of a reset token.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
