package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var (
	dummyMu     sync.Mutex
	dummyHashes = map[int][]byte{}
)

// dummyHash returns a throwaway hash generated at cost, built once per cost.
func dummyHash(cost int) []byte {
	dummyMu.Lock()
	defer dummyMu.Unlock()
	h, ok := dummyHashes[cost]
	if !ok {
		var err error
		h, err = bcrypt.GenerateFromPassword([]byte("no-credential"), cost)
		if err != nil {
			h, _ = bcrypt.GenerateFromPassword([]byte("no-credential"), bcrypt.DefaultCost)
		}
		dummyHashes[cost] = h
	}
	return h
}

// VerifyPassword safely compares bcrypt hash and plain password. A nil hash
// never matches, but still pays for one comparison at cost, the cost real
// hashes are generated with, so identities without a credential cannot be
// told apart by response time.
func VerifyPassword(hash *string, plain string, cost int) bool {
	if hash == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash(cost), []byte(plain))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*hash), []byte(plain)) == nil
}

// PasswordFingerprint returns a short digest of a stored hash. Reset tokens
// embed it so they stop verifying once the password changes.
func PasswordFingerprint(hash *string) string {
	if hash == nil {
		return ""
	}
	sum := sha256.Sum256([]byte(*hash))
	return hex.EncodeToString(sum[:8])
}
