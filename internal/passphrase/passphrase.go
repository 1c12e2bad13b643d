// Package passphrase generates the human-shareable credential for a secret
// and verifies presented credentials against the stored hash. Only the
// bcrypt hash is ever persisted; the plaintext passphrase is returned to the
// creator exactly once and never logged.
package passphrase

import (
	"fmt"
	"strings"

	bip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/bcrypt"
)

// WordCount is the number of BIP39 words joined into a passphrase. Three
// words from the 2048-word list give roughly 33 bits of entropy, which the
// access policy's bounded online-guess budget is sized for.
const WordCount = 3

// Generate returns a fresh passphrase of WordCount BIP39 words joined by '-'.
func Generate() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", fmt.Errorf("passphrase entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("passphrase mnemonic: %w", err)
	}
	words := strings.Fields(mnemonic)
	return strings.Join(words[:WordCount], "-"), nil
}

// Hash derives the storable credential from a passphrase.
func Hash(pass string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash passphrase: %w", err)
	}
	return string(h), nil
}

// Verify reports whether presented matches the stored credential hash.
// bcrypt performs the comparison in constant time. No side effects.
func Verify(presented, credentialHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(credentialHash), []byte(presented)) == nil
}
