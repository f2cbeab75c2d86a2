package redemptions

import (
	"crypto/rand"
	"fmt"
)

const (
	// CodePrefix starts every redemption code.
	CodePrefix = "RL-"
	// codeAlphabet excludes visually ambiguous characters (0/O, 1/I) so codes
	// stay easy to read back over a counter. 32 symbols, so random bytes map
	// without modulo bias.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// GenerateCode produces a human-typeable redemption code of the form
// RL-XXXXXX. Uniqueness is enforced by a collision check against the store,
// not by the generator.
func GenerateCode() (string, error) {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return CodePrefix + string(b), nil
}
