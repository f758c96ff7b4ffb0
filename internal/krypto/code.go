package krypto

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeLen is the number of digits in a verification code.
const CodeLen = 6

// GenerateCode creates a random decimal code of n digits, zero padded.
// The value is drawn uniformly with crypto/rand, so shorter codes are
// just as likely as longer ones and there is no modulo bias.
func GenerateCode(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid code length %d", n)
	}

	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	return fmt.Sprintf("%0*d", n, v), nil
}
