package relay

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tokenLength   = 8
)

// GenerateToken produces an 8-character session token drawn uniformly from
// [A-Z0-9]. No uniqueness check is made against existing sessions; with
// ~41 bits of entropy and a 24h validity window collisions are negligible.
func GenerateToken() (string, error) {
	max := big.NewInt(int64(len(tokenAlphabet)))
	buf := make([]byte, tokenLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		buf[i] = tokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}
