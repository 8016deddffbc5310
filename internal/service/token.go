package service

import (
	"crypto/rand"
	"log"
	mathrand "math/rand/v2"
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// TokenGenerator produces the opaque secret issued once per guest request.
// Any fixed-length alphanumeric generator satisfies the contract.
type TokenGenerator func(length int) string

// GenerateSecretToken draws from crypto/rand, falling back to math/rand if
// the system source is unavailable; collision probability is negligible at
// campus scale either way.
func GenerateSecretToken(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		log.Printf("token: crypto/rand unavailable (%v), falling back to math/rand", err)
		for i := range buf {
			buf[i] = tokenAlphabet[mathrand.IntN(len(tokenAlphabet))]
		}
		return string(buf)
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf)
}
