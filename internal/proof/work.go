package proof

import (
	"crypto/sha256"
	"math/bits"
)

// MaxDifficulty is the largest supported difficulty in bits.
const MaxDifficulty = 32

// LeadingZeroBits counts the zero bits at the start of sum.
func LeadingZeroBits(sum []byte) int {
	n := 0
	for _, b := range sum {
		if b != 0 {
			return n + bits.LeadingZeros8(b)
		}
		n += 8
	}
	return n
}

// VerifyWork reports whether SHA-256(material ++ nonce) starts with at least
// difficulty zero bits. It costs a single hash.
func VerifyWork(material, nonce string, difficulty int) bool {
	if difficulty < 1 || difficulty > MaxDifficulty || nonce == "" {
		return false
	}
	sum := sha256.Sum256([]byte(material + nonce))
	return LeadingZeroBits(sum[:]) >= difficulty
}
