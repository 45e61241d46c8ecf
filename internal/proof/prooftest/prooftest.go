// Package prooftest solves gate challenges the way the challenge page does,
// for tests that drive the gate end to end.
package prooftest

import (
	"strconv"

	"linkgate/internal/proof"
)

// Solve searches decimal nonces from zero and returns the first that
// satisfies difficulty. ok is false when maxTries is exhausted.
func Solve(material string, difficulty int, maxTries int) (nonce string, ok bool) {
	for i := 0; i < maxTries; i++ {
		candidate := strconv.Itoa(i)
		if proof.VerifyWork(material, candidate, difficulty) {
			return candidate, true
		}
	}
	return "", false
}
