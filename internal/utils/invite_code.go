package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/yukikurage/tenant-onboarding/internal/constants"
)

var alphabetSize = big.NewInt(int64(len(constants.InviteCodeAlphabet)))

// GenerateInviteCode generates an 8-character invite code drawn uniformly from [A-Z0-9].
func GenerateInviteCode() (string, error) {
	code := make([]byte, constants.InviteCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to generate random index: %w", err)
		}
		code[i] = constants.InviteCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// IsInviteCodeShape reports whether code has the length and alphabet of a generated invite code.
func IsInviteCodeShape(code string) bool {
	if len(code) != constants.InviteCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
