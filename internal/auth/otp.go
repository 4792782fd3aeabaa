package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// OTPGenerator produces zero-padded numeric codes of a fixed width.
type OTPGenerator struct {
	Digits int
}

func NewOTPGenerator(digits int) OTPGenerator {
	return OTPGenerator{Digits: digits}
}

// Generate returns a code drawn uniformly from [0, 10^Digits).
func (g OTPGenerator) Generate() (string, error) {
	if g.Digits <= 0 || g.Digits > 18 {
		return "", fmt.Errorf("unsupported otp width %d", g.Digits)
	}

	upper := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(g.Digits)), nil)
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", fmt.Errorf("failed to read random otp: %w", err)
	}

	return fmt.Sprintf("%0*d", g.Digits, n.Int64()), nil
}

// signupOTPMatches is the strict check used for pending signups.
func signupOTPMatches(stored, submitted string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}

// resetOTPMatches is the loose check used for password reset codes: equal
// strings, or both numeric with the same value ("0042" matches 42).
func resetOTPMatches(stored, submitted string) bool {
	a, b := strings.TrimSpace(stored), strings.TrimSpace(submitted)
	if a == "" || b == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1 {
		return true
	}

	x, errA := strconv.ParseUint(a, 10, 64)
	y, errB := strconv.ParseUint(b, 10, 64)
	return errA == nil && errB == nil && x == y
}
