package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTPGenerator_Generate(t *testing.T) {
	for _, digits := range []int{4, 6, 8} {
		gen := NewOTPGenerator(digits)
		for range 200 {
			otp, err := gen.Generate()
			require.NoError(t, err)
			require.Len(t, otp, digits)
			assert.Regexp(t, `^\d+$`, otp)
		}
	}

	_, err := NewOTPGenerator(0).Generate()
	assert.Error(t, err)
}

func TestSignupOTPMatches(t *testing.T) {
	assert.True(t, signupOTPMatches("012345", "012345"))
	assert.False(t, signupOTPMatches("012345", "12345"))
	assert.False(t, signupOTPMatches("012345", " 012345"))
	assert.False(t, signupOTPMatches("012345", ""))
}

func TestResetOTPMatches(t *testing.T) {
	tests := []struct {
		stored, submitted string
		want              bool
	}{
		{"0427", "0427", true},
		{"0427", "427", true},
		{"0427", " 0427 ", true},
		{"0427", "0428", false},
		{"0427", "", false},
		{"", "", false},
		{"0427", "04x7", false},
		{"0427", "-427", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, resetOTPMatches(tt.stored, tt.submitted), "%q vs %q", tt.stored, tt.submitted)
	}
}
