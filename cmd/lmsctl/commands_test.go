package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/lms-auth-api/internal/auth"
	"github.com/redmonkez12/lms-auth-api/internal/user"
)

const testPasetoKey = "0123456789abcdef0123456789abcdef"

func TestTokenInspect(t *testing.T) {
	t.Setenv("AUTH_PASETO_KEY", testPasetoKey)

	tokens, err := auth.NewPasetoService([]byte(testPasetoKey))
	require.NoError(t, err)
	id := uuid.New()
	token, err := tokens.CreateToken(id, user.RoleEducator, time.Hour)
	require.NoError(t, err)

	cmd := newTokenCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"inspect", token})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), id.String())
	assert.Contains(t, out.String(), "educator")
	assert.Contains(t, out.String(), "paseto")
}

func TestTokenInspect_Rejected(t *testing.T) {
	t.Setenv("AUTH_PASETO_KEY", testPasetoKey)

	cmd := newTokenCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"inspect", "v4.local.garbage"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestClaimFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	claims := &auth.TokenClaims{
		UserID:    uuid.New(),
		Role:      user.RoleStudent,
		IssuedAt:  now,
		ExpiresAt: now.Add(7 * 24 * time.Hour),
	}

	fields := claimFields("jwt", claims, now)
	require.Len(t, fields, 6)
	assert.Equal(t, "jwt", fields[0].Value)
	assert.Equal(t, "2026-03-08T12:00:00Z", fields[4].Value)
	assert.Equal(t, "168h0m0s", fields[5].Value)
}

func TestPrintErr(t *testing.T) {
	cmd := &cobra.Command{}
	var errOut bytes.Buffer
	cmd.SetErr(&errOut)

	printErr(cmd, errAborted)
	assert.Equal(t, "Aborted.\n", errOut.String())

	errOut.Reset()
	printErr(cmd, errors.New("connection refused"))
	assert.True(t, strings.Contains(errOut.String(), "Error: connection refused"))
}
