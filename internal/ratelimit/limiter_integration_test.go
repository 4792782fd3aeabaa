//go:build integration

package ratelimit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var redisAddr string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		panic(err)
	}
	redisAddr = fmt.Sprintf("%s:%s", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func newIntegrationLimiter(t *testing.T, limits Limits) *Limiter {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return NewLimiter(client, limits)
}

func TestLimiter_IPWindow(t *testing.T) {
	ctx := context.Background()
	l := newIntegrationLimiter(t, Limits{IPLimit: 3, IPWindow: time.Second, EmailCooldown: time.Minute, MaxOTPAttempts: 3, OTPWindow: time.Minute})

	for range 3 {
		exceeded, err := l.CheckIPRateLimitWithPurpose(ctx, "203.0.113.5", "login")
		require.NoError(t, err)
		require.False(t, exceeded)
		require.NoError(t, l.RecordIPRequestWithPurpose(ctx, "203.0.113.5", "login"))
	}

	exceeded, err := l.CheckIPRateLimitWithPurpose(ctx, "203.0.113.5", "login")
	require.NoError(t, err)
	assert.True(t, exceeded)

	// Windows are per purpose.
	exceeded, err = l.CheckIPRateLimitWithPurpose(ctx, "203.0.113.5", "signup")
	require.NoError(t, err)
	assert.False(t, exceeded)

	assert.Eventually(t, func() bool {
		exceeded, err := l.CheckIPRateLimitWithPurpose(ctx, "203.0.113.5", "login")
		return err == nil && !exceeded
	}, 3*time.Second, 100*time.Millisecond)
}

func TestLimiter_EmailCooldown(t *testing.T) {
	ctx := context.Background()
	l := newIntegrationLimiter(t, Limits{IPLimit: 3, IPWindow: time.Minute, EmailCooldown: time.Second, MaxOTPAttempts: 3, OTPWindow: time.Minute})

	onCooldown, err := l.CheckEmailCooldown(ctx, "reset_otp", "ana@x.com")
	require.NoError(t, err)
	assert.False(t, onCooldown)

	require.NoError(t, l.SetEmailCooldown(ctx, "reset_otp", "ana@x.com"))

	onCooldown, err = l.CheckEmailCooldown(ctx, "reset_otp", "ANA@x.com")
	require.NoError(t, err)
	assert.True(t, onCooldown)

	onCooldown, err = l.CheckEmailCooldown(ctx, "signup_otp", "ana@x.com")
	require.NoError(t, err)
	assert.False(t, onCooldown)

	assert.Eventually(t, func() bool {
		onCooldown, err := l.CheckEmailCooldown(ctx, "reset_otp", "ana@x.com")
		return err == nil && !onCooldown
	}, 3*time.Second, 100*time.Millisecond)
}

func TestLimiter_OTPAttempts(t *testing.T) {
	ctx := context.Background()
	l := newIntegrationLimiter(t, Limits{IPLimit: 10, IPWindow: time.Minute, EmailCooldown: time.Minute, MaxOTPAttempts: 3, OTPWindow: time.Second})

	for range 3 {
		locked, err := l.CheckOTPAttempts(ctx, "reset_otp", "ana@x.com")
		require.NoError(t, err)
		require.False(t, locked)
		require.NoError(t, l.RecordOTPFailure(ctx, "reset_otp", "Ana@x.com"))
	}

	locked, err := l.CheckOTPAttempts(ctx, "reset_otp", "ana@x.com")
	require.NoError(t, err)
	assert.True(t, locked)

	locked, err = l.CheckOTPAttempts(ctx, "signup_otp", "ana@x.com")
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, l.ClearOTPAttempts(ctx, "reset_otp", "ana@x.com"))
	locked, err = l.CheckOTPAttempts(ctx, "reset_otp", "ana@x.com")
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, l.RecordOTPFailure(ctx, "reset_otp", "ana@x.com"))
	require.NoError(t, l.RecordOTPFailure(ctx, "reset_otp", "ana@x.com"))
	require.NoError(t, l.RecordOTPFailure(ctx, "reset_otp", "ana@x.com"))
	assert.Eventually(t, func() bool {
		locked, err := l.CheckOTPAttempts(ctx, "reset_otp", "ana@x.com")
		return err == nil && !locked
	}, 3*time.Second, 100*time.Millisecond)
}
