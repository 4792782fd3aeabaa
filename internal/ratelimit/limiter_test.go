package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "ratelimit:ip:login:203.0.113.5", ipKey("login", "203.0.113.5"))
	assert.Equal(t, "ratelimit:cooldown:reset_otp:ana@x.com", cooldownKey("reset_otp", " Ana@X.com "))
	assert.Equal(t, "ratelimit:otp_attempts:signup_otp:ana@x.com", attemptsKey("signup_otp", "ANA@x.com"))
}

func TestLimiter_RedisUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	l := NewLimiter(client, Limits{IPLimit: 3, IPWindow: time.Minute, EmailCooldown: time.Minute, MaxOTPAttempts: 3, OTPWindow: time.Minute})
	ctx := context.Background()

	exceeded, err := l.CheckIPRateLimitWithPurpose(ctx, "203.0.113.5", "login")
	require.Error(t, err)
	assert.False(t, exceeded)

	assert.Error(t, l.RecordIPRequestWithPurpose(ctx, "203.0.113.5", "login"))

	onCooldown, err := l.CheckEmailCooldown(ctx, "signup_otp", "ana@x.com")
	require.Error(t, err)
	assert.False(t, onCooldown)

	locked, err := l.CheckOTPAttempts(ctx, "reset_otp", "ana@x.com")
	require.Error(t, err)
	assert.False(t, locked)
	assert.Error(t, l.RecordOTPFailure(ctx, "reset_otp", "ana@x.com"))
}
