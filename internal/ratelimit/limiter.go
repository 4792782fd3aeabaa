package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit"

// Limiter implements fixed-window request counting per client IP, a cooldown
// per email address and a wrong-code counter per email, all stored in Redis.
type Limiter struct {
	client         *redis.Client
	ipLimit        int
	ipWindow       time.Duration
	emailCooldown  time.Duration
	maxOTPAttempts int
	otpWindow      time.Duration
}

// Limits configures a Limiter. OTPWindow should match the code lifetime so a
// locked code stays locked until it would have expired anyway.
type Limits struct {
	IPLimit        int
	IPWindow       time.Duration
	EmailCooldown  time.Duration
	MaxOTPAttempts int
	OTPWindow      time.Duration
}

func NewLimiter(client *redis.Client, limits Limits) *Limiter {
	return &Limiter{
		client:         client,
		ipLimit:        limits.IPLimit,
		ipWindow:       limits.IPWindow,
		emailCooldown:  limits.EmailCooldown,
		maxOTPAttempts: limits.MaxOTPAttempts,
		otpWindow:      limits.OTPWindow,
	}
}

// CheckIPRateLimitWithPurpose reports whether ip used up its window for purpose.
func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	count, err := l.client.Get(ctx, ipKey(purpose, ip)).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read ip counter: %w", err)
	}
	return count >= l.ipLimit, nil
}

// RecordIPRequestWithPurpose counts one request. The window starts with the
// first request and is not extended by later ones.
func (l *Limiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	key := ipKey(purpose, ip)

	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.ipWindow)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record ip request: %w", err)
	}
	return nil
}

// CheckEmailCooldown reports whether a code was mailed to email too recently.
func (l *Limiter) CheckEmailCooldown(ctx context.Context, purpose, email string) (bool, error) {
	n, err := l.client.Exists(ctx, cooldownKey(purpose, email)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check email cooldown: %w", err)
	}
	return n > 0, nil
}

// SetEmailCooldown starts the cooldown for email.
func (l *Limiter) SetEmailCooldown(ctx context.Context, purpose, email string) error {
	if err := l.client.Set(ctx, cooldownKey(purpose, email), 1, l.emailCooldown).Err(); err != nil {
		return fmt.Errorf("failed to set email cooldown: %w", err)
	}
	return nil
}

// CheckOTPAttempts reports whether email used up its wrong guesses for purpose.
func (l *Limiter) CheckOTPAttempts(ctx context.Context, purpose, email string) (bool, error) {
	count, err := l.client.Get(ctx, attemptsKey(purpose, email)).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read otp attempts: %w", err)
	}
	return count >= l.maxOTPAttempts, nil
}

// RecordOTPFailure counts one wrong code. The window starts with the first miss.
func (l *Limiter) RecordOTPFailure(ctx context.Context, purpose, email string) error {
	key := attemptsKey(purpose, email)

	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.otpWindow)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record otp failure: %w", err)
	}
	return nil
}

// ClearOTPAttempts resets the counter, after a successful check or a new code.
func (l *Limiter) ClearOTPAttempts(ctx context.Context, purpose, email string) error {
	if err := l.client.Del(ctx, attemptsKey(purpose, email)).Err(); err != nil {
		return fmt.Errorf("failed to clear otp attempts: %w", err)
	}
	return nil
}

func ipKey(purpose, ip string) string {
	return fmt.Sprintf("%s:ip:%s:%s", keyPrefix, purpose, ip)
}

func cooldownKey(purpose, email string) string {
	return fmt.Sprintf("%s:cooldown:%s:%s", keyPrefix, purpose, normalizeEmail(email))
}

func attemptsKey(purpose, email string) string {
	return fmt.Sprintf("%s:otp_attempts:%s:%s", keyPrefix, purpose, normalizeEmail(email))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
