package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/qatech/internal/config"
)

const (
	keyLogin = "ratelimit:login:%s:%s"
	keyOTP   = "ratelimit:otp:%s"
)

// AuthLimiter throttles credential endpoints. A nil limiter allows everything.
type AuthLimiter struct {
	bucket *TokenBucket

	loginRate  float64
	loginBurst int
	otpRate    float64
	otpBurst   int
}

func NewAuthLimiter(cfg config.Config, client *redis.Client) *AuthLimiter {
	bucket := NewTokenBucket(client)
	if bucket == nil {
		return nil
	}
	limits := cfg.RateLimit
	return &AuthLimiter{
		bucket:     bucket,
		loginRate:  limits.LoginRate,
		loginBurst: limits.LoginBurst,
		otpRate:    limits.OTPRate,
		otpBurst:   limits.OTPBurst,
	}
}

func (l *AuthLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowLogin limits attempts per (email, client ip).
func (l *AuthLimiter) AllowLogin(ctx context.Context, email, ip string) (*RateLimitResult, error) {
	if !l.Enabled() || l.loginRate <= 0 || l.loginBurst <= 0 {
		return &RateLimitResult{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyLogin, normalize(email), strings.TrimSpace(ip))
	return l.bucket.Allow(ctx, key, l.loginRate, l.loginBurst)
}

// AllowOTP limits OTP requests per email.
func (l *AuthLimiter) AllowOTP(ctx context.Context, email string) (*RateLimitResult, error) {
	if !l.Enabled() || l.otpRate <= 0 || l.otpBurst <= 0 {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyOTP, normalize(email)), l.otpRate, l.otpBurst)
}

// LockTTL is the lease used for per-order payment locks.
func LockTTL(cfg config.Config) time.Duration {
	if cfg.RateLimit.LockTTLSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(cfg.RateLimit.LockTTLSec) * time.Second
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
