package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/qatech/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/qatech/internal/observability/metrics"
	"github.com/smallbiznis/qatech/internal/ratelimit"
	"go.uber.org/zap"
)

type rateLimitKind string

const (
	rateLimitLogin rateLimitKind = "login"
	rateLimitOTP   rateLimitKind = "otp"

	rateLimitReasonLogin = "login-rate"
	rateLimitReasonOTP   = "otp-rate"
)

type authRateLimitKey struct {
	Email string `json:"email"`
}

// AuthRateLimit throttles credential endpoints by the email in the JSON body.
// Redis outages fail open.
func (s *Server) AuthRateLimit(kind rateLimitKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.authLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		email, err := readAuthRateLimitKey(c)
		if err != nil {
			logger.FromContext(ctx).Warn("auth rate limit read body failed", zap.Error(err))
			AbortWithError(c, invalidRequestError())
			return
		}

		var (
			result *ratelimit.RateLimitResult
			reason string
		)
		switch kind {
		case rateLimitOTP:
			reason = rateLimitReasonOTP
			result, err = s.authLimiter.AllowOTP(ctx, email)
		default:
			reason = rateLimitReasonLogin
			result, err = s.authLimiter.AllowLogin(ctx, email, c.ClientIP())
		}
		if err != nil {
			logger.FromContext(ctx).Warn("auth rate limit check failed", zap.String("endpoint", endpoint), zap.Error(err))
			c.Next()
			return
		}
		if result != nil && !result.Allowed {
			denyAuthRateLimit(c, endpoint, reason, result, s.obsMetrics)
			return
		}

		recordRateLimitAllowed(ctx, endpoint, s.obsMetrics)
		c.Next()
	}
}

func denyAuthRateLimit(c *gin.Context, endpoint, reason string, result *ratelimit.RateLimitResult, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("auth rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, reason, metrics)

	c.Header("Retry-After", retryAfterSeconds(result.RetryAfter))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int64(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.FormatInt(seconds, 10)
}

func recordRateLimitAllowed(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}

func readAuthRateLimitKey(c *gin.Context) (string, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return "", nil
	}

	var payload authRateLimitKey
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(payload.Email)), nil
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
