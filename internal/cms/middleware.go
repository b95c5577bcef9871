package cms

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		logger.Info("http",
			zap.String("method", context.Request.Method),
			zap.String("path", context.Request.URL.Path),
			zap.Int("status", context.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", context.ClientIP()),
			zap.String("ua", context.Request.UserAgent()),
		)
	}
}

func AdminAuthMiddleware(adminBearerToken string) gin.HandlerFunc {
	return func(context *gin.Context) {
		if adminBearerToken == "" {
			context.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin disabled"})
			return
		}
		authorizationHeader := strings.TrimSpace(context.GetHeader("Authorization"))
		if !strings.HasPrefix(authorizationHeader, "Bearer ") {
			context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer"})
			return
		}
		provided := strings.TrimPrefix(authorizationHeader, "Bearer ")
		if provided != adminBearerToken {
			context.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		context.Next()
	}
}

// ClientRateLimiter throttles the visitor-record endpoint per client address
// so a scripted caller cannot enumerate visitor identifiers quickly.
type ClientRateLimiter struct {
	mutex          sync.Mutex
	limiters       map[string]*rate.Limiter
	requestsPerSec rate.Limit
	burst          int
}

// NewClientRateLimiter builds a limiter allowing requestsPerSecond sustained
// requests with the given burst per client IP.
func NewClientRateLimiter(requestsPerSecond float64, burst int) *ClientRateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &ClientRateLimiter{
		limiters:       make(map[string]*rate.Limiter),
		requestsPerSec: rate.Limit(requestsPerSecond),
		burst:          burst,
	}
}

func (clientLimiter *ClientRateLimiter) limiterFor(clientIP string) *rate.Limiter {
	clientLimiter.mutex.Lock()
	defer clientLimiter.mutex.Unlock()
	limiter, exists := clientLimiter.limiters[clientIP]
	if !exists {
		limiter = rate.NewLimiter(clientLimiter.requestsPerSec, clientLimiter.burst)
		clientLimiter.limiters[clientIP] = limiter
	}
	return limiter
}

// Middleware rejects requests exceeding the per-client budget.
func (clientLimiter *ClientRateLimiter) Middleware() gin.HandlerFunc {
	return func(context *gin.Context) {
		if !clientLimiter.limiterFor(context.ClientIP()).Allow() {
			context.AbortWithStatusJSON(http.StatusTooManyRequests, failureEnvelope("rate limit exceeded"))
			return
		}
		context.Next()
	}
}
