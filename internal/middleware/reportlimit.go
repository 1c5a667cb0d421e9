package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"civic-reporting-api/internal/apperr"
	"civic-reporting-api/internal/auth"
	"civic-reporting-api/internal/logger"
)

// ReportCounter counts problem reports per user per UTC day.
type ReportCounter interface {
	// Increment records one report and returns the day's total so far.
	Increment(ctx context.Context, userID string, day time.Time) (int64, error)
}

func reportKey(userID string, day time.Time) string {
	return fmt.Sprintf("reports:%s:%s", userID, day.UTC().Format("2006-01-02"))
}

// RedisReportCounter keeps counters in Redis so every instance shares them.
type RedisReportCounter struct {
	client    *redis.Client
	namespace string
}

func NewRedisReportCounter(client *redis.Client, namespace string) *RedisReportCounter {
	return &RedisReportCounter{client: client, namespace: namespace}
}

func (c *RedisReportCounter) Increment(ctx context.Context, userID string, day time.Time) (int64, error) {
	key := c.namespace + reportKey(userID, day)
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 25*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// MemoryReportCounter is a single-process ReportCounter.
type MemoryReportCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	day    string
}

func NewMemoryReportCounter() *MemoryReportCounter {
	return &MemoryReportCounter{counts: make(map[string]int64)}
}

func (c *MemoryReportCounter) Increment(_ context.Context, userID string, day time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Counters only ever cover the current day.
	if d := day.UTC().Format("2006-01-02"); d != c.day {
		c.day = d
		clear(c.counts)
	}
	key := reportKey(userID, day)
	c.counts[key]++
	return c.counts[key], nil
}

// ReportLimit caps how many problems an authenticated user may report per
// day. Counter failures let the request through. A limit of zero or less
// disables the check.
func ReportLimit(counter ReportCounter, limit int, l *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			count, err := counter.Increment(r.Context(), p.UserID, time.Now())
			if err != nil {
				logger.FromContext(r.Context(), l).WithError(err).Warn("report counter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-Report-Limit", strconv.Itoa(limit))
			w.Header().Set("X-Report-Remaining", strconv.FormatInt(max(int64(limit)-count, 0), 10))
			if count > int64(limit) {
				writeError(w, apperr.RateLimited("daily report limit reached"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
