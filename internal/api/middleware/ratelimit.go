package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const (
	maxTrackedClients = 10000
	idleClientTTL     = 10 * time.Minute
)

// RateLimit throttles requests per client IP with a token bucket refilled at
// perMinute and holding up to burst tokens. Idle clients are forgotten.
func RateLimit(perMinute, burst int) echo.MiddlewareFunc {
	if perMinute <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if burst <= 0 {
		burst = 1
	}

	var mu sync.Mutex
	clients := expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, idleClientTTL)
	every := rate.Every(time.Minute / time.Duration(perMinute))

	limiterFor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := clients.Get(ip)
		if !ok {
			l = rate.NewLimiter(every, burst)
		}
		// re-adding refreshes the idle expiry
		clients.Add(ip, l)
		return l
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiterFor(c.RealIP()).Allow() {
				c.Response().Header().Set("Retry-After", "60")
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}
