package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"confdesk/pkg/logger"
)

// DeviceExtractor identifies the client submitting a request. Check-in
// scanners send an X-Device-ID header; everything else falls back to the
// remote address.
type DeviceExtractor func(r *http.Request) string

func DefaultDeviceExtractor(r *http.Request) string {
	if id := r.Header.Get("X-Device-ID"); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type DeviceRateLimiter struct {
	mu        sync.Mutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	extractor DeviceExtractor
	log       *logger.Logger
	stopCh    chan struct{}
}

func NewDeviceRateLimiter(limit int, window time.Duration, extractor DeviceExtractor, log *logger.Logger) *DeviceRateLimiter {
	limiter := &DeviceRateLimiter{
		requests:  make(map[string][]time.Time),
		limit:     limit,
		window:    window,
		extractor: extractor,
		log:       log,
		stopCh:    make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *DeviceRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for device, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, device)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *DeviceRateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *DeviceRateLimiter) Allow(device string) bool {
	if device == "" {
		return true
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := rl.requests[device][:0]
	for _, ts := range rl.requests[device] {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[device] = valid
		return false
	}

	rl.requests[device] = append(valid, now)
	return true
}

func DeviceRateLimit(limiter *DeviceRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			device := limiter.extractor(r)
			if !limiter.Allow(device) {
				limiter.log.Warn("Rate limit exceeded",
					"request_id", RequestIDFromContext(r.Context()),
					"device", device,
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Too many requests"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
