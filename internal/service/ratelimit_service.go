package service

import (
	"sync"
	"time"

	"videorelay/internal/model"
	"videorelay/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// idleTTL is how long an IP may stay quiet before its limiter is dropped
const idleTTL = 2 * time.Hour

// rateLimitEntry tracks the token bucket of one IP
type rateLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitService applies a per-IP token bucket
type RateLimitService struct {
	cfg      *model.RateLimitConfig
	limits   map[string]*rateLimitEntry
	mu       sync.Mutex
	quitChan chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(cfg *model.RateLimitConfig) *RateLimitService {
	service := &RateLimitService{
		cfg:      cfg,
		limits:   make(map[string]*rateLimitEntry),
		quitChan: make(chan struct{}),
		now:      time.Now,
	}

	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go service.cleanupRoutine()
	}

	return service
}

func (rls *RateLimitService) entry(ip string) *rateLimitEntry {
	entry, exists := rls.limits[ip]
	if !exists {
		perSecond := rate.Limit(float64(rls.cfg.RequestsPerMinute) / 60)
		burst := rls.cfg.BurstSize
		if burst <= 0 {
			burst = 1
		}
		entry = &rateLimitEntry{limiter: rate.NewLimiter(perSecond, burst)}
		rls.limits[ip] = entry
		logger.Logger.Debug("New rate limit entry created", zap.String("ip", ip))
	}
	entry.lastSeen = rls.now()
	return entry
}

// IsAllowed takes one token from the bucket of ip
func (rls *RateLimitService) IsAllowed(ip string) bool {
	if !rls.cfg.Enabled {
		return true
	}

	rls.mu.Lock()
	defer rls.mu.Unlock()

	entry := rls.entry(ip)
	if !entry.limiter.AllowN(rls.now(), 1) {
		logger.Logger.Warn("Rate limit exceeded",
			zap.String("ip", ip),
			zap.Int("requests_per_minute", rls.cfg.RequestsPerMinute),
			zap.Int("burst", rls.cfg.BurstSize))
		return false
	}
	return true
}

// GetRemaining returns the whole tokens left for ip, -1 when disabled
func (rls *RateLimitService) GetRemaining(ip string) int {
	if !rls.cfg.Enabled {
		return -1
	}

	rls.mu.Lock()
	defer rls.mu.Unlock()

	entry, exists := rls.limits[ip]
	if !exists {
		return rls.cfg.BurstSize
	}
	remaining := int(entry.limiter.TokensAt(rls.now()))
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (rls *RateLimitService) cleanupRoutine() {
	ticker := time.NewTicker(time.Duration(rls.cfg.CleanupInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-rls.quitChan:
			logger.Logger.Info("Rate limit service stopped")
			return
		case <-ticker.C:
			rls.cleanup()
		}
	}
}

// cleanup drops limiters of IPs idle for longer than idleTTL
func (rls *RateLimitService) cleanup() int {
	rls.mu.Lock()
	defer rls.mu.Unlock()

	now := rls.now()
	removed := 0
	for ip, entry := range rls.limits {
		if now.Sub(entry.lastSeen) > idleTTL {
			delete(rls.limits, ip)
			removed++
		}
	}

	if removed > 0 {
		logger.Logger.Debug("Rate limit entries cleaned up", zap.Int("removed", removed), zap.Int("remaining", len(rls.limits)))
	}
	return removed
}

// Stop stops the rate limit service
func (rls *RateLimitService) Stop() {
	rls.stopOnce.Do(func() { close(rls.quitChan) })
}
