package security

import (
	"testing"
	"time"

	"github.com/lexops/privguard/internal/config"
)

func limiterConfig(enabled bool, perMin, burst int) *config.SecurityConfig {
	cfg := &config.SecurityConfig{}
	cfg.RateLimit.Enabled = enabled
	cfg.RateLimit.RequestsPerMin = perMin
	cfg.RateLimit.Burst = burst
	return cfg
}

func TestRateLimiter(t *testing.T) {
	t.Run("DisabledAllowsEverything", func(t *testing.T) {
		rl := NewRateLimiter(limiterConfig(false, 1, 1))
		for i := 0; i < 100; i++ {
			if !rl.Allow("10.0.0.1") {
				t.Fatal("disabled limiter rejected a request")
			}
		}
	})

	t.Run("BurstThenThrottle", func(t *testing.T) {
		rl := NewRateLimiter(limiterConfig(true, 60, 3))
		for i := 0; i < 3; i++ {
			if !rl.Allow("10.0.0.1") {
				t.Fatalf("request %d within burst rejected", i)
			}
		}
		if rl.Allow("10.0.0.1") {
			t.Fatal("request beyond burst allowed")
		}
	})

	t.Run("ClientsIndependent", func(t *testing.T) {
		rl := NewRateLimiter(limiterConfig(true, 60, 1))
		if !rl.Allow("10.0.0.1") {
			t.Fatal("first client rejected")
		}
		if !rl.Allow("10.0.0.2") {
			t.Fatal("second client throttled by first client's usage")
		}
	})

	t.Run("CleanupStale", func(t *testing.T) {
		rl := NewRateLimiter(limiterConfig(true, 60, 1))
		rl.Allow("10.0.0.1")
		rl.Allow("10.0.0.2")

		time.Sleep(2 * time.Millisecond)
		removed := rl.CleanupStale(time.Millisecond)
		if removed != 2 {
			t.Fatalf("expected 2 removed, got %d", removed)
		}
		if rl.CleanupStale(time.Millisecond) != 0 {
			t.Fatal("second cleanup should remove nothing")
		}
	})
}
