package cache

import (
	"time"

	"github.com/lexops/privguard/internal/privacy"
)

// Summary is the cacheable projection of a detection result. It carries the
// same no-raw-values invariant as the audit trail: kinds, counts, and
// keywords only, never spans.
type Summary struct {
	HasSensitiveData bool           `json:"has_sensitive_data"`
	Kinds            []privacy.Kind `json:"kinds,omitempty"`
	SpanCount        int            `json:"span_count"`
	MatchedKeywords  []string       `json:"matched_keywords,omitempty"`
	CachedAt         time.Time      `json:"cached_at"`
}

// SummaryOf projects a detection result into its cacheable form. The matched
// keywords come from a fixed dictionary and carry no user data.
func SummaryOf(result privacy.DetectionResult) Summary {
	return Summary{
		HasSensitiveData: result.HasSensitiveData,
		Kinds:            result.Kinds(),
		SpanCount:        len(result.Spans),
		MatchedKeywords:  result.MatchedKeywords,
		CachedAt:         time.Now().UTC(),
	}
}

// Config contains cache configuration
type Config struct {
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// Stats represents cache performance statistics
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}
