package circuitbreaker

import "time"

// Config holds the tunables of one breaker.
type Config struct {
	// FailureThreshold is the consecutive failure count that trips the
	// breaker from closed to open.
	FailureThreshold uint32

	// OpenDuration is how long the breaker stays open before the next
	// call is allowed through as a half-open trial.
	OpenDuration time.Duration

	// HalfOpenTrials is the maximum number of calls allowed while
	// half-open. Calls beyond the quota are rejected as if open.
	HalfOpenTrials uint32

	// Window is the rolling interval over which closed-state counts are
	// accumulated before being cleared. Zero keeps counts forever.
	Window time.Duration

	// FailureRatio additionally trips the breaker when at least
	// MinRequests calls have been observed in the window and the failure
	// share reaches this ratio. Zero disables ratio tripping.
	FailureRatio float64

	// MinRequests is the minimum sample size before FailureRatio applies.
	MinRequests uint32
}

// Validate reports the first invalid field, or nil.
func (c Config) Validate() error {
	if c.FailureThreshold == 0 {
		return ErrInvalidFailureThreshold
	}

	if c.OpenDuration <= 0 {
		return ErrInvalidOpenDuration
	}

	if c.HalfOpenTrials == 0 {
		return ErrInvalidHalfOpenTrials
	}

	if c.FailureRatio < 0 || c.FailureRatio > 1 {
		return ErrInvalidFailureRatio
	}

	return nil
}

// DefaultConfig provides balanced settings for most services.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		OpenDuration:     30 * time.Second,
		HalfOpenTrials:   3,
		Window:           2 * time.Minute,
		FailureRatio:     0.5,
		MinRequests:      10,
	}
}

// AggressiveConfig for services requiring fast failure detection.
func AggressiveConfig() Config {
	return Config{
		FailureThreshold: 3,
		OpenDuration:     10 * time.Second,
		HalfOpenTrials:   2,
		Window:           time.Minute,
		FailureRatio:     0.4,
		MinRequests:      5,
	}
}

// ConservativeConfig for services that should tolerate more failures.
func ConservativeConfig() Config {
	return Config{
		FailureThreshold: 15,
		OpenDuration:     time.Minute,
		HalfOpenTrials:   5,
		Window:           5 * time.Minute,
		FailureRatio:     0.6,
		MinRequests:      20,
	}
}

// DatabaseConfig is tolerant of transient connection noise. Databases are
// expected to be stable, so a short blip should not trip the breaker.
func DatabaseConfig() Config {
	return Config{
		FailureThreshold: 10,
		OpenDuration:     45 * time.Second,
		HalfOpenTrials:   5,
		Window:           3 * time.Minute,
		FailureRatio:     0.6,
		MinRequests:      15,
	}
}

// RedisConfig trips quickly. Cache misses are cheap to absorb through
// fallbacks, so failing fast is preferable to queueing on a dead cache.
func RedisConfig() Config {
	return Config{
		FailureThreshold: 3,
		OpenDuration:     15 * time.Second,
		HalfOpenTrials:   2,
		Window:           time.Minute,
		FailureRatio:     0.4,
		MinRequests:      5,
	}
}

// HTTPServiceConfig is tuned for external HTTP APIs.
func HTTPServiceConfig() Config {
	return Config{
		FailureThreshold: 5,
		OpenDuration:     30 * time.Second,
		HalfOpenTrials:   3,
		Window:           2 * time.Minute,
		FailureRatio:     0.5,
		MinRequests:      10,
	}
}
