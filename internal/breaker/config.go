// Package breaker protects calls to unreliable backends with a
// closed/open/half-open circuit breaker and a per-name breaker registry.
package breaker

import (
	"errors"
	"time"
)

// Default thresholds.
const (
	DefaultFailureThreshold    = 5
	DefaultSuccessThreshold    = 2
	DefaultTimeout             = 30 * time.Second
	DefaultResetTimeout        = 60 * time.Second
	DefaultHalfOpenMaxRequests = 1

	// halfOpenRetryAfter is the retry hint for rejections while half-open probes are in flight.
	halfOpenRetryAfter = 5
)

var (
	ErrInvalidFailureThreshold = errors.New("failure_threshold must be positive")
	ErrInvalidSuccessThreshold = errors.New("success_threshold must be positive")
	ErrInvalidTimeout          = errors.New("timeout must be positive")
	ErrInvalidResetTimeout     = errors.New("reset_timeout must be positive")
	ErrInvalidHalfOpenRequests = errors.New("half_open_max_requests must be positive")
)

// Config holds breaker thresholds.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens a closed circuit.
	FailureThreshold int `json:"failure_threshold"`

	// SuccessThreshold is the number of half-open successes that closes the circuit.
	SuccessThreshold int `json:"success_threshold"`

	// Timeout bounds each protected call.
	Timeout time.Duration `json:"timeout"`

	// ResetTimeout is how long the circuit stays open before admitting a probe.
	ResetTimeout time.Duration `json:"reset_timeout"`

	// HalfOpenMaxRequests caps concurrent probes while half-open.
	HalfOpenMaxRequests int `json:"half_open_max_requests"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:    DefaultFailureThreshold,
		SuccessThreshold:    DefaultSuccessThreshold,
		Timeout:             DefaultTimeout,
		ResetTimeout:        DefaultResetTimeout,
		HalfOpenMaxRequests: DefaultHalfOpenMaxRequests,
	}
}

// Validate checks that every threshold is positive.
func (c Config) Validate() error {
	switch {
	case c.FailureThreshold <= 0:
		return ErrInvalidFailureThreshold
	case c.SuccessThreshold <= 0:
		return ErrInvalidSuccessThreshold
	case c.Timeout <= 0:
		return ErrInvalidTimeout
	case c.ResetTimeout <= 0:
		return ErrInvalidResetTimeout
	case c.HalfOpenMaxRequests <= 0:
		return ErrInvalidHalfOpenRequests
	}
	return nil
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.ResetTimeout == 0 {
		c.ResetTimeout = d.ResetTimeout
	}
	if c.HalfOpenMaxRequests == 0 {
		c.HalfOpenMaxRequests = d.HalfOpenMaxRequests
	}
	return c
}
