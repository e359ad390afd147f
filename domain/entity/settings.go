package entity

import "fmt"

// Settings holds the tunables the Dispatch Engine and Target Manager read
// fresh on every dispatch (§3, §6.2).
type Settings struct {
	TargetRotationRequestCount int
	MaxFailureCount            int
	RateLimitCooldownSeconds   int
	MaxRetries                 int
	FailoverDelaySeconds       int
	LogRetentionDays           int
}

// DefaultSettings returns the bounds-conformant defaults used when no
// settings row exists yet.
func DefaultSettings() *Settings {
	return &Settings{
		TargetRotationRequestCount: 10,
		MaxFailureCount:            5,
		RateLimitCooldownSeconds:   60,
		MaxRetries:                 3,
		FailoverDelaySeconds:       2,
		LogRetentionDays:           30,
	}
}

// Validate enforces the ranges given in §3.
func (s *Settings) Validate() error {
	if s.TargetRotationRequestCount < 1 || s.TargetRotationRequestCount > 100 {
		return fmt.Errorf("targetRotationRequestCount must be in [1,100], got %d", s.TargetRotationRequestCount)
	}
	if s.MaxFailureCount < 1 || s.MaxFailureCount > 1000 {
		return fmt.Errorf("maxFailureCount must be in [1,1000], got %d", s.MaxFailureCount)
	}
	if s.RateLimitCooldownSeconds < 10 || s.RateLimitCooldownSeconds > 3600 {
		return fmt.Errorf("rateLimitCooldown must be in [10,3600] seconds, got %d", s.RateLimitCooldownSeconds)
	}
	if s.MaxRetries < 0 || s.MaxRetries > 10 {
		return fmt.Errorf("maxRetries must be in [0,10], got %d", s.MaxRetries)
	}
	if s.FailoverDelaySeconds < 0 || s.FailoverDelaySeconds > 60 {
		return fmt.Errorf("failoverDelaySeconds must be in [0,60], got %d", s.FailoverDelaySeconds)
	}
	if s.LogRetentionDays < 1 || s.LogRetentionDays > 90 {
		return fmt.Errorf("logRetentionDays must be in [1,90], got %d", s.LogRetentionDays)
	}
	return nil
}
