package core

import "time"

// RateLimitEntry captures per-identifier order submission attempts.
type RateLimitEntry struct {
	Identifier   string    `json:"identifier"`
	Attempts     int       `json:"attempts"`
	WindowStart  time.Time `json:"window_start"`
	LastSeen     time.Time `json:"last_seen"`
	Blocked      bool      `json:"blocked"`
	BlockedUntil time.Time `json:"blocked_until,omitempty"`
}
