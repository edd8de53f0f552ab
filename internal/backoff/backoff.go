package backoff

import "time"

// Policy computes retry delays as capped binary exponential backoff:
// Delay(n) = min(Base * 2^n, Cap). It is pure and safe for concurrent use.
type Policy struct {
	Base time.Duration
	Cap  time.Duration
}

// Reconnect is the policy for push-channel reconnection attempts.
var Reconnect = Policy{Base: time.Second, Cap: 30 * time.Second}

// Request is the policy for generic HTTP request retries.
var Request = Policy{Base: time.Second, Cap: 16 * time.Second}

// Delay returns the wait before attempt n (n >= 0). Negative attempts are
// treated as 0. The result is non-decreasing in n and never exceeds Cap.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// 2^attempt overflows a Duration long before attempt reaches 63;
	// anything past the cap's doubling range is just the cap.
	if attempt >= 63 {
		return p.Cap
	}

	d := p.Base << uint(attempt)
	if d <= 0 || d > p.Cap {
		return p.Cap
	}
	return d
}
