package ratelimiter

// RateLimiter is the interface implemented by request rate limiting algorithms.
type RateLimiter interface {
	// Allow reports whether a new request may proceed.
	Allow() bool
}
