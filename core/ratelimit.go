package core

import (
	"net/http"
	"strconv"
	"time"
)

// RateLimit holds the service's rate-limit introspection headers.
// Zero values mean the header was absent or unparseable.
type RateLimit struct {
	Limit     int       // x-ratelimit-limit
	Remaining int       // x-ratelimit-remaining
	Reset     time.Time // x-ratelimit-reset, unix seconds
}

// parseRateLimit reads the x-ratelimit-* headers from a response.
func parseRateLimit(header http.Header) RateLimit {
	var rl RateLimit
	if v, err := strconv.Atoi(header.Get("x-ratelimit-limit")); err == nil {
		rl.Limit = v
	}
	if v, err := strconv.Atoi(header.Get("x-ratelimit-remaining")); err == nil {
		rl.Remaining = v
	}
	if v, err := strconv.ParseInt(header.Get("x-ratelimit-reset"), 10, 64); err == nil && v > 0 {
		rl.Reset = time.Unix(v, 0)
	}
	return rl
}
