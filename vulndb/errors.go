package vulndb

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrFeedUnavailable marks network failures and 5xx answers. Transient:
	// retried with backoff inside the current cycle.
	ErrFeedUnavailable = errors.New("feed unavailable")
	// ErrFeedMalformed marks a page that failed schema validation. Permanent
	// for that page: it is skipped and the cycle continues at the next cursor.
	ErrFeedMalformed = errors.New("feed page malformed")
)

// RateLimitError carries the delay the feed asked us to respect. It is
// transient and retried after the indicated (or an exponential) delay.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("feed rate limited, retry after %s", e.RetryAfter)
}
