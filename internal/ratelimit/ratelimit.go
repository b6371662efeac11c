// Package ratelimit waits out HTTP 429 answers instead of failing on them.
package ratelimit

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/deusflow/newstweet/internal/logger"
)

const (
	HeaderReset      = "x-rate-limit-reset"
	HeaderRetryAfter = "Retry-After"
)

// Waiter repeats a request after the rate-limit window named by the response
// headers has passed.
type Waiter struct {
	MaxWaits int           // 429 answers tolerated before giving up
	Padding  time.Duration // added to every computed wait
	Fallback time.Duration // wait when no header says how long

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewWaiter(maxWaits int) *Waiter {
	return &Waiter{
		MaxWaits: maxWaits,
		Padding:  time.Second,
		Fallback: time.Minute,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Do calls send until it returns something other than 429 or MaxWaits is used
// up, in which case the last 429 response is returned to the caller.
// send must build a fresh request on every call.
func (w *Waiter) Do(ctx context.Context, send func() (*http.Response, error)) (*http.Response, error) {
	for waits := 0; ; waits++ {
		resp, err := send()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || waits >= w.MaxWaits {
			return resp, nil
		}

		delay, ok := Delay(resp.Header, w.now())
		if !ok {
			delay = w.Fallback
		}
		delay += w.Padding

		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		logger.Warn("rate limit reached, waiting", "wait", delay, "attempt", waits+1, "max_waits", w.MaxWaits)
		if err := w.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// Delay reads how long to wait from x-rate-limit-reset (unix seconds) or
// Retry-After (seconds or HTTP date). A reset in the past yields zero.
func Delay(h http.Header, now time.Time) (time.Duration, bool) {
	if v := h.Get(HeaderReset); v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			return nonNegative(time.Unix(sec, 0).Sub(now)), true
		}
	}
	if v := h.Get(HeaderRetryAfter); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			return nonNegative(time.Duration(sec) * time.Second), true
		}
		if t, err := http.ParseTime(v); err == nil {
			return nonNegative(t.Sub(now)), true
		}
	}
	return 0, false
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
