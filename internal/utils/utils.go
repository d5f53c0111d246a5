package utils

import (
	"context"
	"strings"
	"time"
)

// WaitFor blocks for d or until ctx is done, whichever comes first. The timer
// is released as soon as the wait ends.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TruncateForLog flattens s onto one line and cuts it to limit runes, marking
// a cut with "...".
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	flat := strings.Join(strings.Fields(s), " ")
	runes := 0
	for i := range flat {
		if runes == limit {
			return flat[:i] + "..."
		}
		runes++
	}
	return flat
}
