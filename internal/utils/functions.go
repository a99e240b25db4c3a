package utils

import (
	"context"
	"strings"
	"time"
)

// NormalizeText trims the text and collapses runs of whitespace, the way a
// browser renders a cell's textContent.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
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
