package db

import (
	"context"
	"fmt"
	"time"
)

// readyPollInterval is how often WaitForReady retries a failed ping.
const readyPollInterval = 100 * time.Millisecond

// WaitForReady pings p immediately and then on a fixed interval until it
// answers or timeout expires. name labels the timeout error.
func WaitForReady(ctx context.Context, p Pinger, name string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	var last error
	for {
		if last = p.Ping(ctx); last == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %s: %w (last error: %w)", name, ctx.Err(), last)
		case <-ticker.C:
		}
	}
}
