package session

import (
	"context"
	"time"
)

// DefaultTickInterval is the pause between two ticks of the process loop.
const DefaultTickInterval = 100 * time.Millisecond

// Run drives Tick every interval until ctx is done or a fatal error occurs.
// Recoverable tick errors are logged and the loop continues.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Tick(); err != nil {
			if IsFatal(err) {
				return err
			}
			s.log.Error(err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
