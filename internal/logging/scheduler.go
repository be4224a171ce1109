package logging

import (
	"context"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
)

// CleanupScheduler runs a Cleaner immediately and then on every interval.
type CleanupScheduler struct {
	cleaner  *Cleaner
	ticker   *time.Ticker
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewCleanupScheduler(cleaner *Cleaner, interval time.Duration) *CleanupScheduler {
	return &CleanupScheduler{
		cleaner: cleaner,
		ticker:  time.NewTicker(interval),
		stop:    make(chan struct{}),
	}
}

// Start launches the loop. ctx only supplies the logger.
func (s *CleanupScheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runCleanup(ctx)
		for {
			select {
			case <-s.ticker.C:
				s.runCleanup(ctx)
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *CleanupScheduler) runCleanup(ctx context.Context) {
	deleted, err := s.cleaner.Cleanup()
	if err != nil {
		clog.FromContext(ctx).With("error", err).Error("Transcript cleanup failed")
	} else if deleted > 0 {
		clog.InfoContextf(ctx, "Cleaned up %d old transcripts", deleted)
	}
}

// Stop ends the loop and waits for a running cleanup to finish.
func (s *CleanupScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.ticker.Stop()
		close(s.stop)
	})
	s.wg.Wait()
}
