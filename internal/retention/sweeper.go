package retention

import (
	"context"
	"log"
	"time"
)

// Sweeper is the part of the emergency engine the background loop drives.
type Sweeper interface {
	RetentionSweep(ctx context.Context, days int) (int64, error)
}

// Service runs RetentionSweep on a fixed interval.
type Service struct {
	sweeper  Sweeper
	days     int
	interval time.Duration
	enabled  bool
}

// NewService creates the background retention loop.
func NewService(sweeper Sweeper, days int, interval time.Duration, enabled bool) *Service {
	return &Service{
		sweeper:  sweeper,
		days:     days,
		interval: interval,
		enabled:  enabled,
	}
}

// Run sweeps once immediately and then every interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.enabled {
		log.Println("Retention sweeper is disabled. Not starting.")
		return
	}
	log.Printf("Starting retention sweeper: every %s, older than %d days", s.interval, s.days)

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Retention sweeper shutting down.")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

// SweepOnce deletes one batch of expired emergencies. A full batch means more may
// remain; the next tick picks them up.
func (s *Service) SweepOnce(ctx context.Context) int64 {
	deleted, err := s.sweeper.RetentionSweep(ctx, s.days)
	if err != nil {
		log.Printf("Retention sweep failed: %v", err)
		return 0
	}
	return deleted
}
