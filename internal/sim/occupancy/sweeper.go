package occupancy

import (
	"context"
	"time"
)

// Sweeper calls Manager.Sweep on a timer until its context ends. After
// every sweep it runs After, if set (the server refreshes gauges there).
//
// sweeper.enabled and sweeper.interval_seconds are read from live tuning
// on every cycle, so an operator can pause or retime the sweeper without a
// restart.
type Sweeper struct {
	Manager *Manager
	// Interval, when positive, overrides sweeper.interval_seconds.
	Interval time.Duration
	After    func(ctx context.Context)
	Logger   Logger
}

func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTimer(s.interval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx)
			t.Reset(s.interval())
		}
	}
}

func (s *Sweeper) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	if d := s.Manager.tuning.Current().Sweeper.Interval(); d > 0 {
		return d
	}
	return 5 * time.Second
}

func (s *Sweeper) tick(ctx context.Context) {
	if !s.Manager.tuning.Current().Sweeper.Enabled {
		return
	}
	n, err := s.Manager.Sweep(ctx)
	if err != nil && ctx.Err() == nil && s.Logger != nil {
		s.Logger.Printf("sweep: %v", err)
	}
	if n > 0 && s.Logger != nil {
		s.Logger.Printf("sweep: evicted %d stale sessions", n)
	}
	if s.After != nil {
		s.After(ctx)
	}
}
