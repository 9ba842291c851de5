package storage

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSweepSchedule is how often abandoned tab sessions are collected
const DefaultSweepSchedule = "@every 5m"

// Sweeper periodically sweeps a MemoryBackend on a cron schedule. It stands in for
// the browser discarding a tab's storage when the tab goes away.
type Sweeper struct {
	cron    *cron.Cron
	backend *MemoryBackend
	idle    time.Duration
	nowTime func() time.Time
	logger  zerolog.Logger
}

// NewSweeper schedules backend.Sweep. schedule accepts standard 5-field specs and
// descriptors such as "@every 5m"; an empty schedule uses DefaultSweepSchedule.
func NewSweeper(backend *MemoryBackend, schedule string, idle time.Duration, logger zerolog.Logger) (*Sweeper, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	s := &Sweeper{
		cron:    cron.New(),
		backend: backend,
		idle:    idle,
		nowTime: time.Now,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.Run() }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Run performs one sweep immediately
func (s *Sweeper) Run() int {
	dropped := s.backend.Sweep(s.nowTime(), s.idle)
	if dropped > 0 {
		s.logger.Info().Int("dropped", dropped).Int("remaining", s.backend.Len()).Msg("swept tab sessions")
	} else {
		s.logger.Debug().Msg("no tab sessions to sweep")
	}
	return dropped
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
