// Package schedule fires the weekly sync trigger inside the daemon.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gazruxenginering/doclocker/internal/config"
)

const daysPerWeek = 7

// Weekly is a fixed weekday and wall-clock time in a location.
type Weekly struct {
	Weekday  time.Weekday
	Hour     int
	Minute   int
	Location *time.Location // nil = time.Local
}

// ParseWeekly builds a Weekly from the config's weekday name and "HH:MM".
func ParseWeekly(weekday, clock string, loc *time.Location) (Weekly, error) {
	d, err := config.ParseWeekday(weekday)
	if err != nil {
		return Weekly{}, fmt.Errorf("schedule: %w", err)
	}

	h, m, err := config.ParseClock(clock)
	if err != nil {
		return Weekly{}, fmt.Errorf("schedule: %w", err)
	}

	return Weekly{Weekday: d, Hour: h, Minute: m, Location: loc}, nil
}

// Next returns the first fire time strictly after t.
func (w Weekly) Next(t time.Time) time.Time {
	loc := w.Location
	if loc == nil {
		loc = time.Local
	}

	t = t.In(loc)
	offset := (int(w.Weekday) - int(t.Weekday()) + daysPerWeek) % daysPerWeek

	// time.Date normalizes day overflow and DST gaps.
	next := time.Date(t.Year(), t.Month(), t.Day()+offset, w.Hour, w.Minute, 0, 0, loc)
	if !next.After(t) {
		next = time.Date(t.Year(), t.Month(), t.Day()+offset+daysPerWeek, w.Hour, w.Minute, 0, 0, loc)
	}

	return next
}

func (w Weekly) String() string {
	return fmt.Sprintf("%s %02d:%02d", w.Weekday, w.Hour, w.Minute)
}

// Scheduler calls trigger at every Weekly fire time until its context ends.
// Trigger must not block; sync outcomes never reach the scheduler.
type Scheduler struct {
	weekly  Weekly
	trigger func()
	logger  *slog.Logger

	nowFunc func() time.Time
	after   func(d time.Duration) <-chan time.Time
}

// New creates a Scheduler.
func New(weekly Weekly, trigger func(), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		weekly:  weekly,
		trigger: trigger,
		logger:  logger,
		nowFunc: time.Now,
		after:   time.After,
	}
}

// Run blocks, firing the trigger on schedule. It returns nil when ctx is
// canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("weekly sync scheduled", slog.String("schedule", s.weekly.String()))

	for {
		now := s.nowFunc()
		next := s.weekly.Next(now)

		s.logger.Debug("next scheduled sync", slog.Time("at", next))

		select {
		case <-ctx.Done():
			return nil
		case <-s.after(next.Sub(now)):
			s.logger.Info("scheduled sync firing", slog.Time("at", next))
			s.trigger()
		}
	}
}
