package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// RoomTracker reports rooms nobody has been connected to for a while.
type RoomTracker interface {
	AbandonedRooms(grace time.Duration) []string
	Forget(code string)
}

// Sweeper periodically abandons matches whose room has stayed empty past the grace period.
type Sweeper struct {
	coord  *Coordinator
	rooms  RoomTracker
	grace  time.Duration
	logger *logrus.Logger
	sched  gocron.Scheduler
}

func NewSweeper(coord *Coordinator, rooms RoomTracker) *Sweeper {
	return &Sweeper{
		coord:  coord,
		rooms:  rooms,
		grace:  coord.settings.AbandonGrace,
		logger: coord.logger,
	}
}

// Sweep runs one pass and returns the codes it abandoned.
func (s *Sweeper) Sweep(ctx context.Context) []string {
	var abandoned []string
	for _, code := range s.rooms.AbandonedRooms(s.grace) {
		ok, err := s.coord.Abandon(ctx, code)
		if err != nil {
			s.logger.WithError(err).WithField("match", code).Warn("abandon failed, will retry")
			continue
		}
		if ok {
			abandoned = append(abandoned, code)
		}
		s.rooms.Forget(code)
	}
	return abandoned
}

// Start schedules Sweep every interval on clock.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration, clock clockwork.Clock) error {
	sched, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if codes := s.Sweep(ctx); len(codes) > 0 {
				s.logger.WithField("matches", codes).Info("swept abandoned rooms")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule sweeper: %w", err)
	}
	s.sched = sched
	sched.Start()
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}
