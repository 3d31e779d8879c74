// internal/historian/historian.go drains the match action queue into durable storage in batches.
package historian

import (
	"context"
	"time"

	"github.com/jason-s-yu/certarena/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Source yields queued action records. Pop returns (nil, nil) when nothing arrived within timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*models.ActionRecord, error)
}

// Sink persists one batch. It must tolerate records it has already stored.
type Sink func(ctx context.Context, batch []models.ActionRecord) error

type Options struct {
	BatchSize  int
	FlushDelay time.Duration
	PopTimeout time.Duration
}

func (o *Options) defaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 20
	}
	if o.FlushDelay <= 0 {
		o.FlushDelay = 500 * time.Millisecond
	}
	if o.PopTimeout <= 0 {
		o.PopTimeout = time.Second
	}
}

// Service accumulates records and flushes when the batch is full, when the queue goes idle, or
// when FlushDelay passed since the last flush.
type Service struct {
	src    Source
	sink   Sink
	opts   Options
	clock  clockwork.Clock
	logger *logrus.Logger

	batch     []models.ActionRecord
	lastFlush time.Time
}

func New(src Source, sink Sink, opts Options, clock clockwork.Clock, logger *logrus.Logger) *Service {
	opts.defaults()
	return &Service{
		src:    src,
		sink:   sink,
		opts:   opts,
		clock:  clock,
		logger: logger,
		batch:  make([]models.ActionRecord, 0, opts.BatchSize),
	}
}

// Run blocks until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	s.lastFlush = s.clock.Now()
	s.logger.Info("historian started")
	defer func() {
		s.flush(context.WithoutCancel(ctx))
		s.logger.Info("historian stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		rec, err := s.src.Pop(ctx, s.opts.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.WithError(err).Warn("failed to pop action")
			s.clock.Sleep(s.opts.FlushDelay)
			continue
		}

		if rec != nil {
			s.batch = append(s.batch, *rec)
		}
		if len(s.batch) >= s.opts.BatchSize || rec == nil || s.clock.Since(s.lastFlush) >= s.opts.FlushDelay {
			s.flush(ctx)
		}
	}
}

func (s *Service) flush(ctx context.Context) {
	s.lastFlush = s.clock.Now()
	if len(s.batch) == 0 {
		return
	}
	if err := s.sink(ctx, s.batch); err != nil {
		// Keep the batch and retry on the next flush.
		s.logger.WithError(err).WithField("pending", len(s.batch)).Error("failed to flush actions")
		return
	}
	s.logger.WithField("count", len(s.batch)).Debug("flushed actions")
	s.batch = s.batch[:0]
}
