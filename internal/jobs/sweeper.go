package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ExpirySweeper records expiration for entitlements that have aged out.
type ExpirySweeper interface {
	SweepExpired(ctx context.Context, batch int) (int, error)
}

// ExpirationSweeper runs an ExpirySweeper on a cron schedule. Runs never
// overlap: a tick that fires while a sweep is in progress is skipped.
type ExpirationSweeper struct {
	svc     ExpirySweeper
	batch   int
	timeout time.Duration
	log     logrus.FieldLogger
	cron    *cron.Cron

	mu      sync.Mutex
	running bool
}

func NewExpirationSweeper(svc ExpirySweeper, batch int, log logrus.FieldLogger) *ExpirationSweeper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ExpirationSweeper{
		svc:     svc,
		batch:   batch,
		timeout: 10 * time.Minute,
		log:     log.WithField("job", "expiration_sweep"),
	}
}

// Start schedules the sweep with a standard five-field cron spec or a
// descriptor such as "@hourly".
func (s *ExpirationSweeper) Start(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { _, _ = s.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	s.cron = c
	c.Start()
	s.log.WithField("schedule", spec).Info("expiration sweep scheduled")
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end.
func (s *ExpirationSweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce performs one sweep. It returns false when another sweep was
// already running.
func (s *ExpirationSweeper) RunOnce(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("previous sweep still running, skipping")
		return false, nil
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.svc.SweepExpired(ctx, s.batch)
	entry := s.log.WithFields(logrus.Fields{
		"expired":  n,
		"duration": time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Error("expiration sweep failed")
		return true, err
	}
	entry.Info("expiration sweep finished")
	return true, nil
}
