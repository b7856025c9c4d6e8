package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/logger"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
)

// Job names registered by RegisterDefaultJobs
const (
	JobOutboxDispatch = "outbox_dispatch"
	JobRetentionSweep = "retention_sweep"
	jobIngestPrefix   = "ingest:"
)

const jobTimeout = 5 * time.Minute

// JobHandler defines the interface for job handlers
type JobHandler interface {
	Handle(ctx context.Context) error
}

// JobHandlerFunc adapts a function to JobHandler
type JobHandlerFunc func(ctx context.Context) error

// Handle calls f(ctx)
func (f JobHandlerFunc) Handle(ctx context.Context) error {
	return f(ctx)
}

type scheduledJob struct {
	name     string
	interval time.Duration
	handler  JobHandler
	running  int32
}

// Scheduler runs registered jobs on fixed intervals. Each job has its own
// ticker and never overlaps itself; a tick that finds the job still running is
// skipped.
type Scheduler struct {
	logger  *logger.Logger
	metrics *Metrics
	jobs    map[string]*scheduledJob
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewScheduler creates a new scheduler
func NewScheduler(log *logger.Logger, metrics *Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger:  log,
		metrics: metrics,
		jobs:    make(map[string]*scheduledJob),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds a job. Jobs must be registered before Start.
func (s *Scheduler) Register(name string, interval time.Duration, handler JobHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started, cannot register %s", name)
	}
	if interval <= 0 {
		return fmt.Errorf("job %s needs a positive interval", name)
	}
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s is already registered", name)
	}
	s.jobs[name] = &scheduledJob{name: name, interval: interval, handler: handler}
	return nil
}

// Jobs returns the registered job names in sorted order
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start begins running jobs
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true
	s.logger.WithField("jobs", len(s.jobs)).Info("Starting scheduler")

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(job)
	}
}

// Stop gracefully stops the scheduler, waiting for running jobs
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler...")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// RunNow executes a job immediately unless it is already running. It reports
// whether the job ran.
func (s *Scheduler) RunNow(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("job %s is not registered", name)
	}
	return s.execute(ctx, job)
}

func (s *Scheduler) loop(job *scheduledJob) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.execute(s.ctx, job)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, job *scheduledJob) (bool, error) {
	if !atomic.CompareAndSwapInt32(&job.running, 0, 1) {
		s.logger.WithField("job", job.name).Debug("Job still running, skipping tick")
		return false, nil
	}
	defer atomic.StoreInt32(&job.running, 0)

	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	started := time.Now()
	err := s.safeHandle(ctx, job)
	entry := s.logger.WithField("job", job.name).WithField("duration", time.Since(started))
	if err != nil {
		s.metrics.observeSchedulerFailure(job.name)
		entry.WithError(err).Error("Scheduled job failed")
		return true, err
	}
	entry.Debug("Scheduled job completed")
	return true, nil
}

func (s *Scheduler) safeHandle(ctx context.Context, job *scheduledJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.name, r)
		}
	}()
	return job.handler.Handle(ctx)
}

// RegisterDefaultJobs registers outbox dispatch, retention and every
// configured scheduled ingestion.
func RegisterDefaultJobs(s *Scheduler, cfg *config.Config, dispatcher *OutboxDispatcher, sweeper *RetentionSweeper, ingestion *IngestionService) error {
	if cfg.Outbox.Enabled && dispatcher != nil {
		if err := s.Register(JobOutboxDispatch, cfg.Outbox.Interval, JobHandlerFunc(func(ctx context.Context) error {
			_, err := dispatcher.DispatchOnce(ctx)
			return err
		})); err != nil {
			return err
		}
	}

	if cfg.Retention.Enabled && sweeper != nil {
		if err := s.Register(JobRetentionSweep, cfg.Retention.Interval, JobHandlerFunc(func(ctx context.Context) error {
			_, err := sweeper.Sweep(ctx)
			return err
		})); err != nil {
			return err
		}
	}

	for _, def := range cfg.Ingestion.Scheduled {
		def := def
		req := IngestRequest{
			TenantID:         def.TenantID,
			SourceType:       def.SourceType,
			SourceConfig:     models.JSONMap(def.SourceConfig).Clone(),
			MappingProfileID: def.MappingProfileID,
			DryRun:           def.DryRun,
		}
		if err := s.Register(jobIngestPrefix+def.Name, def.Interval, JobHandlerFunc(func(ctx context.Context) error {
			_, err := ingestion.Ingest(ctx, req)
			return err
		})); err != nil {
			return err
		}
	}
	return nil
}
