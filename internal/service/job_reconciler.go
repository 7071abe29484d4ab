package service

import (
	"context"
	"sync"
	"time"

	"github.com/easeemail/easeemail/internal/domain"
	"github.com/easeemail/easeemail/pkg/logger"
)

// JobReconciler re-enqueues queued jobs whose send_email task was lost,
// typically because the process died between committing the row and
// enqueuing the task. Redundant tasks are harmless: the worker's row lock
// and sent_at gate make duplicates no-ops.
type JobReconciler struct {
	jobRepo  domain.EmailJobRepository
	broker   domain.Broker
	logger   logger.Logger
	interval time.Duration
	minAge   time.Duration
	batch    int

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewJobReconciler creates a new job reconciler
func NewJobReconciler(jobRepo domain.EmailJobRepository, broker domain.Broker, interval time.Duration, log logger.Logger) *JobReconciler {
	if interval <= 0 {
		interval = 1 * time.Minute
	}
	return &JobReconciler{
		jobRepo:  jobRepo,
		broker:   broker,
		logger:   log,
		interval: interval,
		minAge:   domain.StaleProcessingThreshold,
		batch:    100,
	}
}

// Start launches the reconcile loop
func (r *JobReconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.running = true
	r.mu.Unlock()

	r.logger.WithField("interval", r.interval.String()).Info("Starting job reconciler")

	r.wg.Add(1)
	go r.runLoop(ctx)
}

// Stop halts the reconcile loop and blocks until it exits
func (r *JobReconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("Job reconciler stopped")
}

func (r *JobReconciler) runLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reconcile(ctx)
		}
	}
}

// Reconcile re-enqueues one batch of orphaned queued jobs
func (r *JobReconciler) Reconcile(ctx context.Context) {
	jobs, err := r.jobRepo.FindOrphanedQueued(ctx, r.minAge, r.batch)
	if err != nil {
		r.logger.WithField("error", err.Error()).Error("Failed to list orphaned jobs")
		return
	}
	if len(jobs) == 0 {
		return
	}

	requeued := 0
	for _, job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := r.broker.Enqueue(ctx, domain.QueueEmailDelivery, domain.TaskKindSendEmail, job.ID); err != nil {
			r.logger.WithFields(map[string]interface{}{
				"job_id": job.ID,
				"error":  err.Error(),
			}).Error("Failed to re-enqueue orphaned job")
			continue
		}
		requeued++
	}

	if requeued > 0 {
		r.logger.WithField("count", requeued).Warn("Re-enqueued orphaned queued jobs")
	}
}
