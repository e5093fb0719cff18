package bridge

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Job is a periodic maintenance task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs jobs on fixed intervals until its context is done.
type Scheduler struct {
	jobs []Job
	wg   sync.WaitGroup
}

func NewScheduler(jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs}
}

// Start launches one goroutine per job with a positive interval.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			log.WithField("job", job.Name).Info("Job disabled")
			continue
		}

		s.wg.Add(1)
		go func(job Job) {
			defer s.wg.Done()
			s.loop(ctx, job)
		}(job)
	}
}

// Wait blocks until every job loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	logger := log.WithField("job", job.Name)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := job.Run(ctx); err != nil {
				logger.Errorf("Job failed: %s", err)
			}
		}
	}
}
