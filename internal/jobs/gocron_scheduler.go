package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler wraps gocron for the application's background jobs.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// NewScheduler creates a scheduler pinned to UTC.
func NewScheduler() (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{scheduler: scheduler}, nil
}

// AddInterval registers a job that runs at a fixed interval. Job errors are
// logged, never fatal.
func (s *Scheduler) AddInterval(name string, every time.Duration, task func(ctx context.Context) error) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), every)
			defer cancel()
			if err := task(ctx); err != nil {
				log.Printf("⚠️ [SCHEDULER] Job '%s' failed: %v", name, err)
			}
		}),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", name, err)
	}

	log.Printf("✅ [SCHEDULER] Registered job: %s (every %v)", name, every)
	return nil
}

// Start begins running all registered jobs
func (s *Scheduler) Start() {
	s.scheduler.Start()
	log.Println("🚀 [SCHEDULER] Job scheduler started")
}

// Stop shuts the scheduler down, waiting for running jobs
func (s *Scheduler) Stop() error {
	log.Println("⏹️ [SCHEDULER] Stopping job scheduler...")
	return s.scheduler.Shutdown()
}
