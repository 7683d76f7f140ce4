package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/gatherly/gatherly/internal/jobs"
)

// Scheduler triggers jobs on cron schedules. It only knows job ids; the
// runner owns execution.
type Scheduler struct {
	cron   *cron.Cron
	runner jobs.Runner
}

func New(runner jobs.Runner) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
	}
}

// Add schedules a fire-and-forget trigger of the given job. Spec accepts the
// standard 5-field cron syntax plus descriptors like "@every 30m".
func (s *Scheduler) Add(spec string, jobId string) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.runner.Trigger(context.Background(), jobId, nil); err != nil {
			log.Errorf("scheduler: failed to trigger job %s: %v", jobId, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s with spec %q: %w", jobId, spec, err)
	}
	log.Infof("scheduled job %s with spec %q", jobId, spec)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
