// Package scheduler runs background maintenance jobs on cron schedules.
package scheduler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrJobNotFound is returned by RunByName for unregistered jobs
var ErrJobNotFound = errors.New("job not found")

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// JobInfo describes a registered job for status output
type JobInfo struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	Next     string `json:"next,omitempty"`
	Prev     string `json:"prev,omitempty"`
}

type registration struct {
	id       cron.EntryID
	schedule string
	job      Job
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu   sync.RWMutex
	jobs []registration
}

// New creates a new scheduler. Schedules accept an optional seconds field and
// descriptors such as @daily.
func New(log zerolog.Logger) *Scheduler {
	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	return &Scheduler{
		cron: cron.New(cron.WithParser(parser)),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.Jobs())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule
// Schedule examples:
//   - "@daily"             - Every day at midnight
//   - "@hourly"            - Every hour
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	id, err := s.cron.AddFunc(schedule, func() {
		s.run(job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s with %q: %w", job.Name(), schedule, err)
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, registration{id: id, schedule: schedule, job: job})
	s.mu.Unlock()

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}

// RunByName runs a registered job immediately
func (s *Scheduler) RunByName(name string) error {
	s.mu.RLock()
	var job Job
	for _, r := range s.jobs {
		if r.job.Name() == name {
			job = r.job
			break
		}
	}
	s.mu.RUnlock()

	if job == nil {
		return fmt.Errorf("%s: %w", name, ErrJobNotFound)
	}
	return s.RunNow(job)
}

// Jobs lists registered jobs with their next and previous run times
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for _, r := range s.jobs {
		info := JobInfo{Name: r.job.Name(), Schedule: r.schedule}
		entry := s.cron.Entry(r.id)
		if !entry.Next.IsZero() {
			info.Next = entry.Next.UTC().Format("2006-01-02T15:04:05Z")
		}
		if !entry.Prev.IsZero() {
			info.Prev = entry.Prev.UTC().Format("2006-01-02T15:04:05Z")
		}
		infos = append(infos, info)
	}
	return infos
}

func (s *Scheduler) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("job", job.Name()).Msg("Job panicked")
		}
	}()

	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	if err := job.Run(); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Msg("Job failed")
		return
	}
	s.log.Debug().Str("job", job.Name()).Msg("Job completed")
}
