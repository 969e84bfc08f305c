// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/songforge/internal/state"
	"github.com/user/songforge/internal/types"
)

// Scheduler runs the periodic maintenance jobs: collaborator health probes
// and stuck-session audits. Jobs registered before Start survive Reload.
type Scheduler struct {
	cron *cron.Cron
	jobs []job
}

type job struct {
	name     string
	schedule string
	fn       func()
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithParser(cronParser)),
	}
}

// AddJob registers fn under the given cron schedule. Descriptors such as
// "@every 1m" are accepted.
func (s *Scheduler) AddJob(name, schedule string, fn func()) error {
	if err := s.add(name, schedule, fn); err != nil {
		return err
	}
	s.jobs = append(s.jobs, job{name: name, schedule: schedule, fn: fn})
	return nil
}

func (s *Scheduler) add(name, schedule string, fn func()) error {
	_, err := s.cron.AddFunc(schedule, func() {
		slog.Debug("cron firing job", "name", name)
		fn()
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	slog.Info("scheduled job", "name", name, "schedule", schedule)
	return nil
}

// Start begins the cron ticker.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Reload stops the existing cron, creates a new one, and re-registers every
// job.
func (s *Scheduler) Reload() error {
	s.cron.Stop()
	s.cron = cron.New(cron.WithParser(cronParser))
	for _, j := range s.jobs {
		if err := s.add(j.name, j.schedule, j.fn); err != nil {
			return err
		}
	}
	s.cron.Start()
	return nil
}

// Stop stops the cron ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// HealthProbe returns a job that checks the generation backend and logs
// failures.
func HealthProbe(client types.GenerationClient, timeout time.Duration) func() {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := client.Health(ctx); err != nil {
			slog.Warn("generation backend unhealthy", "error", err)
		}
	}
}

// StuckAudit returns a job that reports sessions parked in a non-terminal
// stage for longer than threshold.
func StuckAudit(tracker *state.Tracker, threshold time.Duration) func() {
	return func() {
		for _, id := range tracker.StuckSessions(threshold) {
			slog.Warn("session stuck", "session_id", id, "threshold", threshold)
		}
	}
}
