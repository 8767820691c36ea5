package sync

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/saan/taskflow-agent/pkg/logger"
)

// Scheduler drives Engine.Run on a cadence in addition to the manual
// trigger exposed directly on Engine, grounded on focus-agent's
// internal/scheduler.Scheduler (robfig/cron with a skip-if-still-running
// chain so a slow cycle never overlaps itself).
type Scheduler struct {
	Engine *Engine
	Log    logger.Logger

	cron *cron.Cron
	jobs map[string]cron.EntryID
}

// NewScheduler builds a Scheduler ready to have users added via AddUser.
func NewScheduler(engine *Engine, log logger.Logger) *Scheduler {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))
	return &Scheduler{Engine: engine, Log: log, cron: c, jobs: make(map[string]cron.EntryID)}
}

// AddUser schedules user's sync cycle at the given cron spec (e.g.
// "@every 15m"), replacing any existing schedule for that user.
func (s *Scheduler) AddUser(user, spec string) error {
	if id, ok := s.jobs[user]; ok {
		s.cron.Remove(id)
	}
	id, err := s.cron.AddFunc(spec, func() {
		if _, err := s.Engine.Run(context.Background(), user); err != nil && s.Log != nil {
			s.Log.WithField("user", user).WithField("error", err.Error()).Warn("sync: scheduled cycle failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sync for %s: %w", user, err)
	}
	s.jobs[user] = id
	return nil
}

// RemoveUser cancels user's scheduled cycle, if any.
func (s *Scheduler) RemoveUser(user string) {
	if id, ok := s.jobs[user]; ok {
		s.cron.Remove(id)
		delete(s.jobs, user)
	}
}

func (s *Scheduler) Start() { s.cron.Start() }
func (s *Scheduler) Stop()  { s.cron.Stop() }
