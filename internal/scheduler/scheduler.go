// Package scheduler runs the engine's background loops: inbound polling,
// reminder and timeout sweeps, attachment archival and credit checks.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"glenda/internal/services"
	"glenda/internal/settings"
)

// Job cadences.
const (
	pollSpec    = "@every 1m"
	timeoutSpec = "@every 1h"
	archiveSpec = "@every 5m"
	creditsSpec = "@every 30m"
)

// Scheduler owns the cron table. Customer-facing jobs (poll, timeouts) only
// run behind the gate: designated active instance, inside the send window,
// credits available. Maintenance jobs (archive, credits) run regardless.
type Scheduler struct {
	cron       *cron.Cron
	settings   *settings.Store
	databaseID string

	poller        *services.Poller
	conversations *services.ConversationService
	archiver      *services.Archiver
	guard         *services.CreditGuard

	entries map[string]cron.EntryID
	flags   map[string]string
}

func New(
	st *settings.Store,
	databaseID string,
	poller *services.Poller,
	conversations *services.ConversationService,
	archiver *services.Archiver,
	guard *services.CreditGuard,
) (*Scheduler, error) {
	if st == nil || poller == nil || conversations == nil || archiver == nil || guard == nil {
		return nil, fmt.Errorf("scheduler: missing dependency")
	}
	s := &Scheduler{
		cron:          cron.New(),
		settings:      st,
		databaseID:    databaseID,
		poller:        poller,
		conversations: conversations,
		archiver:      archiver,
		guard:         guard,
		entries:       make(map[string]cron.EntryID),
		flags: map[string]string{
			"poll":     settings.KeyPollEnabled,
			"timeouts": settings.KeyTimeoutEnabled,
			"archive":  settings.KeyArchiveEnabled,
			"credits":  settings.KeyCreditsEnabled,
		},
	}

	jobs := []struct {
		name  string
		spec  string
		gated bool
		run   func()
	}{
		{"poll", pollSpec, true, s.poller.Poll},
		{"timeouts", timeoutSpec, true, s.conversations.CheckTimeouts},
		{"archive", archiveSpec, false, func() { s.archiver.ArchivePending() }},
		{"credits", creditsSpec, false, func() { s.guard.Check() }},
	}
	for _, job := range jobs {
		job := job
		id, err := s.cron.AddFunc(job.spec, func() { s.runJob(job.name, job.gated, job.run) })
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", job.name, err)
		}
		s.entries[job.name] = id
	}
	return s, nil
}

func (s *Scheduler) runJob(name string, gated bool, run func()) {
	if !s.settings.GetBool(s.flags[name], true) {
		return
	}
	if gated && !s.GateOpen(time.Now()) {
		log.Debug().Str("job", name).Msg("Gate closed, skipping job")
		return
	}
	run()
}

// GateOpen reports whether customer-facing jobs may run at t.
func (s *Scheduler) GateOpen(t time.Time) bool {
	return s.settings.ActiveDBMatches(s.databaseID) &&
		s.settings.InSchedule(t) &&
		s.settings.CreditsOK()
}

// Start launches the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Int("jobs", len(s.entries)).Msg("Scheduler started")
}

// Stop halts the cron loop, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Scheduler stopped")
}

// Jobs exposes the cron table for the dashboard.
func (s *Scheduler) Jobs() []services.JobStatus {
	out := make([]services.JobStatus, 0, len(s.entries))
	for _, name := range []string{"poll", "timeouts", "archive", "credits"} {
		entry := s.cron.Entry(s.entries[name])
		out = append(out, services.JobStatus{
			Name:    name,
			Enabled: s.settings.GetBool(s.flags[name], true),
			NextRun: entry.Next,
		})
	}
	return out
}
