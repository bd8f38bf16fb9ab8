package server

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/compass/internal/database"
	"github.com/aristath/compass/internal/events"
	"github.com/rs/zerolog"
)

// StatusMonitor periodically health-checks databases and emits an error event
// when one becomes unhealthy. Recovery is logged.
type StatusMonitor struct {
	eventManager *events.Manager
	databases    []*database.DB
	log          zerolog.Logger

	// last known health per database name
	checkMu sync.Mutex
	healthy map[string]bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStatusMonitor creates a new status monitor. Nil databases are skipped.
func NewStatusMonitor(eventManager *events.Manager, databases []*database.DB, log zerolog.Logger) *StatusMonitor {
	dbs := make([]*database.DB, 0, len(databases))
	for _, db := range databases {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return &StatusMonitor{
		eventManager: eventManager,
		databases:    dbs,
		log:          log.With().Str("component", "status_monitor").Logger(),
		healthy:      make(map[string]bool),
	}
}

// Start begins periodic monitoring. Calling Start twice is a no-op.
func (m *StatusMonitor) Start(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.monitor(ctx, interval, m.done)
}

// Stop ends monitoring and waits for the loop to exit
func (m *StatusMonitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *StatusMonitor) monitor(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.CheckNow(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow runs one round of checks
func (m *StatusMonitor) CheckNow(ctx context.Context) {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()

	for _, db := range m.databases {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := db.HealthCheck(checkCtx)
		cancel()

		name := db.Name()
		wasHealthy, seen := m.healthy[name]
		m.healthy[name] = err == nil

		switch {
		case err != nil && (!seen || wasHealthy):
			m.log.Error().Err(err).Str("database", name).Msg("Database health check failed")
			m.eventManager.EmitError("status_monitor", err, map[string]interface{}{
				"database": name,
			})
		case err == nil && seen && !wasHealthy:
			m.log.Info().Str("database", name).Msg("Database healthy again")
		}
	}
}
