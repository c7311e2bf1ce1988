// Package system defines the lifecycle contract shared by the long-running
// components of both processes.
package system

import (
	"context"
	"fmt"

	"github.com/cafeteria-hr/service_layer/internal/logging"
)

// Service represents a lifecycle-managed component. All long-running modules
// implement this interface so the manager can start and stop them
// deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Manager starts services in registration order and stops them in reverse.
type Manager struct {
	services []Service
	log      *logging.Logger
}

// NewManager creates an empty manager.
func NewManager(log *logging.Logger) *Manager {
	if log == nil {
		log = logging.NewDefault("system")
	}
	return &Manager{log: log}
}

// Register adds services to the managed set.
func (m *Manager) Register(services ...Service) {
	m.services = append(m.services, services...)
}

// Start starts every registered service. On failure the services already
// started are stopped before returning.
func (m *Manager) Start(ctx context.Context) error {
	for i, svc := range m.services {
		if err := svc.Start(ctx); err != nil {
			m.log.WithError(err).Errorf("service %s failed to start", svc.Name())
			m.stopRange(ctx, i-1)
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
		m.log.WithField("service", svc.Name()).Info("service started")
	}
	return nil
}

// Stop stops all services in reverse order. Errors are logged, not returned
// early, so every service gets a shutdown attempt.
func (m *Manager) Stop(ctx context.Context) error {
	return m.stopRange(ctx, len(m.services)-1)
}

func (m *Manager) stopRange(ctx context.Context, from int) error {
	var firstErr error
	for i := from; i >= 0; i-- {
		svc := m.services[i]
		if err := svc.Stop(ctx); err != nil {
			m.log.WithError(err).Errorf("service %s failed to stop", svc.Name())
			if firstErr == nil {
				firstErr = fmt.Errorf("stop %s: %w", svc.Name(), err)
			}
			continue
		}
		m.log.WithField("service", svc.Name()).Info("service stopped")
	}
	return firstErr
}
