// Package health runs preflight checks before a detection run: is ffmpeg
// usable, does the detector answer, can the outputs and the run history be
// written.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/arturkwiek/SDD/internal/logger"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check is the outcome of one checker
type Check struct {
	Name      string                 `json:"name"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Report is the combined outcome of all checkers, in registration order
type Report struct {
	Status    Status        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Checks    []Check       `json:"checks"`
}

// Checker is an interface for health checkers
type Checker interface {
	Name() string
	Check(ctx context.Context) Check
}

// Manager runs the registered checkers
type Manager struct {
	logger   *logger.Logger
	checkers []Checker
	timeout  time.Duration
	mu       sync.RWMutex
}

// NewManager creates a manager; each checker gets at most timeout
func NewManager(log *logger.Logger, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Manager{
		logger:  log.WithComponent("health"),
		timeout: timeout,
	}
}

// RegisterChecker registers a health checker
func (m *Manager) RegisterChecker(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
}

// Check runs every checker in order. The overall status is the worst one.
func (m *Manager) Check(ctx context.Context) Report {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	start := time.Now()
	report := Report{Status: StatusHealthy, Timestamp: start, Checks: make([]Check, 0, len(checkers))}

	for _, checker := range checkers {
		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		check := checker.Check(checkCtx)
		cancel()

		if check.Name == "" {
			check.Name = checker.Name()
		}
		report.Checks = append(report.Checks, check)

		if check.Status == StatusUnhealthy {
			report.Status = StatusUnhealthy
		} else if check.Status == StatusDegraded && report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}

	report.Duration = time.Since(start)
	return report
}

// Log writes one line per check at a level matching its status
func (m *Manager) Log(report Report) {
	for _, c := range report.Checks {
		fields := []interface{}{"check", c.Name, "status", string(c.Status), "message", c.Message}
		for k, v := range c.Details {
			fields = append(fields, k, v)
		}
		switch c.Status {
		case StatusUnhealthy:
			m.logger.Error("Preflight check failed", fields...)
		case StatusDegraded:
			m.logger.Warn("Preflight check degraded", fields...)
		default:
			m.logger.Debug("Preflight check passed", fields...)
		}
	}
}

// Failed returns the checks that are not healthy
func (r Report) Failed() []Check {
	var failed []Check
	for _, c := range r.Checks {
		if c.Status != StatusHealthy {
			failed = append(failed, c)
		}
	}
	return failed
}

func newCheck(name string) Check {
	return Check{
		Name:      name,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}
}
