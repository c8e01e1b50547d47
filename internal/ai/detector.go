package ai

import (
	"fmt"

	"github.com/arturkwiek/SDD/internal/config"
	"github.com/arturkwiek/SDD/internal/detection"
	"github.com/arturkwiek/SDD/internal/logger"
)

// Backend is a detection.Detector with its class list and resources
type Backend interface {
	detection.Detector
	// Labels returns the class names the model can report, or nil when unknown
	Labels() []string
	Close() error
}

// NewBackend creates the detector selected by cfg.Backend
func NewBackend(cfg config.DetectorConfig, log *logger.Logger) (Backend, error) {
	switch cfg.Backend {
	case config.BackendHTTP:
		c, err := NewClient(cfg, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendONNX:
		d, err := NewONNXDetector(cfg, log)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
}
