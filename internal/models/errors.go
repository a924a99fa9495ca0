package models

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrDuplicateDevice  = errors.New("device already registered")
	ErrUnknownDevice    = errors.New("unknown device")
	ErrInvalidInterval  = errors.New("sampling interval must be greater than zero")
	ErrInvalidDevice    = errors.New("invalid device configuration")
	ErrInvalidRule      = errors.New("invalid alert rule")
	ErrInvalidRiskZone  = errors.New("invalid risk zone")
	ErrSchedulerStopped = errors.New("scheduler is shut down")
)

// ConfigurationError is returned synchronously for rejected registry or rule changes
type ConfigurationError struct {
	DeviceID string
	Err      error
}

func (e *ConfigurationError) Error() string {
	if e.DeviceID == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error for device %s: %v", e.DeviceID, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps err for the given device
func NewConfigurationError(deviceID string, err error) error {
	return &ConfigurationError{DeviceID: deviceID, Err: err}
}
