package core

import (
	"errors"
	"fmt"
)

// Business errors.
var (
	// Device errors.
	ErrDeviceNotFound        = errors.New("device not found")
	ErrDeviceAlreadyActive   = errors.New("device is already active")
	ErrDeviceAlreadyInactive = errors.New("device is already inactive")
)

// BusinessError represents a validation failure with a stable code.
type BusinessError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e BusinessError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Validation errors.
var (
	ErrNameRequired    = BusinessError{"DEVICE_VAL_001", "device name is required"}
	ErrAddressRequired = BusinessError{"DEVICE_VAL_002", "device address is required"}
	ErrInvalidType     = BusinessError{"DEVICE_VAL_003", "device type is not recognized"}
)

// IsValidationError reports whether err is a caller-data rejection.
func IsValidationError(err error) bool {
	var be BusinessError
	return errors.As(err, &be)
}
