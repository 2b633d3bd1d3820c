package clock

import "errors"

// Scheduler errors
var (
	ErrInvalidInterval = errors.New("process interval must be positive")
	ErrNilHandler      = errors.New("process handler is nil")
	ErrAlreadyRunning  = errors.New("scheduler is already running")
)
