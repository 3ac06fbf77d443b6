package host

import "errors"

var (
	ErrIncompleteVTable      = errors.New("host: vtable missing Create, Receive, or Destroy")
	ErrInvalidConnectionID   = errors.New("host: connection id must be non-zero")
	ErrNoMessageSocket       = errors.New("host: no message socket attached for this session")
	ErrWorkerAlreadyRunning  = errors.New("host: worker thread already running")
	ErrWorkerNotRunning      = errors.New("host: worker thread not running")
	ErrDuplicateConnectionID = errors.New("host: connection id already attached")
	ErrRegistryFull          = errors.New("host: registry at capacity")
)
