package server

import "errors"

var (
	// ErrServerClosed is returned by Serve and ListenAndServe after Shutdown.
	ErrServerClosed = errors.New("server: closed")

	// ErrInvalidConfig wraps every Config validation failure.
	ErrInvalidConfig = errors.New("server: invalid config")
)
