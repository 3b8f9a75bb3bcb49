package models

import "errors"

var (
	// ErrNotFound means no tier holds data for the requested key.
	ErrNotFound = errors.New("not found")
	// ErrUpstream wraps failures of an external data provider.
	ErrUpstream = errors.New("upstream provider failure")
	// ErrUpstreamTimeout is returned when a provider call exceeds its deadline.
	ErrUpstreamTimeout = errors.New("upstream provider timeout")
)
