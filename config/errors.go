package config

import "errors"

// Common errors returned by config validation
var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrDuplicateFlight   = errors.New("flight id listed more than once")
	ErrUnknownFollow     = errors.New("follow target is neither a flight nor a viewpoint")
	ErrUnknownNMEAObject = errors.New("nmea object is not a configured flight")
	ErrInvalidTimezone   = errors.New("unknown timezone")
)
