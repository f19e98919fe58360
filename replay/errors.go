package replay

import "errors"

var (
	ErrInvalidObject   = errors.New("tracked object must have an id")
	ErrDuplicateObject = errors.New("tracked object already registered")
	ErrDriverRunning   = errors.New("driver is already running")
)
