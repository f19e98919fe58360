package track

import "errors"

// Errors returned when reading recorded track files.
var (
	ErrUnknownFormat = errors.New("unknown track file format")
	ErrNoTrack       = errors.New("no track found in file")
)
