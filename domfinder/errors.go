// CLAUDE:SUMMARY Sentinel errors for domfinder: storage failure, no run yet, empty input.
package domfinder

import "errors"

// ErrStorage wraps failures to read or write the storage file. A run that
// hits it produces no output.
var ErrStorage = errors.New("domfinder: storage failure")

// ErrNoRun is returned when an artifact of the last run is requested before
// any run completed in the session.
var ErrNoRun = errors.New("domfinder: no extraction run yet")

// ErrEmptyInput is returned to MCP and CLI callers that submit no text.
var ErrEmptyInput = errors.New("domfinder: empty input")
