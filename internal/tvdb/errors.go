package tvdb

import (
	"errors"
	"fmt"
)

// LookupErrorKind classifies lookup failures so callers can distinguish an
// authoritative miss from a transport problem.
type LookupErrorKind string

const (
	// LookupNotFound is an authoritative negative answer from the provider.
	// It is cached; repeating the query will not hit the network again.
	LookupNotFound LookupErrorKind = "not_found"
	// LookupTransient means the retry budget was exhausted on 429/5xx/timeouts.
	LookupTransient LookupErrorKind = "transient"
	// LookupMalformed means the provider responded but the body didn't parse.
	// Never cached.
	LookupMalformed LookupErrorKind = "malformed"
)

// LookupError is returned by FindSeries and GetEpisodes when a query fails.
type LookupError struct {
	Kind  LookupErrorKind
	Query string
	Err   error
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tvdb lookup %q: %s: %v", e.Query, e.Kind, e.Err)
	}
	return fmt.Sprintf("tvdb lookup %q: %s", e.Query, e.Kind)
}

func (e *LookupError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is an authoritative negative lookup result.
func IsNotFound(err error) bool {
	var le *LookupError
	return errors.As(err, &le) && le.Kind == LookupNotFound
}

// AuthError indicates the session could not be established or refreshed.
// Nothing proceeds without a valid session, so callers abort the run on it.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tvdb auth: %s: %v", e.Message, e.Err)
	}
	return "tvdb auth: " + e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }
