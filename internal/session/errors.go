package session

import "errors"

var (
	// ErrNotOwner means the requester does not own the module, or the
	// module does not exist.
	ErrNotOwner = errors.New("not authorized to create session for this module")
	// ErrInvalidDuration means the session duration was missing or
	// non-positive.
	ErrInvalidDuration = errors.New("duration must be a positive number of minutes")
	// ErrInvalidOrExpiredCode means no usable session matches the
	// code: unknown, superseded, or past its expiry.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired session code")
	// ErrNotRegistered means the student is not registered for the
	// session's module.
	ErrNotRegistered = errors.New("not registered for this module")
	// ErrAlreadySigned means the student already signed this session.
	ErrAlreadySigned = errors.New("already signed attendance for this session")
)
