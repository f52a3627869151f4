package roster

import "errors"

var (
	// ErrDuplicateCode means a module with that code already exists.
	ErrDuplicateCode = errors.New("module code already exists")
	// ErrInvalidInviteCode means no module matches the invite code.
	ErrInvalidInviteCode = errors.New("invalid invite code")
	// ErrAlreadyRegistered means the student already joined the module.
	ErrAlreadyRegistered = errors.New("already registered for this module")
	// ErrModuleNotFound covers both a missing module and one the
	// caller has no access to; readers cannot tell the two apart.
	ErrModuleNotFound = errors.New("module not found or access denied")
	// ErrNotOwner means the lecturer does not own the module.
	ErrNotOwner = errors.New("not authorized for this module")
	// ErrNotRegistered means the student is not registered for the module.
	ErrNotRegistered = errors.New("not registered for this module")
)
