package account

import "errors"

var (
	// ErrEmailTaken means a user with that email already exists.
	ErrEmailTaken = errors.New("email already exists")
	// ErrRegNumberTaken means a student with that registration number
	// already exists.
	ErrRegNumberTaken = errors.New("registration number already exists")
	// ErrInvalidCredentials covers unknown email and wrong password
	// alike; login never says which.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
