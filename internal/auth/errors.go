package auth

import "errors"

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPrincipalDisabled  = errors.New("principal disabled")
	ErrPrincipalNotFound  = errors.New("principal not found")
	ErrInvalidRequest     = errors.New("invalid request")
)
