package domain

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid_input")
	ErrMissingCredentials = errors.New("missing_credentials")
	ErrNotConnected       = errors.New("not_connected")
	ErrInvalidState       = errors.New("invalid_state")
	ErrMissingCode        = errors.New("missing_code")
	ErrUnauthenticated    = errors.New("unauthenticated")
)
