package domain

import "errors"

var (
	ErrNoFile       = errors.New("no_file")
	ErrInvalidInput = errors.New("invalid_input")
	ErrFileTooLarge = errors.New("file_too_large")
)
