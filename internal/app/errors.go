package app

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// This message is intended to be shown to end users and should not enable account enumeration.
	ErrInvalidCredentials = errors.New("Incorrect email address or password")

	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation wraps rejected input; the wrapped message is safe to show
	// to clients.
	ErrValidation = errors.New("validation failed")

	// ErrIDMismatch is returned when a PUT body carries an ID that differs
	// from the route ID.
	ErrIDMismatch = errors.New("route and body IDs do not match")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailAlreadyExists       = errors.New("email already exists")

	ErrEmptyFile          = errors.New("uploaded file is empty")
	ErrFileTooLarge       = errors.New("uploaded file exceeds the size limit")
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
)
