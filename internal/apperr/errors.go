package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrEncoding     = errors.New("unreadable encoding")
	ErrSerialize    = errors.New("cannot serialize header")
)
