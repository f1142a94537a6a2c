package store

import "errors"

var (
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrInvalidCredential = errors.New("invalid credential")
)
