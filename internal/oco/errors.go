package oco

import "errors"

// ErrNotFound is returned when an operation references an unknown group.
var ErrNotFound = errors.New("oco: group not found")

// ErrInvalidRequest is returned for malformed CreateGroup input.
var ErrInvalidRequest = errors.New("oco: invalid request")
