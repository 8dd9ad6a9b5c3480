package usecase

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthorized indicates the caller holds no active grant for the
	// target space, or attempted to act on another user without privilege.
	// Deliberately indistinct: it never reveals whether a grant exists.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrSessionNotFound indicates no open session exists for the pair.
	// Callers treat this as an idempotent "already closed" signal.
	ErrSessionNotFound = errors.New("no open session for user and space")
	// ErrSpaceNotFound indicates the target space does not resolve. It
	// wraps ErrInvalidInput: naming an unknown space on a write is a
	// caller mistake, not a missing resource.
	ErrSpaceNotFound = fmt.Errorf("%w: unknown space", ErrInvalidInput)
	// ErrGrantNotFound indicates no grant record exists for the pair.
	ErrGrantNotFound = errors.New("grant not found")
	// ErrInvalidInput indicates a missing or malformed required field.
	ErrInvalidInput = errors.New("invalid input")
)
