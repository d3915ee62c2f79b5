// Package services holds the business logic of the chat backend: the relay
// pipeline, history retrieval, identity and verification, and avatar
// selection. This file centralizes the service-level error values so callers
// can match them with errors.Is and the HTTP layer can map them to statuses.
package services

import (
	"errors"
	"fmt"
)

// Input errors. All of them match ErrInvalidInput.
var (
	// ErrInvalidInput is the class of caller errors rejected before any write.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyMessage is returned when the normalized message is empty.
	ErrEmptyMessage = fmt.Errorf("%w: message is empty", ErrInvalidInput)

	// ErrTooLong is returned when the message exceeds the configured rune cap.
	ErrTooLong = fmt.Errorf("%w: message too long", ErrInvalidInput)

	// ErrInvalidEmail is returned for addresses that do not parse.
	ErrInvalidEmail = fmt.Errorf("%w: invalid email", ErrInvalidInput)

	// ErrWeakPassword is returned when the password is empty or too short.
	ErrWeakPassword = fmt.Errorf("%w: password too short", ErrInvalidInput)

	// ErrInvalidAvatar is returned when the avatar is not in the catalogue.
	ErrInvalidAvatar = fmt.Errorf("%w: avatar not in catalogue", ErrInvalidInput)

	// ErrInvalidToken is returned when a verification token matches no
	// pending account, including a token that was already consumed.
	ErrInvalidToken = fmt.Errorf("%w: invalid verification token", ErrInvalidInput)
)

// Identity errors.
var (
	// ErrUnauthorized indicates the identity is unknown, or not verified
	// where verification is required.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials is returned by login for an unknown email or a
	// wrong password. The two cases are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotVerified is returned by login when the password is correct but
	// the email has not been verified yet.
	ErrNotVerified = errors.New("email not verified")

	// ErrEmailAlreadyUsed is returned by signup for a registered email.
	ErrEmailAlreadyUsed = errors.New("email already registered")
)

// Relay errors.
var (
	// ErrUpstreamUnavailable wraps every provider failure: unreachable,
	// non-2xx, missing credential, open circuit or empty completion. The user
	// turn stays persisted.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrStreamInterrupted is reported by StreamReply.Wait when the provider
	// stream ended abnormally after it had started. Nothing was persisted.
	ErrStreamInterrupted = errors.New("stream interrupted")

	// ErrStreamCancelled is reported by StreamReply.Wait when the caller's
	// context ended before completion. Nothing was persisted.
	ErrStreamCancelled = errors.New("stream cancelled")

	// ErrIdempotencyMismatch is returned when an Idempotency-Key is reused
	// with a different message. Nothing is written and the provider is not
	// called.
	ErrIdempotencyMismatch = errors.New("idempotency key reused with a different message")
)
