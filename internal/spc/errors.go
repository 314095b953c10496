package spc

import "errors"

var (
	// ErrNoSession means no usable session could be obtained, even after
	// the backoff schedule allowed a login attempt.
	ErrNoSession = errors.New("spc: no session obtainable")

	// ErrLoginRejected means the panel accepted the POST but returned no
	// session token (bad credentials or locked user).
	ErrLoginRejected = errors.New("spc: login rejected by panel")

	// ErrSessionExpired means a request came back as a login page and one
	// re-login plus retry did not help.
	ErrSessionExpired = errors.New("spc: session expired")

	// ErrNotFound means a command reference matched no known entity.
	ErrNotFound = errors.New("spc: no matching entity")

	// ErrUnknownCommand means the command word matched no synonym group.
	ErrUnknownCommand = errors.New("spc: unknown command")
)
