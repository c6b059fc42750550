package domain

import "errors"

var (
	// ErrLLMNotConfigured is returned before any work when no model credential is set.
	ErrLLMNotConfigured = errors.New("language model credential not configured")
	// ErrMailNotConfigured is returned by the mailer path when relay credentials are missing.
	ErrMailNotConfigured = errors.New("mail relay credentials not configured")
	ErrEmptyQuestion     = errors.New("question is required")
	ErrInvalidToken      = errors.New("invalid unsubscribe token")
)
