package credstore

import "errors"

// Terminal rejections from the store. Rate limiting and unconfirmed email
// short-circuit the strategy chain; invalid credentials let the next
// strategy run.
var (
	ErrInvalidCredentials = errors.New("credstore: invalid credentials")
	ErrEmailNotConfirmed  = errors.New("credstore: email not confirmed")
	ErrRateLimited        = errors.New("credstore: too many requests")
	ErrAlreadyRegistered  = errors.New("credstore: user already registered")
	ErrUnauthorized       = errors.New("credstore: invalid or expired token")
	ErrUnavailable        = errors.New("credstore: service unavailable")
)
