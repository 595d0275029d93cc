package app

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameExists    = errors.New("username already exists")
	ErrEmailExists       = errors.New("email already exists")
	ErrInvalidCredential = errors.New("invalid username or password")

	ErrSessionNotFound = errors.New("session not found")
	ErrMessageEmpty    = errors.New("message content is empty")
	ErrMessageTooLong  = errors.New("message content is too long")
	ErrLLMConfig       = errors.New("llm config is invalid")
	ErrLLMUnavailable  = errors.New("language model request failed")
	ErrMessageEnqueue  = errors.New("message enqueue failed")

	ErrTelephonyConfig = errors.New("telephony is not configured")
	ErrCallFailed      = errors.New("failed to initiate call")
	ErrCallCooldown    = errors.New("a crisis call was placed recently")
)
