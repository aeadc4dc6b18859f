package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrBotNotFound       = errors.New("bot not registered")
	ErrMissingSetting    = errors.New("required setting is missing")
	ErrMalformedUpdate   = errors.New("malformed update payload")
	ErrEmptyConversation = errors.New("conversation has no steps")
)
