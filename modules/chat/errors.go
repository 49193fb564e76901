package chat

import "errors"

// Sentinel errors for chat operations.
var (
	// ErrRoomNotFound is returned when a room id is unknown.
	ErrRoomNotFound = errors.New("room not found")

	// ErrInvalidInput is returned for empty room names or message content.
	ErrInvalidInput = errors.New("invalid input")
)
