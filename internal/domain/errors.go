package domain

import "errors"

var (
	ErrRoomFull        = errors.New("room full")
	ErrRoomNotFound    = errors.New("room not found")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnsupportedType = errors.New("unsupported message type")
	ErrRoomKeyInvalid  = errors.New("invalid room key")
)
