package ws

import (
	"errors"

	"quizhub/pkg/types"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendQueueFull    = errors.New("send queue full")
)

// Response codes for failed requests. The push channel never closes a
// connection over a failed request; it answers with one of these.
const (
	CodeConflict   = types.ErrCodeConflict
	CodeNotFound   = types.ErrCodeNotFound
	CodeValidation = types.ErrCodeValidation
)
