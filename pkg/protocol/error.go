package protocol

import (
	"errors"
	"fmt"
)

// ErrMissingNulTerminator is returned when GetString scans past the end of
// the current message without finding the expected NUL terminator.
type ErrMissingNulTerminator struct{}

func (e ErrMissingNulTerminator) Error() string {
	return "protocol: expected a NUL terminator"
}

// ErrInsufficientData is returned when a fixed-width field is requested but
// fewer bytes remain in the message than the field requires.
type ErrInsufficientData struct {
	Wanted    int
	Available int
}

func (e ErrInsufficientData) Error() string {
	return fmt.Sprintf("protocol: insufficient data: wanted %d bytes, %d available", e.Wanted, e.Available)
}

// ErrMessageSizeExceeded is returned when a message's declared length is
// larger than the reader's configured maximum. The session discards the
// oversized payload with Slurp and marks itself desynchronized.
type ErrMessageSizeExceeded struct {
	Max  int
	Size int
}

func (e ErrMessageSizeExceeded) Error() string {
	return fmt.Sprintf("protocol: message of size %d exceeds maximum of %d", e.Size, e.Max)
}

// UnwrapMessageSizeExceeded reports whether err is (or wraps) an
// ErrMessageSizeExceeded, returning it if so.
func UnwrapMessageSizeExceeded(err error) (ErrMessageSizeExceeded, bool) {
	var e ErrMessageSizeExceeded
	ok := errors.As(err, &e)
	return e, ok
}

// ErrUnknownMessageType is returned when a type byte does not correspond to
// any known backend message.
type ErrUnknownMessageType struct {
	Type byte
}

func (e ErrUnknownMessageType) Error() string {
	return fmt.Sprintf("protocol: unknown backend message type %q (%d)", rune(e.Type), e.Type)
}
