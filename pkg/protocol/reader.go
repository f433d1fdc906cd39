package protocol

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
)

// DefaultMaxMessageSize bounds how large a single backend message may be
// before the reader refuses to buffer it and reports
// ErrMessageSizeExceeded.
const DefaultMaxMessageSize = 1 << 24 // 16 MiB

// Reader consumes framed backend messages from an underlying byte stream.
// Reader is not safe for concurrent use.
type Reader struct {
	buf            *bufio.Reader
	Msg            []byte
	MaxMessageSize int
	header         [4]byte
}

// NewReader constructs a Reader over r with the given buffer size. A
// bufferSize <= 0 selects DefaultMaxMessageSize.
func NewReader(r io.Reader, bufferSize int) *Reader {
	if bufferSize <= 0 {
		bufferSize = DefaultMaxMessageSize
	}

	return &Reader{
		buf:            bufio.NewReaderSize(r, bufferSize),
		MaxMessageSize: bufferSize,
	}
}

func (r *Reader) reset(size int) {
	if cap(r.Msg) >= size {
		r.Msg = r.Msg[:size]
		return
	}

	allocSize := size
	if allocSize < 4096 {
		allocSize = 4096
	}
	r.Msg = make([]byte, size, allocSize)
}

// ReadByte reads a single byte directly off the stream, outside any message
// frame (e.g. the type byte of a frame whose body ReadUntypedMessage then
// reads).
func (r *Reader) ReadByte() (byte, error) {
	return r.buf.ReadByte()
}

// ReadBackendMessage reads the next typed backend message: a one-byte type
// tag, a four-byte big-endian length (including itself), and exactly
// length-4 bytes of payload. The payload is left in r.Msg for the caller to
// decode with the GetX accessors.
func (r *Reader) ReadBackendMessage() (BackendMessage, error) {
	tb, err := r.buf.ReadByte()
	if err != nil {
		return 0, err
	}

	msg := BackendMessage(tb)
	if !msg.known() {
		return msg, ErrUnknownMessageType{Type: tb}
	}

	size, err := r.readMsgSize()
	if err != nil {
		return 0, err
	}

	if size > r.MaxMessageSize || size < 0 {
		return msg, ErrMessageSizeExceeded{Max: r.MaxMessageSize, Size: size}
	}

	r.reset(size)
	_, err = io.ReadFull(r.buf, r.Msg)
	if err != nil {
		return 0, err
	}

	return msg, nil
}

// ReadUntypedMessage reads a length-prefixed message with no leading type
// byte: used only for the pre-startup version/negotiation frames.
func (r *Reader) ReadUntypedMessage() error {
	size, err := r.readMsgSize()
	if err != nil {
		return err
	}

	if size > r.MaxMessageSize || size < 0 {
		return ErrMessageSizeExceeded{Max: r.MaxMessageSize, Size: size}
	}

	r.reset(size)
	_, err = io.ReadFull(r.buf, r.Msg)
	return err
}

func (r *Reader) readMsgSize() (int, error) {
	_, err := io.ReadFull(r.buf, r.header[:])
	if err != nil {
		return 0, err
	}

	size := int(binary.BigEndian.Uint32(r.header[:]))
	size -= 4 // the length field covers itself
	return size, nil
}

// Slurp discards the next size bytes from the stream without buffering them
// all at once; used to recover from ErrMessageSizeExceeded.
func (r *Reader) Slurp(size int) error {
	remaining := size
	for remaining > 0 {
		reading := remaining
		if reading > r.MaxMessageSize {
			reading = r.MaxMessageSize
		}

		r.reset(reading)
		n, err := io.ReadFull(r.buf, r.Msg)
		if err != nil {
			return err
		}

		remaining -= n
	}

	return nil
}

// GetString reads a NUL-terminated string from the current message buffer.
func (r *Reader) GetString() (string, error) {
	pos := bytes.IndexByte(r.Msg, 0)
	if pos == -1 {
		return "", ErrMissingNulTerminator{}
	}

	s := string(r.Msg[:pos])
	r.Msg = r.Msg[pos+1:]
	return s, nil
}

// GetBytes returns the next n bytes of the current message. n == -1 is
// treated as a NULL value and returns (nil, nil).
func (r *Reader) GetBytes(n int) ([]byte, error) {
	if n == -1 {
		return nil, nil
	}
	if len(r.Msg) < n {
		return nil, ErrInsufficientData{Wanted: n, Available: len(r.Msg)}
	}

	v := r.Msg[:n]
	r.Msg = r.Msg[n:]
	return v, nil
}

// GetByte returns the next single byte of the current message.
func (r *Reader) GetByte() (byte, error) {
	b, err := r.GetBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) GetUint16() (uint16, error) {
	if len(r.Msg) < 2 {
		return 0, ErrInsufficientData{Wanted: 2, Available: len(r.Msg)}
	}
	v := binary.BigEndian.Uint16(r.Msg[:2])
	r.Msg = r.Msg[2:]
	return v, nil
}

func (r *Reader) GetInt16() (int16, error) {
	v, err := r.GetUint16()
	return int16(v), err
}

func (r *Reader) GetUint32() (uint32, error) {
	if len(r.Msg) < 4 {
		return 0, ErrInsufficientData{Wanted: 4, Available: len(r.Msg)}
	}
	v := binary.BigEndian.Uint32(r.Msg[:4])
	r.Msg = r.Msg[4:]
	return v, nil
}

func (r *Reader) GetInt32() (int32, error) {
	v, err := r.GetUint32()
	return int32(v), err
}

// Len reports how many unconsumed bytes remain in the current message.
func (r *Reader) Len() int {
	return len(r.Msg)
}
