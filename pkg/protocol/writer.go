package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Writer assembles a single frontend message into a frame buffer and emits
// it to the underlying io.Writer once complete. A Writer is not safe for
// concurrent use; the session serializes all writes through a mutex.
type Writer struct {
	io.Writer
	frame  bytes.Buffer
	typed  bool
	putbuf [64]byte
	err    error
}

// NewWriter constructs a Writer that flushes completed frames to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{Writer: w}
}

// Start begins a typed frontend message. The type byte and four
// placeholder length bytes are written immediately; End() patches the
// length once the payload is known.
func (w *Writer) Start(t FrontendMessage) {
	w.Reset()
	w.typed = true
	w.putbuf[0] = byte(t)
	w.frame.Write(w.putbuf[:5])
}

// StartUntyped begins a message with no type byte (Startup, SSLRequest,
// CancelRequest). Only the four placeholder length bytes are written.
func (w *Writer) StartUntyped() {
	w.Reset()
	w.typed = false
	w.frame.Write(w.putbuf[:4])
}

func (w *Writer) AddByte(b byte) {
	if w.err != nil {
		return
	}
	w.err = w.frame.WriteByte(b)
}

func (w *Writer) AddInt16(i int16) {
	if w.err != nil {
		return
	}
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(i))
	_, w.err = w.frame.Write(b[:])
}

func (w *Writer) AddUint16(i uint16) {
	w.AddInt16(int16(i))
}

func (w *Writer) AddInt32(i int32) {
	if w.err != nil {
		return
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(i))
	_, w.err = w.frame.Write(b[:])
}

func (w *Writer) AddUint32(i uint32) {
	w.AddInt32(int32(i))
}

func (w *Writer) AddBytes(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.frame.Write(b)
}

func (w *Writer) AddString(s string) {
	if w.err != nil {
		return
	}
	_, w.err = w.frame.WriteString(s)
}

// AddCString writes s followed by a NUL terminator.
func (w *Writer) AddCString(s string) {
	w.AddString(s)
	w.AddNullTerminate()
}

func (w *Writer) AddNullTerminate() {
	if w.err != nil {
		return
	}
	w.err = w.frame.WriteByte(0)
}

func (w *Writer) Error() error {
	return w.err
}

// Reset discards any in-progress frame.
func (w *Writer) Reset() {
	w.frame.Reset()
	w.err = nil
}

// End patches the length prefix and flushes the completed frame.
func (w *Writer) End() error {
	defer w.Reset()
	if w.err != nil {
		return w.err
	}

	buf := w.frame.Bytes()
	if w.typed {
		length := uint32(len(buf) - 1) // exclude the type byte
		binary.BigEndian.PutUint32(buf[1:5], length)
	} else {
		length := uint32(len(buf))
		binary.BigEndian.PutUint32(buf[0:4], length)
	}

	_, err := w.Write(buf)
	return err
}
