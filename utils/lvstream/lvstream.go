// Package lvstream frames a sequence of byte values as
// [length|value|length|value...] where length is a 4-byte
// big-endian unsigned integer.
package lvstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxValueSize is the largest value a Reader will accept. 10 MB
var MaxValueSize = 10 * 1024 * 1024

// ErrTooLarge is returned when a length prefix exceeds MaxValueSize
var ErrTooLarge = errors.New("encoded value length is too large")

// Writer writes length-prefixed values to an underlying writer
type Writer struct {
	w      io.Writer
	length []byte
}

// NewWriter returns a Writer that writes to w
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:      w,
		length: make([]byte, 4),
	}
}

// WriteValue writes the length prefix for value followed by value
func (writer *Writer) WriteValue(value []byte) error {
	if len(value) > MaxValueSize {
		return fmt.Errorf("%w: %d > max(%d)", ErrTooLarge, len(value), MaxValueSize)
	}

	binary.BigEndian.PutUint32(writer.length, uint32(len(value)))

	if _, err := writer.w.Write(writer.length); err != nil {
		return err
	}

	if _, err := writer.w.Write(value); err != nil {
		return err
	}

	return nil
}

// Reader reads length-prefixed values from an underlying reader
type Reader struct {
	r      io.Reader
	length []byte
}

// NewReader returns a Reader that reads from r
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:      r,
		length: make([]byte, 4),
	}
}

// ReadValue reads the next value. It returns io.EOF if the stream
// ends cleanly between two values and io.ErrUnexpectedEOF if the
// stream ends in the middle of a length prefix or a value.
func (reader *Reader) ReadValue() ([]byte, error) {
	if _, err := io.ReadFull(reader.r, reader.length); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(reader.length)

	if uint64(length) > uint64(MaxValueSize) {
		return nil, fmt.Errorf("%w: %d > max(%d)", ErrTooLarge, length, MaxValueSize)
	}

	value := make([]byte, length)

	if _, err := io.ReadFull(reader.r, value); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}

		return nil, err
	}

	return value, nil
}
