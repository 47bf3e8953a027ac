package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/jrife/fakeconsul/utils/lvstream"
)

// Kind identifies which component wrote a snapshot
type Kind byte

const (
	// KindKV marks a key-value store snapshot
	KindKV Kind = 'k'
	// KindServices marks a service registry snapshot
	KindServices Kind = 's'
)

func (kind Kind) String() string {
	switch kind {
	case KindKV:
		return "kv"
	case KindServices:
		return "services"
	}

	return fmt.Sprintf("Kind(%d)", byte(kind))
}

// Version is the snapshot format version written by Encoder
const Version byte = 2

var magic = []byte("FCSN")

// Every value after the header starts with one of these tags.
// The end value carries the number of records as a uvarint.
const (
	tagRecord byte = 'r'
	tagEnd    byte = 'e'
)

func header(kind Kind) []byte {
	h := make([]byte, 0, len(magic)+2)
	h = append(h, magic...)
	h = append(h, Version, byte(kind))

	return h
}

// Encoder writes a snapshot of one kind. A snapshot is only
// complete once Close has written its end value.
type Encoder struct {
	writer  *lvstream.Writer
	records uint64
}

// NewEncoder writes the snapshot header for kind to w and
// returns an Encoder for the records that follow.
func NewEncoder(w io.Writer, kind Kind) (*Encoder, error) {
	writer := lvstream.NewWriter(w)

	if err := writer.WriteValue(header(kind)); err != nil {
		return nil, fmt.Errorf("could not write snapshot header: %w", err)
	}

	return &Encoder{writer: writer}, nil
}

// CheckRecord returns ErrRecordTooLarge if record would not
// fit in a snapshot value
func CheckRecord(record []byte) error {
	if len(record)+1 > lvstream.MaxValueSize {
		return fmt.Errorf("%w: %d > max(%d)", ErrRecordTooLarge, len(record), lvstream.MaxValueSize-1)
	}

	return nil
}

// Encode writes one record
func (encoder *Encoder) Encode(record []byte) error {
	if err := CheckRecord(record); err != nil {
		return err
	}

	if err := encoder.writer.WriteValue(append([]byte{tagRecord}, record...)); err != nil {
		return fmt.Errorf("could not write snapshot record: %w", err)
	}

	encoder.records++

	return nil
}

// Close writes the end value
func (encoder *Encoder) Close() error {
	if err := encoder.writer.WriteValue(binary.AppendUvarint([]byte{tagEnd}, encoder.records)); err != nil {
		return fmt.Errorf("could not write end of snapshot: %w", err)
	}

	return nil
}

// Decoder reads a snapshot of one kind
type Decoder struct {
	reader  *lvstream.Reader
	records uint64
	done    bool
}

// NewDecoder reads and checks the snapshot header from r.
// It returns ErrEmpty if r has no data, ErrTruncated if
// the header is cut short and ErrCorrupt if the header does
// not describe a snapshot of this kind and version.
func NewDecoder(r io.Reader, kind Kind) (*Decoder, error) {
	reader := lvstream.NewReader(r)

	h, err := reader.ReadValue()

	if err != nil {
		return nil, wrapReadError("header", err, ErrEmpty)
	}

	if len(h) != len(magic)+2 || !bytes.Equal(h[:len(magic)], magic) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}

	if h[len(magic)] != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h[len(magic)])
	}

	if Kind(h[len(magic)+1]) != kind {
		return nil, fmt.Errorf("%w: expected a %s snapshot, found %s", ErrCorrupt, kind, Kind(h[len(magic)+1]))
	}

	return &Decoder{reader: reader}, nil
}

// Decode returns the next record. It returns io.EOF after
// the end value and ErrTruncated if the stream ends before it,
// even when the cut falls between two records.
func (decoder *Decoder) Decode() ([]byte, error) {
	if decoder.done {
		return nil, io.EOF
	}

	value, err := decoder.reader.ReadValue()

	if err != nil {
		return nil, wrapReadError("record", err, fmt.Errorf("%w: end of snapshot is missing after %d records", ErrTruncated, decoder.records))
	}

	if len(value) == 0 {
		return nil, fmt.Errorf("%w: untagged value", ErrCorrupt)
	}

	switch value[0] {
	case tagRecord:
		decoder.records++

		return value[1:], nil
	case tagEnd:
		return nil, decoder.end(value[1:])
	}

	return nil, fmt.Errorf("%w: unknown tag %q", ErrCorrupt, value[0])
}

func (decoder *Decoder) end(value []byte) error {
	count, n := binary.Uvarint(value)

	if n <= 0 || n != len(value) {
		return fmt.Errorf("%w: malformed end of snapshot", ErrCorrupt)
	}

	if count != decoder.records {
		return fmt.Errorf("%w: end of snapshot counts %d records, read %d", ErrCorrupt, count, decoder.records)
	}

	if _, err := decoder.reader.ReadValue(); err != io.EOF {
		return fmt.Errorf("%w: data after end of snapshot", ErrCorrupt)
	}

	decoder.done = true

	return io.EOF
}

func wrapReadError(what string, err error, onEOF error) error {
	switch {
	case err == io.EOF:
		return onEOF
	case err == io.ErrUnexpectedEOF:
		return fmt.Errorf("%w: %s cut short", ErrTruncated, what)
	case errors.Is(err, lvstream.ErrTooLarge):
		return fmt.Errorf("%w: %s", ErrCorrupt, err)
	}

	return fmt.Errorf("could not read snapshot %s: %w", what, err)
}

// NewReader encodes records as a complete snapshot of
// the given kind. Sources use it to implement Snapshot.
func NewReader(kind Kind, records [][]byte) (io.ReadCloser, error) {
	var buf bytes.Buffer

	encoder, err := NewEncoder(&buf, kind)

	if err != nil {
		return nil, err
	}

	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			return nil, err
		}
	}

	if err := encoder.Close(); err != nil {
		return nil, err
	}

	return io.NopCloser(&buf), nil
}

// ReadAll decodes every record of a snapshot of the given
// kind. Acceptors use it so that nothing is applied unless
// the whole snapshot could be read.
func ReadAll(r io.Reader, kind Kind) ([][]byte, error) {
	decoder, err := NewDecoder(r, kind)

	if err != nil {
		return nil, err
	}

	records := [][]byte{}

	for {
		record, err := decoder.Decode()

		if err == io.EOF {
			return records, nil
		}

		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}
}
