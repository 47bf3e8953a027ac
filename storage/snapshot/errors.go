package snapshot

import "errors"

var (
	// ErrNoSnapshot indicates that nothing has been persisted yet
	ErrNoSnapshot = errors.New("no snapshot")
	// ErrEmpty indicates that a snapshot exists but contains no data at all
	ErrEmpty = errors.New("snapshot is empty")
	// ErrTruncated indicates that a snapshot ends in the middle of its
	// header or of a record
	ErrTruncated = errors.New("snapshot is truncated")
	// ErrCorrupt indicates that a snapshot is complete but cannot be
	// decoded: bad magic, unsupported version, wrong kind or a malformed
	// record
	ErrCorrupt = errors.New("snapshot is corrupt")
	// ErrRecordTooLarge indicates that a record cannot be framed in a
	// snapshot
	ErrRecordTooLarge = errors.New("snapshot record is too large")
)
