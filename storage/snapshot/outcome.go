package snapshot

import (
	"errors"
)

// Outcome describes how restoring a snapshot ended
type Outcome int

const (
	// OutcomeFailed means the snapshot could not be restored and
	// the error returned alongside it must be handled
	OutcomeFailed Outcome = iota
	// OutcomeMissing means nothing had been persisted
	OutcomeMissing
	// OutcomeEmpty means a snapshot existed but held no bytes
	OutcomeEmpty
	// OutcomeTruncated means the snapshot was cut short and was discarded
	OutcomeTruncated
	// OutcomeRestored means the snapshot was applied
	OutcomeRestored
)

func (outcome Outcome) String() string {
	switch outcome {
	case OutcomeFailed:
		return "failed"
	case OutcomeMissing:
		return "missing"
	case OutcomeEmpty:
		return "empty"
	case OutcomeTruncated:
		return "truncated"
	case OutcomeRestored:
		return "restored"
	}

	return "unknown"
}

// Load restores the snapshot held by store into acceptor.
// Missing, empty and truncated snapshots leave acceptor
// untouched and are reported through the outcome only.
// Every other failure is returned with OutcomeFailed.
func Load(store Store, acceptor Acceptor) (Outcome, error) {
	err := store.Restore(acceptor)

	switch {
	case err == nil:
		return OutcomeRestored, nil
	case errors.Is(err, ErrNoSnapshot):
		return OutcomeMissing, nil
	case errors.Is(err, ErrEmpty):
		return OutcomeEmpty, nil
	case errors.Is(err, ErrTruncated):
		return OutcomeTruncated, nil
	}

	return OutcomeFailed, err
}
