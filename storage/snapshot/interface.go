package snapshot

import (
	"io"
)

// Acceptor describes something that can
// apply a snapshot
type Acceptor interface {
	ApplySnapshot(snap io.Reader) error
}

// Source describes something that can
// generate a snapshot
type Source interface {
	Snapshot() (io.ReadCloser, error)
}

// Store is the backing storage for the snapshot of
// a single component.
type Store interface {
	// Name returns the name of the component whose
	// snapshot this store holds
	Name() string
	// Persist reads a full snapshot from source and
	// overwrites whatever was stored before.
	Persist(source Source) error
	// Restore hands the stored snapshot to acceptor. It
	// returns ErrNoSnapshot if nothing has been stored.
	Restore(acceptor Acceptor) error
	// Clear removes the stored snapshot. It has no effect
	// and returns nil if nothing has been stored.
	Clear() error
}

// PluginOptions tells a plugin where a store
// lives
type PluginOptions struct {
	// Dir is the directory holding the store's files
	Dir string
	// File is the file name a single-file driver should use
	File string
	// Name is the component name, see Store.Name
	Name string
}

// Plugin represents a snapshot storage driver
type Plugin interface {
	// Name returns the name of the driver
	Name() string
	// NewStore returns a store configured by options
	NewStore(options PluginOptions) (Store, error)
	// NewTempStore returns a store at a unique location
	// in the system temp directory. It is meant for tests
	// that need an isolated store.
	NewTempStore(name string) (Store, error)
}
