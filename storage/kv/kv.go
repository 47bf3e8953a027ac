package kv

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/jrife/fakeconsul/storage/snapshot"
	"github.com/jrife/fakeconsul/storage/snapshot/plugins/file"
	"go.uber.org/zap"
)

const (
	// SnapshotFile is the file name of the default snapshot
	SnapshotFile = ".fake_consul.m"
	// SnapshotName is the name the store's snapshot is kept under
	SnapshotName = "kv"
)

// ErrValueTooLarge is returned by Put when the entry would not
// fit in a snapshot. The store is left unchanged.
var ErrValueTooLarge = errors.New("value too large")

// DefaultPath returns the snapshot path shared by every store
// that isn't given its own snapshot.Store
func DefaultPath() string {
	return filepath.Join(os.TempDir(), SnapshotFile)
}

// Config contains configuration
// for a store
type Config struct {
	// Snapshots persists the store. It defaults to a
	// file store at DefaultPath().
	Snapshots snapshot.Store
	Logger    *zap.Logger
}

var _ snapshot.Source = (*Store)(nil)
var _ snapshot.Acceptor = (*Store)(nil)

// Store is the fake key-value store. It is not safe for
// concurrent use.
type Store struct {
	logger    *zap.Logger
	snapshots snapshot.Store
	// string -> string. A nil value only exists between
	// a Put and the compaction that follows it.
	entries  *linkedhashmap.Map
	restored snapshot.Outcome
}

// New creates a store and restores its last snapshot. A missing,
// empty or truncated snapshot yields an empty store. Any other
// problem reading the snapshot is returned.
func New(config Config) (*Store, error) {
	store := &Store{
		logger:    config.Logger,
		snapshots: config.Snapshots,
		entries:   linkedhashmap.New(),
	}

	if store.logger == nil {
		store.logger = zap.L()
	}

	if store.snapshots == nil {
		store.snapshots = file.New(DefaultPath(), SnapshotName)
	}

	store.logger = store.logger.With(zap.String("component", "kv"), zap.String("snapshot", store.snapshots.Name()))

	outcome, err := snapshot.Load(store.snapshots, store)

	if err != nil {
		return nil, fmt.Errorf("could not restore kv snapshot: %w", err)
	}

	if outcome == snapshot.OutcomeTruncated {
		store.logger.Warn("discarded truncated snapshot")
	}

	store.restored = outcome
	store.logger.Debug("restored", zap.Stringer("outcome", outcome), zap.Int("entries", store.entries.Size()))

	return store, nil
}

// NewTemp creates a store backed by a snapshot file with a
// unique name in the temp directory. Callers should Clear
// it when they are done.
func NewTemp() (*Store, error) {
	snapshots, err := (&file.FilePlugin{}).NewTempStore(SnapshotName)

	if err != nil {
		return nil, err
	}

	return New(Config{Snapshots: snapshots})
}

// Restored reports how the snapshot was restored when
// the store was created
func (store *Store) Restored() snapshot.Outcome {
	return store.restored
}

// Get returns the value stored for key. It returns the
// empty string if the key does not exist.
func (store *Store) Get(key string) string {
	value, ok := store.entries.Get(key)

	if !ok || value == nil {
		return ""
	}

	return value.(string)
}

// GetRecurse returns the values of every key that starts
// with prefix, in insertion order.
func (store *Store) GetRecurse(prefix string) []string {
	values := []string{}
	iter := store.entries.Iterator()

	for iter.Next() {
		if iter.Value() == nil || !strings.HasPrefix(iter.Key().(string), prefix) {
			continue
		}

		values = append(values, iter.Value().(string))
	}

	return values
}

// Keys returns every key that starts with prefix, in insertion
// order. If separator is not empty, keys are cut off after the
// first separator following prefix and duplicates are dropped,
// so only the next level of the hierarchy is listed.
func (store *Store) Keys(prefix string, separator string) []string {
	keys := []string{}
	seen := map[string]bool{}
	iter := store.entries.Iterator()

	for iter.Next() {
		key := iter.Key().(string)

		if iter.Value() == nil || !strings.HasPrefix(key, prefix) {
			continue
		}

		if separator != "" {
			if i := strings.Index(key[len(prefix):], separator); i >= 0 {
				key = key[:len(prefix)+i+len(separator)]
			}
		}

		if seen[key] {
			continue
		}

		seen[key] = true
		keys = append(keys, key)
	}

	return keys
}

// Contains returns true if key is stored
func (store *Store) Contains(key string) bool {
	value, ok := store.entries.Get(key)

	return ok && value != nil
}

// Len returns the number of stored keys
func (store *Store) Len() int {
	return store.entries.Size()
}

// Put sets key to value and persists the store. A nil value
// removes the key. An existing key keeps its position in the
// iteration order. It returns ErrValueTooLarge without touching
// the store if the entry would not fit in a snapshot.
func (store *Store) Put(key string, value *string) error {
	if value == nil {
		store.logger.Debug("put", zap.String("key", key), zap.Bool("null", true))
		store.entries.Put(key, nil)
	} else {
		if err := snapshot.CheckRecord(marshalEntry(key, *value)); err != nil {
			store.logger.Debug("rejected put", zap.String("key", key), zap.Error(err))

			return fmt.Errorf("%w: %s: %w", ErrValueTooLarge, key, err)
		}

		store.logger.Debug("put", zap.String("key", key))
		store.entries.Put(key, *value)
	}

	store.compact()

	return store.persist()
}

// Delete removes key and persists the store. Deleting a
// key that does not exist is not an error.
func (store *Store) Delete(key string) error {
	store.logger.Debug("delete", zap.String("key", key))
	store.entries.Remove(key)
	store.compact()

	return store.persist()
}

// DeleteTree removes every key that starts with prefix
// and persists the store
func (store *Store) DeleteTree(prefix string) error {
	store.logger.Debug("delete tree", zap.String("prefix", prefix))

	for _, key := range store.entries.Keys() {
		if strings.HasPrefix(key.(string), prefix) {
			store.entries.Remove(key)
		}
	}

	store.compact()

	return store.persist()
}

// Clear removes every key and deletes the snapshot so that
// the next store created on it starts empty
func (store *Store) Clear() error {
	store.logger.Debug("clear")
	store.entries.Clear()

	if err := store.snapshots.Clear(); err != nil {
		return fmt.Errorf("could not clear kv snapshot: %w", err)
	}

	return nil
}

// compact removes every entry with a null value
func (store *Store) compact() {
	for _, key := range store.entries.Keys() {
		if value, _ := store.entries.Get(key); value == nil {
			store.entries.Remove(key)
		}
	}
}

func (store *Store) persist() error {
	if err := store.snapshots.Persist(store); err != nil {
		return fmt.Errorf("could not persist kv snapshot: %w", err)
	}

	return nil
}

// Snapshot implements snapshot.Source.Snapshot
func (store *Store) Snapshot() (io.ReadCloser, error) {
	records := make([][]byte, 0, store.entries.Size())
	iter := store.entries.Iterator()

	for iter.Next() {
		if iter.Value() == nil {
			continue
		}

		records = append(records, marshalEntry(iter.Key().(string), iter.Value().(string)))
	}

	return snapshot.NewReader(snapshot.KindKV, records)
}

// ApplySnapshot implements snapshot.Acceptor.ApplySnapshot.
// The current entries are replaced only if the whole snapshot
// could be decoded.
func (store *Store) ApplySnapshot(snap io.Reader) error {
	records, err := snapshot.ReadAll(snap, snapshot.KindKV)

	if err != nil {
		return err
	}

	entries := linkedhashmap.New()

	for i, record := range records {
		key, value, err := unmarshalEntry(record)

		if err != nil {
			return fmt.Errorf("%w: entry %d: %s", snapshot.ErrCorrupt, i, err)
		}

		entries.Put(key, value)
	}

	store.entries = entries

	return nil
}
