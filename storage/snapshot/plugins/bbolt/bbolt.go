package bbolt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jrife/fakeconsul/storage/snapshot"
	"github.com/jrife/fakeconsul/utils/uuid"
	bolt "go.etcd.io/bbolt"
)

const (
	DriverName = "bbolt"
	// DatabaseFile is the file name used inside PluginOptions.Dir.
	// Every component shares it, each under its own key.
	DatabaseFile = "fake_consul.db"
	// OpenTimeout bounds how long an operation waits for the
	// file lock held by another process
	OpenTimeout = 5 * time.Second
)

var bucketName = []byte("snapshots")

func Plugins() []snapshot.Plugin {
	return []snapshot.Plugin{
		&BBoltPlugin{},
	}
}

type BBoltPlugin struct {
}

func (plugin *BBoltPlugin) Name() string {
	return DriverName
}

func (plugin *BBoltPlugin) NewStore(options snapshot.PluginOptions) (snapshot.Store, error) {
	if options.Name == "" {
		return nil, fmt.Errorf("\"Name\" is required")
	}

	dir := options.Dir

	if dir == "" {
		dir = os.TempDir()
	}

	return New(BBoltStoreConfig{
		Path: filepath.Join(dir, DatabaseFile),
		Name: options.Name,
	}), nil
}

func (plugin *BBoltPlugin) NewTempStore(name string) (snapshot.Store, error) {
	return New(BBoltStoreConfig{
		Path: filepath.Join(os.TempDir(), uuid.TempName("bbolt")),
		Name: name,
	}), nil
}

type BBoltStoreConfig struct {
	Path    string
	Name    string
	Timeout time.Duration
}

var _ snapshot.Store = (*BBoltStore)(nil)

// BBoltStore keeps a snapshot as the value under its name in the
// snapshots bucket of a bbolt database. The database is opened
// for each operation and closed again so that several stores,
// possibly in different processes, can share one file.
type BBoltStore struct {
	path    string
	name    string
	timeout time.Duration
}

func New(config BBoltStoreConfig) *BBoltStore {
	store := &BBoltStore{
		path:    config.Path,
		name:    config.Name,
		timeout: config.Timeout,
	}

	if store.timeout == 0 {
		store.timeout = OpenTimeout
	}

	return store
}

// Path returns the path of the database file
func (store *BBoltStore) Path() string {
	return store.path
}

// Name implements snapshot.Store.Name
func (store *BBoltStore) Name() string {
	return store.name
}

func (store *BBoltStore) open() (*bolt.DB, error) {
	db, err := bolt.Open(store.path, 0666, &bolt.Options{Timeout: store.timeout})

	if err != nil {
		return nil, fmt.Errorf("could not open bbolt store at %s: %w", store.path, err)
	}

	return db, nil
}

// writable checks the database file before a write. A zero-size
// file is left for bolt.Open to initialize. A truncated one holds
// nothing readable for any store and is removed.
func (store *BBoltStore) writable() (bool, error) {
	exists, err := store.check()

	switch {
	case errors.Is(err, snapshot.ErrEmpty):
		return true, nil
	case errors.Is(err, snapshot.ErrTruncated):
		if err := store.Delete(); err != nil {
			return false, err
		}

		return false, nil
	}

	return exists, err
}

// Persist implements snapshot.Store.Persist
func (store *BBoltStore) Persist(source snapshot.Source) error {
	snap, err := source.Snapshot()

	if err != nil {
		return fmt.Errorf("could not take snapshot of %s: %w", store.name, err)
	}

	defer snap.Close()

	data, err := io.ReadAll(snap)

	if err != nil {
		return fmt.Errorf("could not read snapshot of %s: %w", store.name, err)
	}

	if _, err := store.writable(); err != nil {
		return err
	}

	db, err := store.open()

	if err != nil {
		return err
	}

	defer db.Close()

	if err := db.Update(func(txn *bolt.Tx) error {
		bucket, err := txn.CreateBucketIfNotExists(bucketName)

		if err != nil {
			return fmt.Errorf("could not ensure snapshots bucket exists: %w", err)
		}

		return bucket.Put([]byte(store.name), data)
	}); err != nil {
		return fmt.Errorf("could not write snapshot of %s: %w", store.name, err)
	}

	return nil
}

// Restore implements snapshot.Store.Restore. A zero-size
// database file restores as ErrEmpty and one cut short as
// ErrTruncated.
func (store *BBoltStore) Restore(acceptor snapshot.Acceptor) error {
	if ok, err := store.check(); err != nil {
		return err
	} else if !ok {
		return snapshot.ErrNoSnapshot
	}

	db, err := store.open()

	if err != nil {
		return err
	}

	var data []byte

	err = db.View(func(txn *bolt.Tx) error {
		bucket := txn.Bucket(bucketName)

		if bucket == nil {
			return snapshot.ErrNoSnapshot
		}

		value := bucket.Get([]byte(store.name))

		if value == nil {
			return snapshot.ErrNoSnapshot
		}

		// value is only valid for the life of the transaction
		data = append([]byte{}, value...)

		return nil
	})

	db.Close()

	if err != nil {
		return err
	}

	return acceptor.ApplySnapshot(bytes.NewReader(data))
}

// Clear implements snapshot.Store.Clear
func (store *BBoltStore) Clear() error {
	if ok, err := store.writable(); err != nil || !ok {
		return err
	}

	db, err := store.open()

	if err != nil {
		return err
	}

	defer db.Close()

	if err := db.Update(func(txn *bolt.Tx) error {
		bucket := txn.Bucket(bucketName)

		if bucket == nil {
			return nil
		}

		return bucket.Delete([]byte(store.name))
	}); err != nil {
		return fmt.Errorf("could not delete snapshot of %s: %w", store.name, err)
	}

	return nil
}

// Delete removes the whole database file, including the
// snapshots of every other store sharing it
func (store *BBoltStore) Delete() error {
	if err := os.RemoveAll(store.path); err != nil {
		return fmt.Errorf("could not remove path %s: %w", store.path, err)
	}

	return nil
}
