// Package file stores a snapshot as a single file. Writes go to a
// temporary file in the same directory which is then renamed over
// the target, so readers see either the old or the new snapshot.
package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrife/fakeconsul/storage/snapshot"
	"github.com/jrife/fakeconsul/utils/uuid"
)

const (
	DriverName = "file"
)

func Plugins() []snapshot.Plugin {
	return []snapshot.Plugin{
		&FilePlugin{},
	}
}

type FilePlugin struct {
}

func (plugin *FilePlugin) Name() string {
	return DriverName
}

func (plugin *FilePlugin) NewStore(options snapshot.PluginOptions) (snapshot.Store, error) {
	if options.File == "" {
		return nil, fmt.Errorf("\"File\" is required")
	}

	dir := options.Dir

	if dir == "" {
		dir = os.TempDir()
	}

	return New(filepath.Join(dir, options.File), options.Name), nil
}

func (plugin *FilePlugin) NewTempStore(name string) (snapshot.Store, error) {
	return plugin.NewStore(snapshot.PluginOptions{
		Dir:  os.TempDir(),
		File: uuid.TempName(".fake_consul_" + name),
		Name: name,
	})
}

var _ snapshot.Store = (*FileStore)(nil)

// FileStore keeps a snapshot in the file at Path
type FileStore struct {
	path string
	name string
}

// New returns a FileStore for the file at path
func New(path string, name string) *FileStore {
	return &FileStore{path: path, name: name}
}

// Path returns the path of the snapshot file
func (store *FileStore) Path() string {
	return store.path
}

// Name implements snapshot.Store.Name
func (store *FileStore) Name() string {
	return store.name
}

// Persist implements snapshot.Store.Persist
func (store *FileStore) Persist(source snapshot.Source) error {
	snap, err := source.Snapshot()

	if err != nil {
		return fmt.Errorf("could not take snapshot of %s: %w", store.name, err)
	}

	defer snap.Close()

	dir := filepath.Dir(store.path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create snapshot directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")

	if err != nil {
		return fmt.Errorf("could not create temporary snapshot file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, snap); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("could not write snapshot to %s: %w", tmpName, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("could not close snapshot file %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, store.path); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("could not move snapshot to %s: %w", store.path, err)
	}

	return nil
}

// Restore implements snapshot.Store.Restore
func (store *FileStore) Restore(acceptor snapshot.Acceptor) error {
	f, err := os.Open(store.path)

	if os.IsNotExist(err) {
		return snapshot.ErrNoSnapshot
	}

	if err != nil {
		return fmt.Errorf("could not open snapshot %s: %w", store.path, err)
	}

	defer f.Close()

	return acceptor.ApplySnapshot(f)
}

// Clear implements snapshot.Store.Clear
func (store *FileStore) Clear() error {
	if err := os.Remove(store.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not remove snapshot %s: %w", store.path, err)
	}

	return nil
}
