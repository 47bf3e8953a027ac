package registry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/consul/api"
	"github.com/jrife/fakeconsul/storage/snapshot"
	"github.com/jrife/fakeconsul/storage/snapshot/plugins/file"
	"go.uber.org/zap"
)

const (
	// SnapshotFile is the file name of the default snapshot
	SnapshotFile = ".fake_consul_services.m"
	// SnapshotName is the name the registry's snapshot is kept under
	SnapshotName = "services"
)

// ErrServiceTooLarge is returned when a service would not fit
// in a snapshot. The registry is left unchanged.
var ErrServiceTooLarge = errors.New("service too large")

// DefaultPath returns the snapshot path shared by every
// registry that isn't given its own snapshot.Store
func DefaultPath() string {
	return filepath.Join(os.TempDir(), SnapshotFile)
}

// Scope selects which of the services registered
// under a name Get returns
type Scope int

const (
	// First selects the earliest registration
	First Scope = iota
	// Last selects the latest registration
	Last
	// All selects every registration in order
	All
)

func (scope Scope) String() string {
	switch scope {
	case First:
		return "first"
	case Last:
		return "last"
	case All:
		return "all"
	}

	return fmt.Sprintf("Scope(%d)", int(scope))
}

// Config contains configuration
// for a registry
type Config struct {
	// Snapshots persists the registry. It defaults to a
	// file store at DefaultPath().
	Snapshots snapshot.Store
	Logger    *zap.Logger
}

var _ snapshot.Source = (*Registry)(nil)
var _ snapshot.Acceptor = (*Registry)(nil)

// Registry is the fake service catalog. It is not safe
// for concurrent use.
type Registry struct {
	logger    *zap.Logger
	snapshots snapshot.Store
	services  []Service
	restored  snapshot.Outcome
}

// New creates a registry and restores its last snapshot. A
// missing, empty or truncated snapshot yields an empty
// registry. Any other problem reading the snapshot is returned.
func New(config Config) (*Registry, error) {
	registry := &Registry{
		logger:    config.Logger,
		snapshots: config.Snapshots,
		services:  []Service{},
	}

	if registry.logger == nil {
		registry.logger = zap.L()
	}

	if registry.snapshots == nil {
		registry.snapshots = file.New(DefaultPath(), SnapshotName)
	}

	registry.logger = registry.logger.With(zap.String("component", "registry"), zap.String("snapshot", registry.snapshots.Name()))

	outcome, err := snapshot.Load(registry.snapshots, registry)

	if err != nil {
		return nil, fmt.Errorf("could not restore service snapshot: %w", err)
	}

	if outcome == snapshot.OutcomeTruncated {
		registry.logger.Warn("discarded truncated snapshot")
	}

	registry.restored = outcome
	registry.logger.Debug("restored", zap.Stringer("outcome", outcome), zap.Int("services", len(registry.services)))

	return registry, nil
}

// NewTemp creates a registry backed by a snapshot file with
// a unique name in the temp directory. Callers should Clear
// it when they are done.
func NewTemp() (*Registry, error) {
	snapshots, err := (&file.FilePlugin{}).NewTempStore(SnapshotName)

	if err != nil {
		return nil, err
	}

	return New(Config{Snapshots: snapshots})
}

// Restored reports how the snapshot was restored when
// the registry was created
func (registry *Registry) Restored() snapshot.Outcome {
	return registry.restored
}

// Get returns the services registered under name, narrowed
// down by scope. An unknown scope is treated as First. It
// returns an empty slice if nothing is registered under name.
func (registry *Registry) Get(name string, scope Scope) []Service {
	matches := []Service{}

	for _, service := range registry.services {
		if service.ServiceName == name {
			matches = append(matches, service.clone())
		}
	}

	if len(matches) == 0 {
		return matches
	}

	switch scope {
	case All:
		return matches
	case Last:
		return matches[len(matches)-1:]
	}

	return matches[:1]
}

// Service returns the first service registered under name
// or the zero Service if there is none
func (registry *Registry) Service(name string) Service {
	for _, service := range registry.services {
		if service.ServiceName == name {
			return service.clone()
		}
	}

	return Service{}
}

// Services returns every service in registration order
func (registry *Registry) Services() []Service {
	services := make([]Service, 0, len(registry.services))

	for _, service := range registry.services {
		services = append(services, service.clone())
	}

	return services
}

// Register adds a service to the local agent, replacing
// every service registered under the same name. Only the
// ID, Name, Address, Port, Tags, Meta and EnableTagOverride
// fields of registration are recorded. A service too large
// for a snapshot fails with ErrServiceTooLarge.
func (registry *Registry) Register(registration *api.AgentServiceRegistration) error {
	service, ignored := localService(registration)

	return registry.add(service, ignored)
}

// RegisterExternal adds a service to the catalog on behalf of
// an external node, replacing every service registered under
// the same name.
func (registry *Registry) RegisterExternal(registration *api.CatalogRegistration) error {
	service, ignored := externalService(registration)

	return registry.add(service, ignored)
}

// Deregister removes every service registered under name.
// Deregistering a name that is not registered is not an error.
func (registry *Registry) Deregister(name string) error {
	registry.logger.Debug("deregister", zap.String("name", name))
	registry.remove(name)

	return registry.persist()
}

// DeregisterExternal is the same as Deregister
func (registry *Registry) DeregisterExternal(name string) error {
	return registry.Deregister(name)
}

// Clear removes every service and deletes the snapshot so
// that the next registry created on it starts empty
func (registry *Registry) Clear() error {
	registry.logger.Debug("clear")
	registry.services = []Service{}

	if err := registry.snapshots.Clear(); err != nil {
		return fmt.Errorf("could not clear service snapshot: %w", err)
	}

	return nil
}

func (registry *Registry) add(service Service, ignored []string) error {
	if err := snapshot.CheckRecord(marshalService(service)); err != nil {
		registry.logger.Debug("rejected registration", zap.String("name", service.ServiceName), zap.Error(err))

		return fmt.Errorf("%w: %s: %w", ErrServiceTooLarge, service.ServiceName, err)
	}

	registry.logger.Debug("register", zap.String("name", service.ServiceName))

	if len(ignored) > 0 {
		registry.logger.Debug("ignored registration fields", zap.String("name", service.ServiceName), zap.Strings("fields", ignored))
	}

	registry.remove(service.ServiceName)
	registry.services = append(registry.services, service)

	return registry.persist()
}

func (registry *Registry) remove(name string) {
	services := registry.services[:0]

	for _, service := range registry.services {
		if service.ServiceName != name {
			services = append(services, service)
		}
	}

	registry.services = services
}

func (registry *Registry) persist() error {
	if err := registry.snapshots.Persist(registry); err != nil {
		return fmt.Errorf("could not persist service snapshot: %w", err)
	}

	return nil
}

// Snapshot implements snapshot.Source.Snapshot
func (registry *Registry) Snapshot() (io.ReadCloser, error) {
	records := make([][]byte, 0, len(registry.services))

	for _, service := range registry.services {
		records = append(records, marshalService(service))
	}

	return snapshot.NewReader(snapshot.KindServices, records)
}

// ApplySnapshot implements snapshot.Acceptor.ApplySnapshot.
// The current services are replaced only if the whole
// snapshot could be decoded.
func (registry *Registry) ApplySnapshot(snap io.Reader) error {
	records, err := snapshot.ReadAll(snap, snapshot.KindServices)

	if err != nil {
		return err
	}

	services := make([]Service, 0, len(records))

	for i, record := range records {
		service, err := unmarshalService(record)

		if err != nil {
			return fmt.Errorf("%w: service %d: %s", snapshot.ErrCorrupt, i, err)
		}

		services = append(services, service)
	}

	registry.services = services

	return nil
}
