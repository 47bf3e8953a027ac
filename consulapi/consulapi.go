// Package consulapi exposes the fake stores through the same calls
// the consul api client offers, so code written against
// *api.KV, *api.Agent and *api.Catalog can depend on the
// KVAPI, AgentAPI and CatalogAPI interfaces and be handed
// either the real client or this one.
package consulapi

import (
	"context"
	"fmt"

	"github.com/hashicorp/consul/api"
	"github.com/jrife/fakeconsul/config"
	"github.com/jrife/fakeconsul/storage/kv"
	"github.com/jrife/fakeconsul/storage/registry"
	"github.com/jrife/fakeconsul/storage/snapshot"
	"github.com/jrife/fakeconsul/storage/snapshot/plugins"
	"github.com/jrife/fakeconsul/utils/log"
	"go.uber.org/zap"
)

// KVAPI is the part of *api.KV that the fake implements
type KVAPI interface {
	Get(key string, q *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
	List(prefix string, q *api.QueryOptions) (api.KVPairs, *api.QueryMeta, error)
	Keys(prefix, separator string, q *api.QueryOptions) ([]string, *api.QueryMeta, error)
	Put(p *api.KVPair, q *api.WriteOptions) (*api.WriteMeta, error)
	Delete(key string, w *api.WriteOptions) (*api.WriteMeta, error)
	DeleteTree(prefix string, w *api.WriteOptions) (*api.WriteMeta, error)
}

// AgentAPI is the part of *api.Agent that the fake implements
type AgentAPI interface {
	ServiceRegister(service *api.AgentServiceRegistration) error
	ServiceDeregister(serviceID string) error
	Services() (map[string]*api.AgentService, error)
}

// CatalogAPI is the part of *api.Catalog that the fake implements
type CatalogAPI interface {
	Register(reg *api.CatalogRegistration, q *api.WriteOptions) (*api.WriteMeta, error)
	Deregister(dereg *api.CatalogDeregistration, q *api.WriteOptions) (*api.WriteMeta, error)
	Service(service, tag string, q *api.QueryOptions) ([]*api.CatalogService, *api.QueryMeta, error)
	Services(q *api.QueryOptions) (map[string][]string, *api.QueryMeta, error)
}

var _ KVAPI = (*api.KV)(nil)
var _ AgentAPI = (*api.Agent)(nil)
var _ CatalogAPI = (*api.Catalog)(nil)

// Client is a fake consul client
type Client struct {
	logger   *zap.Logger
	store    *kv.Store
	registry *registry.Registry
}

// New builds a client whose stores keep their snapshots where
// cfg says. A nil cfg uses config.Default().
func New(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := log.New(cfg.Log)

	if err != nil {
		return nil, err
	}

	plugin := plugins.Plugin(cfg.Snapshot.Driver)

	kvSnapshots, err := plugin.NewStore(snapshot.PluginOptions{
		Dir:  cfg.Snapshot.Dir,
		File: kv.SnapshotFile,
		Name: kv.SnapshotName,
	})

	if err != nil {
		return nil, fmt.Errorf("could not create kv snapshot store: %w", err)
	}

	registrySnapshots, err := plugin.NewStore(snapshot.PluginOptions{
		Dir:  cfg.Snapshot.Dir,
		File: registry.SnapshotFile,
		Name: registry.SnapshotName,
	})

	if err != nil {
		return nil, fmt.Errorf("could not create service snapshot store: %w", err)
	}

	store, err := kv.New(kv.Config{Snapshots: kvSnapshots, Logger: logger})

	if err != nil {
		return nil, err
	}

	reg, err := registry.New(registry.Config{Snapshots: registrySnapshots, Logger: logger})

	if err != nil {
		return nil, err
	}

	logger.Info("fake consul ready",
		zap.String("driver", plugin.Name()),
		zap.String("dir", cfg.Snapshot.Dir),
		zap.Stringer("kv", store.Restored()),
		zap.Stringer("services", reg.Restored()),
	)

	return NewWithStores(store, reg, logger), nil
}

// NewWithStores builds a client on top of existing stores. A nil
// logger uses zap.L().
func NewWithStores(store *kv.Store, reg *registry.Registry, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.L()
	}

	return &Client{
		logger:   logger.With(zap.String("component", "consulapi")),
		store:    store,
		registry: reg,
	}
}

// KV returns a handle to the key-value endpoints
func (client *Client) KV() *KV {
	return &KV{client: client}
}

// Agent returns a handle to the agent endpoints
func (client *Client) Agent() *Agent {
	return &Agent{client: client}
}

// Catalog returns a handle to the catalog endpoints
func (client *Client) Catalog() *Catalog {
	return &Catalog{client: client}
}

// Store returns the key-value store behind the client
func (client *Client) Store() *kv.Store {
	return client.store
}

// Registry returns the service registry behind the client
func (client *Client) Registry() *registry.Registry {
	return client.registry
}

// Clear empties both stores and deletes their snapshots
func (client *Client) Clear() error {
	if err := client.store.Clear(); err != nil {
		return err
	}

	return client.registry.Clear()
}

// begin returns the logger for one call and fails the call if
// its context is already done, as the real client would
func (client *Client) begin(ctx context.Context, op string) (*zap.Logger, error) {
	logger := client.operation(ctx, op)

	if err := ctx.Err(); err != nil {
		logger.Debug("context done", zap.Error(err))

		return nil, err
	}

	return logger, nil
}

// operation returns the logger for one call
func (client *Client) operation(ctx context.Context, op string) *zap.Logger {
	return log.LoggerFromContext(ctx, client.logger).With(zap.String("op", op))
}

func describe(service registry.Service) []zap.Field {
	fields := []zap.Field{zap.String("name", service.ServiceName)}

	if service.ServiceID != nil {
		fields = append(fields, zap.String("id", *service.ServiceID))
	}

	if service.Node != nil {
		fields = append(fields, zap.String("node", *service.Node))
	}

	return fields
}

func queryMeta() *api.QueryMeta {
	return &api.QueryMeta{KnownLeader: true}
}
