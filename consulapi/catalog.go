package consulapi

import (
	"errors"

	"github.com/hashicorp/consul/api"
	"github.com/jrife/fakeconsul/storage/registry"
	"github.com/jrife/fakeconsul/utils/stream"
	"go.uber.org/zap"
)

var _ CatalogAPI = (*Catalog)(nil)

// Catalog is the fake counterpart of *api.Catalog
type Catalog struct {
	client *Client
}

// Register registers the service in reg for an external node
func (catalog *Catalog) Register(reg *api.CatalogRegistration, q *api.WriteOptions) (*api.WriteMeta, error) {
	if _, err := catalog.client.begin(q.Context(), "catalog.register"); err != nil {
		return nil, err
	}

	if err := catalog.client.registry.RegisterExternal(reg); err != nil {
		return nil, err
	}

	return &api.WriteMeta{}, nil
}

// Deregister removes the service with dereg.ServiceID. Without
// a ServiceID every service registered for dereg.Node is removed.
func (catalog *Catalog) Deregister(dereg *api.CatalogDeregistration, q *api.WriteOptions) (*api.WriteMeta, error) {
	logger, err := catalog.client.begin(q.Context(), "catalog.deregister")

	if err != nil {
		return nil, err
	}

	if dereg == nil {
		return nil, errors.New("deregistration is required")
	}

	if dereg.ServiceID != "" {
		if err := catalog.client.registry.DeregisterExternal(catalog.client.serviceName(dereg.ServiceID)); err != nil {
			return nil, err
		}

		return &api.WriteMeta{}, nil
	}

	if dereg.Node == "" {
		return nil, errors.New("either ServiceID or Node is required")
	}

	for _, service := range catalog.client.registry.Services() {
		if service.Node == nil || *service.Node != dereg.Node {
			continue
		}

		logger.Debug("deregistering node service", zap.String("node", dereg.Node), zap.String("name", service.ServiceName))

		if err := catalog.client.registry.DeregisterExternal(service.ServiceName); err != nil {
			return nil, err
		}
	}

	return &api.WriteMeta{}, nil
}

// Service returns every instance of service, narrowed down to
// those carrying tag if tag is not empty
func (catalog *Catalog) Service(service, tag string, q *api.QueryOptions) ([]*api.CatalogService, *api.QueryMeta, error) {
	logger, err := catalog.client.begin(q.Context(), "catalog.service")

	if err != nil {
		return nil, nil, err
	}

	var tagged stream.Processor[registry.Service]

	if tag != "" {
		tagged = stream.Filter(func(match registry.Service) bool {
			return hasTag(match.ServiceTags, tag)
		})
	}

	matches := stream.Pipeline(
		stream.Slice(catalog.client.registry.Get(service, registry.All)),
		tagged,
		stream.Log(logger, "match", describe),
	)

	return stream.Collect(matches, registry.Service.CatalogService), queryMeta(), nil
}

// Services returns the name of every registered service
// mapped to the tags its instances carry
func (catalog *Catalog) Services(q *api.QueryOptions) (map[string][]string, *api.QueryMeta, error) {
	if _, err := catalog.client.begin(q.Context(), "catalog.services"); err != nil {
		return nil, nil, err
	}

	services := map[string][]string{}

	for _, service := range catalog.client.registry.Services() {
		tags, ok := services[service.ServiceName]

		if !ok {
			tags = []string{}
		}

		for _, tag := range service.ServiceTags {
			if !hasTag(tags, tag) {
				tags = append(tags, tag)
			}
		}

		services[service.ServiceName] = tags
	}

	return services, queryMeta(), nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}

	return false
}
