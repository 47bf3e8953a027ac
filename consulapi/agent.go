package consulapi

import (
	"context"

	"github.com/hashicorp/consul/api"
	"github.com/jrife/fakeconsul/storage/registry"
	"github.com/jrife/fakeconsul/utils/stream"
	"go.uber.org/zap"
)

var _ AgentAPI = (*Agent)(nil)

// Agent is the fake counterpart of *api.Agent. The *api.Agent
// calls it mirrors take no options and so no context.
type Agent struct {
	client *Client
}

// ServiceRegister registers service on the local agent
func (agent *Agent) ServiceRegister(service *api.AgentServiceRegistration) error {
	agent.client.operation(context.Background(), "agent.service_register").Debug("register")

	return agent.client.registry.Register(service)
}

// ServiceDeregister removes the service registered with the
// given ID. If no service has that ID serviceID is taken to
// be a service name.
func (agent *Agent) ServiceDeregister(serviceID string) error {
	logger := agent.client.operation(context.Background(), "agent.service_deregister")
	name := agent.client.serviceName(serviceID)
	logger.Debug("resolved service", zap.String("id", serviceID), zap.String("name", name))

	return agent.client.registry.Deregister(name)
}

// Services returns the services registered on the local
// agent keyed by their ID. When several names share an ID
// the first registration is kept.
func (agent *Agent) Services() (map[string]*api.AgentService, error) {
	logger := agent.client.operation(context.Background(), "agent.services")

	local := stream.Pipeline(
		stream.Slice(agent.client.registry.Services()),
		stream.Filter(func(service registry.Service) bool { return service.Node == nil }),
		stream.Log(logger, "match", describe),
	)
	services := map[string]*api.AgentService{}

	for _, service := range stream.Collect(local, agentService) {
		if existing, ok := services[service.ID]; ok {
			logger.Debug("duplicate service id", zap.String("id", service.ID), zap.String("kept", existing.Service), zap.String("dropped", service.Service))

			continue
		}

		services[service.ID] = service
	}

	return services, nil
}

// serviceName returns the name of the first service
// registered with the given ID, or id itself
func (client *Client) serviceName(id string) string {
	for _, service := range client.registry.Services() {
		if service.ServiceID != nil && *service.ServiceID == id {
			return service.ServiceName
		}
	}

	return id
}

func agentService(service registry.Service) *api.AgentService {
	catalogService := service.CatalogService()
	converted := &api.AgentService{
		ID:                catalogService.ServiceID,
		Service:           catalogService.ServiceName,
		Tags:              catalogService.ServiceTags,
		Meta:              catalogService.ServiceMeta,
		Port:              catalogService.ServicePort,
		Address:           catalogService.ServiceAddress,
		EnableTagOverride: catalogService.ServiceEnableTagOverride,
	}

	// the agent reports a service registered without an
	// ID under its name
	if converted.ID == "" {
		converted.ID = converted.Service
	}

	return converted
}
