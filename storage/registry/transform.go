package registry

import (
	"github.com/hashicorp/consul/api"
)

// definition holds the service fields shared by an agent
// registration and the service block of a catalog registration
type definition struct {
	id                string
	name              string
	address           string
	port              int
	tags              []string
	meta              map[string]string
	enableTagOverride bool
}

// apply copies every supplied field of definition onto
// the Service* fields of service. Zero values count as
// not supplied, except for the name.
func (definition definition) apply(service *Service) {
	service.ServiceName = definition.name

	if definition.id != "" {
		service.ServiceID = clonePtr(&definition.id)
	}

	if definition.address != "" {
		service.ServiceAddress = clonePtr(&definition.address)
	}

	if definition.port != 0 {
		service.ServicePort = clonePtr(&definition.port)
	}

	if definition.tags != nil {
		service.ServiceTags = cloneSlice(definition.tags)
	}

	if definition.meta != nil {
		service.ServiceMeta = cloneMap(definition.meta)
	}

	if definition.enableTagOverride {
		service.ServiceEnableTagOverride = clonePtr(&definition.enableTagOverride)
	}
}

func fromRegistration(registration *api.AgentServiceRegistration) (definition, []string) {
	var ignored []string

	if registration == nil {
		return definition{}, ignored
	}

	ignore := func(name string, set bool) {
		if set {
			ignored = append(ignored, name)
		}
	}

	ignore("Kind", registration.Kind != "")
	ignore("SocketPath", registration.SocketPath != "")
	ignore("TaggedAddresses", registration.TaggedAddresses != nil)
	ignore("Weights", registration.Weights != nil)
	ignore("Check", registration.Check != nil)
	ignore("Checks", registration.Checks != nil)
	ignore("Proxy", registration.Proxy != nil)
	ignore("Connect", registration.Connect != nil)
	ignore("Namespace", registration.Namespace != "")
	ignore("Partition", registration.Partition != "")

	return definition{
		id:                registration.ID,
		name:              registration.Name,
		address:           registration.Address,
		port:              registration.Port,
		tags:              registration.Tags,
		meta:              registration.Meta,
		enableTagOverride: registration.EnableTagOverride,
	}, ignored
}

func fromAgentService(agentService *api.AgentService) (definition, []string) {
	var ignored []string

	if agentService == nil {
		return definition{}, ignored
	}

	ignore := func(name string, set bool) {
		if set {
			ignored = append(ignored, "Service."+name)
		}
	}

	ignore("Kind", agentService.Kind != "")
	ignore("SocketPath", agentService.SocketPath != "")
	ignore("TaggedAddresses", agentService.TaggedAddresses != nil)
	ignore("Weights", agentService.Weights != (api.AgentWeights{}))
	ignore("Proxy", agentService.Proxy != nil)
	ignore("Connect", agentService.Connect != nil)
	ignore("Namespace", agentService.Namespace != "")
	ignore("Partition", agentService.Partition != "")
	ignore("Datacenter", agentService.Datacenter != "")

	return definition{
		id:                agentService.ID,
		name:              agentService.Service,
		address:           agentService.Address,
		port:              agentService.Port,
		tags:              agentService.Tags,
		meta:              agentService.Meta,
		enableTagOverride: agentService.EnableTagOverride,
	}, ignored
}

// localService builds the record for a service registered
// on the local agent
func localService(registration *api.AgentServiceRegistration) (Service, []string) {
	var service Service

	definition, ignored := fromRegistration(registration)
	definition.apply(&service)

	return service, ignored
}

// externalService builds the record for a service registered
// directly in the catalog. Node fields are copied as they are
// and the service block is expanded into the Service* fields.
func externalService(registration *api.CatalogRegistration) (Service, []string) {
	var service Service

	if registration == nil {
		return service, nil
	}

	optional := func(s string) *string {
		if s == "" {
			return nil
		}

		return &s
	}

	service.ID = optional(registration.ID)
	service.Node = optional(registration.Node)
	service.Address = optional(registration.Address)
	service.Datacenter = optional(registration.Datacenter)
	service.TaggedAddresses = cloneMap(registration.TaggedAddresses)
	service.NodeMeta = cloneMap(registration.NodeMeta)

	definition, ignored := fromAgentService(registration.Service)
	definition.apply(&service)

	if registration.Check != nil {
		ignored = append(ignored, "Check")
	}

	if registration.Checks != nil {
		ignored = append(ignored, "Checks")
	}

	if registration.SkipNodeUpdate {
		ignored = append(ignored, "SkipNodeUpdate")
	}

	if registration.Partition != "" {
		ignored = append(ignored, "Partition")
	}

	return service, ignored
}
