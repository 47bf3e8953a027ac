package registry

import (
	"github.com/hashicorp/consul/api"
)

// Service is one registered service as the catalog would
// report it. ServiceName is always set. Every other field
// is optional: a nil pointer, slice or map means the field
// was never supplied, while an empty slice or map was
// supplied empty.
type Service struct {
	// Node fields, only set by RegisterExternal
	ID              *string
	Node            *string
	Address         *string
	Datacenter      *string
	TaggedAddresses map[string]string
	NodeMeta        map[string]string

	ServiceID                *string
	ServiceName              string
	ServiceAddress           *string
	ServicePort              *int
	ServiceTags              []string
	ServiceMeta              map[string]string
	ServiceEnableTagOverride *bool
}

// IsZero returns true if no field of service is set
func (service Service) IsZero() bool {
	return service.ID == nil &&
		service.Node == nil &&
		service.Address == nil &&
		service.Datacenter == nil &&
		service.TaggedAddresses == nil &&
		service.NodeMeta == nil &&
		service.ServiceID == nil &&
		service.ServiceName == "" &&
		service.ServiceAddress == nil &&
		service.ServicePort == nil &&
		service.ServiceTags == nil &&
		service.ServiceMeta == nil &&
		service.ServiceEnableTagOverride == nil
}

// CatalogService converts service into the type the
// consul client returns from the catalog endpoints.
// Unset fields become zero values.
func (service Service) CatalogService() *api.CatalogService {
	catalogService := &api.CatalogService{
		ID:              deref(service.ID),
		Node:            deref(service.Node),
		Address:         deref(service.Address),
		Datacenter:      deref(service.Datacenter),
		TaggedAddresses: cloneMap(service.TaggedAddresses),
		NodeMeta:        cloneMap(service.NodeMeta),
		ServiceID:       deref(service.ServiceID),
		ServiceName:     service.ServiceName,
		ServiceAddress:  deref(service.ServiceAddress),
		ServiceTags:     cloneSlice(service.ServiceTags),
		ServiceMeta:     cloneMap(service.ServiceMeta),
	}

	if service.ServicePort != nil {
		catalogService.ServicePort = *service.ServicePort
	}

	if service.ServiceEnableTagOverride != nil {
		catalogService.ServiceEnableTagOverride = *service.ServiceEnableTagOverride
	}

	return catalogService
}

func (service Service) clone() Service {
	return Service{
		ID:                       clonePtr(service.ID),
		Node:                     clonePtr(service.Node),
		Address:                  clonePtr(service.Address),
		Datacenter:               clonePtr(service.Datacenter),
		TaggedAddresses:          cloneMap(service.TaggedAddresses),
		NodeMeta:                 cloneMap(service.NodeMeta),
		ServiceID:                clonePtr(service.ServiceID),
		ServiceName:              service.ServiceName,
		ServiceAddress:           clonePtr(service.ServiceAddress),
		ServicePort:              clonePtr(service.ServicePort),
		ServiceTags:              cloneSlice(service.ServiceTags),
		ServiceMeta:              cloneMap(service.ServiceMeta),
		ServiceEnableTagOverride: clonePtr(service.ServiceEnableTagOverride),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}

	v := *p

	return &v
}

func cloneSlice(s []string) []string {
	if s == nil {
		return nil
	}

	return append(make([]string, 0, len(s)), s...)
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}

	c := make(map[string]string, len(m))

	for k, v := range m {
		c[k] = v
	}

	return c
}
