// Package registry is an in-process stand-in for the consul service
// catalog.
//
// Services registered on the local agent take their fields from an
// api.AgentServiceRegistration and are recorded the way the catalog
// reports them, with a Service prefix:
//
//  Register(&api.AgentServiceRegistration{ID: "web-1", Name: "web", Port: 80})
//  Service("web") // {ServiceID: web-1, ServiceName: web, ServicePort: 80}
//
// Services registered for an external node keep the node fields of the
// api.CatalogRegistration as they are and expand its Service block the
// same way.
//
// Registering a name replaces whatever was registered under it before.
// Every mutation persists the registry through a snapshot.Store and New
// restores it, so registrations outlive the process.
package registry
