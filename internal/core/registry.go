package core

// ServiceRegistry holds the domain services, constructed once at startup
// and threaded explicitly into the API layer.
type ServiceRegistry struct {
	Devices   *DeviceService
	Generator *Generator
	Source    *EventSource
}
