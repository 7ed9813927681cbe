package consul

import (
	"fmt"
	"log/slog"
	"strconv"

	consulapi "github.com/hashicorp/consul/api"
)

// ServiceName is the name instances register under
const ServiceName = "conference-server"

// ServiceConfig contains configuration for service registration
type ServiceConfig struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
	Meta    map[string]string
	Check   *HealthCheck
}

// HealthCheck defines health check configuration
type HealthCheck struct {
	HTTP     string
	Interval string
	Timeout  string
	// DeregisterAfter removes an instance whose check stays critical
	DeregisterAfter string
}

// NewServiceConfig describes this instance, checked through GET /health.
// The ID is stable per host and port so a restart replaces its own entry.
func NewServiceConfig(host string, port int, sessionBackend string) *ServiceConfig {
	return &ServiceConfig{
		ID:      fmt.Sprintf("%s-%s-%d", ServiceName, host, port),
		Name:    ServiceName,
		Address: host,
		Port:    port,
		Tags:    []string{"http", "conference"},
		Meta:    map[string]string{"session_backend": sessionBackend},
		Check: &HealthCheck{
			HTTP:            "http://" + host + ":" + strconv.Itoa(port) + "/health",
			Interval:        "10s",
			Timeout:         "3s",
			DeregisterAfter: "1m",
		},
	}
}

// Register registers a service with Consul, replacing any stale entry with
// the same ID
func (c *Client) Register(cfg *ServiceConfig) error {
	_ = c.api.Agent().ServiceDeregister(cfg.ID)

	registration := &consulapi.AgentServiceRegistration{
		ID:      cfg.ID,
		Name:    cfg.Name,
		Address: cfg.Address,
		Port:    cfg.Port,
		Tags:    cfg.Tags,
		Meta:    cfg.Meta,
	}

	if cfg.Check != nil {
		registration.Check = &consulapi.AgentServiceCheck{
			HTTP:                           cfg.Check.HTTP,
			Interval:                       cfg.Check.Interval,
			Timeout:                        cfg.Check.Timeout,
			DeregisterCriticalServiceAfter: cfg.Check.DeregisterAfter,
		}
	}

	if err := c.api.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	return nil
}

// Deregister removes a service from Consul
func (c *Client) Deregister(serviceID string) error {
	if err := c.api.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}

	return nil
}

// Registration is a live entry in the agent. A nil *Registration is valid
// and does nothing.
type Registration struct {
	client *Client
	id     string
	logger *slog.Logger
}

// RegisterInstance connects to the agent at addr and registers cfg. Failures
// are returned so the caller can decide whether to run unregistered.
func RegisterInstance(addr, token string, cfg *ServiceConfig, logger *slog.Logger) (*Registration, error) {
	client, err := NewClient(addr, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	if err := client.Register(cfg); err != nil {
		return nil, err
	}

	logger.Info("Registered with Consul", "service_id", cfg.ID, "consul_addr", addr)
	return &Registration{client: client, id: cfg.ID, logger: logger}, nil
}

// Close deregisters the instance
func (r *Registration) Close() {
	if r == nil {
		return
	}
	if err := r.client.Deregister(r.id); err != nil {
		r.logger.Error("Failed to deregister from Consul", "service_id", r.id, "error", err)
		return
	}
	r.logger.Info("Deregistered from Consul", "service_id", r.id)
}
