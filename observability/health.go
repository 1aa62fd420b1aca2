package observability

import "net/http"

// HealthStatus is the coarse state of a component or of the whole service.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusDegraded HealthStatus = "degraded"
)

// severity orders statuses so the worst one wins when aggregating.
func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusDown:
		return 2
	case HealthStatusDegraded:
		return 1
	}
	return 0
}

// Health is one component's report. Plugins put per-id lifecycle states
// in Details.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ServiceHealth is the /health document.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Unhealthy  []string     `json:"unhealthy,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{Service: service, Status: HealthStatusUp, Version: version}
}

// AddComponent records ch. The service status becomes the worst status seen
// and components that are not up are listed in Unhealthy.
func (sh *ServiceHealth) AddComponent(ch Health) {
	sh.Components = append(sh.Components, ch)
	if ch.Status != HealthStatusUp {
		sh.Unhealthy = append(sh.Unhealthy, ch.Name)
	}
	if ch.Status.severity() > sh.Status.severity() {
		sh.Status = ch.Status
	}
}

// HTTPStatus is 503 when the service is down. A degraded service still
// answers 200 so load balancers keep routing to it.
func (sh *ServiceHealth) HTTPStatus() int {
	if sh.Status == HealthStatusDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
