package types

type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "UP"
	HealthStatusDown     HealthStatus = "DOWN"
	HealthStatusDegraded HealthStatus = "DEGRADED"
)

// HealthComponent is the state of one dependency (storage, redis).
type HealthComponent struct {
	Status  HealthStatus `json:"status"`
	Details string       `json:"details,omitempty"`
}

// HealthCheck is the readiness report.
type HealthCheck struct {
	Status            HealthStatus               `json:"status"`
	Components        map[string]HealthComponent `json:"components"`
	Version           string                     `json:"version"`
	Timestamp         string                     `json:"timestamp"`
	Uptime            string                     `json:"uptime"`
	ActiveConnections *int                       `json:"activeConnections,omitempty"`
}

// Worse returns the more severe of two statuses.
func (s HealthStatus) Worse(other HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{HealthStatusUp: 0, HealthStatusDegraded: 1, HealthStatusDown: 2}
	if rank[other] > rank[s] {
		return other
	}
	return s
}
