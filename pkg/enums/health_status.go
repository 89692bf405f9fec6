package enums

// HealthStatus classifies how far a container type's realized RTP sits from its target.
type HealthStatus string

const (
	HealthInsufficientData HealthStatus = "insufficient_data"
	HealthHealthy          HealthStatus = "healthy"
	HealthWarning          HealthStatus = "warning"
	HealthCritical         HealthStatus = "critical"
)

// String implements fmt.Stringer.
func (s HealthStatus) String() string {
	return string(s)
}
