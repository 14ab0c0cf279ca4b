package quarry

const (
	// Name is the service name reported in logs and the health endpoint
	Name = "quarry"

	// Version is the engine release version
	Version = "0.3.0"
)
