package aws

import "time"

// ServiceSnapshot is the service state relevant to deploys and health
// checks, refreshed on every poll. Running and pending counts can
// transiently exceed the desired count during a rolling deploy.
type ServiceSnapshot struct {
	Cluster           string
	Service           string
	Status            string
	RunningCount      int
	DesiredCount      int
	PendingCount      int
	ActiveDeployments int
	TaskDefinition    string
	LatestEvent       string
}

// TaskSnapshot describes one running task. Health is normalized to
// HEALTHY, UNHEALTHY or UNKNOWN; tasks without a container health check
// report UNKNOWN for their whole life.
type TaskSnapshot struct {
	TaskID           string
	TaskARN          string
	LastStatus       string
	Health           string
	CPU              string
	Memory           string
	PrivateIP        string
	AvailabilityZone string
	StartedAt        time.Time
}

// TargetHealthSnapshot describes one registered ALB target. Targets are
// correlated to tasks only informally, by private IP.
type TargetHealthSnapshot struct {
	TargetID    string
	Port        int32
	State       string
	Reason      string
	Description string
}

// ServiceUtilization carries recent average CPU and memory utilization
// for a service. Informational only.
type ServiceUtilization struct {
	CPUPercent    float64
	MemoryPercent float64
	HasData       bool
}

// LogEvent is one CloudWatch log line with its source stream.
type LogEvent struct {
	Timestamp time.Time
	Stream    string
	Message   string
}

// LogFilter selects a window of log events. Zero values mean "not set":
// no End means now, no Pattern means unfiltered, no Limit means the API
// default page size.
type LogFilter struct {
	Group   string
	Start   time.Time
	End     time.Time
	Pattern string
	Limit   int32
}

// Identity is the caller identity resolved during the credential
// preflight.
type Identity struct {
	Account string
	ARN     string
	UserID  string
}

const (
	// HealthHealthy is the explicit passing container health state.
	HealthHealthy = "HEALTHY"
	// HealthUnhealthy is the explicit failing container health state.
	HealthUnhealthy = "UNHEALTHY"
	// HealthUnknown covers tasks without a configured health check.
	HealthUnknown = "UNKNOWN"

	// TargetStateHealthy is the only passing ALB target state.
	TargetStateHealthy = "healthy"

	// ServiceStatusActive is the only healthy service lifecycle status.
	ServiceStatusActive = "ACTIVE"
)
