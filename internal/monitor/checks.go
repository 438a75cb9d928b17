package monitor

import (
	"context"
	"fmt"
	"net"

	"github.com/bgdnvk/fargo/internal/aws"
)

// ServiceCheck is the service-level result of one iteration.
type ServiceCheck struct {
	Status            string   `json:"status" yaml:"status"`
	RunningCount      int      `json:"runningCount" yaml:"runningCount"`
	DesiredCount      int      `json:"desiredCount" yaml:"desiredCount"`
	PendingCount      int      `json:"pendingCount" yaml:"pendingCount"`
	ActiveDeployments int      `json:"activeDeployments" yaml:"activeDeployments"`
	Warnings          []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Notes             []string `json:"notes,omitempty" yaml:"notes,omitempty"`
	Critical          bool     `json:"critical" yaml:"critical"`
	Err               string   `json:"error,omitempty" yaml:"error,omitempty"`
	LatestEvent       string   `json:"-" yaml:"-"`
}

// TaskCheck is the per-task health tally of one iteration.
type TaskCheck struct {
	Total     int                `json:"total" yaml:"total"`
	Healthy   int                `json:"healthy" yaml:"healthy"`
	Unhealthy int                `json:"unhealthy" yaml:"unhealthy"`
	Unknown   int                `json:"unknown" yaml:"unknown"`
	Critical  bool               `json:"critical" yaml:"critical"`
	Err       string             `json:"error,omitempty" yaml:"error,omitempty"`
	Tasks     []aws.TaskSnapshot `json:"-" yaml:"-"`
}

// TargetCheck is the ALB target-group result of one iteration. When no
// target group is configured the check is skipped and never critical.
type TargetCheck struct {
	Configured bool                       `json:"configured" yaml:"configured"`
	Total      int                        `json:"total" yaml:"total"`
	Healthy    int                        `json:"healthy" yaml:"healthy"`
	Unhealthy  int                        `json:"unhealthy" yaml:"unhealthy"`
	Notes      []string                   `json:"notes,omitempty" yaml:"notes,omitempty"`
	Critical   bool                       `json:"critical" yaml:"critical"`
	Err        string                     `json:"error,omitempty" yaml:"error,omitempty"`
	Targets    []aws.TargetHealthSnapshot `json:"-" yaml:"-"`
}

// evaluateService applies the service health policy to a snapshot.
// Under-provisioning is critical; over-provisioning is informational
// only, since rollouts legitimately overshoot the desired count. A
// rollout in progress (more than one deployment) is a warning, not a
// failure.
func evaluateService(snap aws.ServiceSnapshot) ServiceCheck {
	check := ServiceCheck{
		Status:            snap.Status,
		RunningCount:      snap.RunningCount,
		DesiredCount:      snap.DesiredCount,
		PendingCount:      snap.PendingCount,
		ActiveDeployments: snap.ActiveDeployments,
		LatestEvent:       snap.LatestEvent,
	}

	if snap.Status != aws.ServiceStatusActive {
		check.Critical = true
		check.Warnings = append(check.Warnings, fmt.Sprintf("service status is %s", snap.Status))
	}

	switch {
	case snap.RunningCount < snap.DesiredCount:
		check.Critical = true
		check.Warnings = append(check.Warnings,
			fmt.Sprintf("running %d of %d desired tasks", snap.RunningCount, snap.DesiredCount))
	case snap.RunningCount > snap.DesiredCount:
		check.Notes = append(check.Notes,
			fmt.Sprintf("running %d tasks, above desired %d", snap.RunningCount, snap.DesiredCount))
	}

	if snap.ActiveDeployments != 1 {
		check.Warnings = append(check.Warnings,
			fmt.Sprintf("%d active deployments", snap.ActiveDeployments))
	}

	return check
}

// evaluateTasks tallies task health. Zero running tasks is always
// critical. UNKNOWN is tolerated; tasks without a container health
// check never report anything else.
func evaluateTasks(tasks []aws.TaskSnapshot) TaskCheck {
	check := TaskCheck{Total: len(tasks), Tasks: tasks}
	if len(tasks) == 0 {
		check.Critical = true
		return check
	}

	for _, task := range tasks {
		switch task.Health {
		case aws.HealthHealthy:
			check.Healthy++
		case aws.HealthUnknown:
			check.Unknown++
		default:
			check.Unhealthy++
			check.Critical = true
		}
	}
	return check
}

// evaluateTargets applies the target policy: anything not "healthy"
// (draining, initial, unused, unhealthy) counts against the group.
func evaluateTargets(targets []aws.TargetHealthSnapshot) TargetCheck {
	check := TargetCheck{Configured: true, Total: len(targets), Targets: targets}
	for _, target := range targets {
		if target.State == aws.TargetStateHealthy {
			check.Healthy++
		} else {
			check.Unhealthy++
			check.Critical = true
		}
	}
	return check
}

func (m *Monitor) checkService(ctx context.Context, cfg Config) ServiceCheck {
	snap, err := m.api.DescribeService(ctx, cfg.Cluster, cfg.Service)
	if err != nil {
		// Cannot confirm health this round; the next iteration retries.
		return ServiceCheck{Critical: true, Err: err.Error()}
	}
	return evaluateService(snap)
}

func (m *Monitor) checkTasks(ctx context.Context, cfg Config) TaskCheck {
	arns, err := m.api.ListRunningTasks(ctx, cfg.Cluster, cfg.Service)
	if err != nil {
		return TaskCheck{Critical: true, Err: err.Error()}
	}
	if len(arns) == 0 {
		return evaluateTasks(nil)
	}
	tasks, err := m.api.DescribeTasks(ctx, cfg.Cluster, arns)
	if err != nil {
		return TaskCheck{Total: len(arns), Critical: true, Err: err.Error()}
	}
	return evaluateTasks(tasks)
}

func (m *Monitor) checkTargets(ctx context.Context, cfg Config) TargetCheck {
	if cfg.TargetGroupARN == "" {
		return TargetCheck{Configured: false}
	}
	targets, err := m.api.DescribeTargetHealth(ctx, cfg.TargetGroupARN)
	if err != nil {
		return TargetCheck{Configured: true, Critical: true, Err: err.Error()}
	}
	check := evaluateTargets(targets)
	check.Notes = append(check.Notes, m.annotateOrphans(ctx, targets)...)
	return check
}

// annotateOrphans flags unhealthy IP targets whose ENI no longer exists:
// their task is already gone and the target is only waiting to be
// deregistered. Lookup failures are ignored; this is diagnosis, not a
// verdict input.
func (m *Monitor) annotateOrphans(ctx context.Context, targets []aws.TargetHealthSnapshot) []string {
	var notes []string
	for _, target := range targets {
		if target.State == aws.TargetStateHealthy {
			continue
		}
		if net.ParseIP(target.TargetID) == nil {
			continue
		}
		found, _, err := m.api.FindNetworkInterfaceByIP(ctx, target.TargetID)
		if err == nil && !found {
			notes = append(notes,
				fmt.Sprintf("target %s has no matching network interface; task is gone, awaiting deregistration", target.TargetID))
		}
	}
	return notes
}
