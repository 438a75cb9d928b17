package monitor

import (
	"testing"

	"github.com/bgdnvk/fargo/internal/aws"
)

func activeSnap(running, desired int) aws.ServiceSnapshot {
	return aws.ServiceSnapshot{
		Cluster:           "prod",
		Service:           "web",
		Status:            "ACTIVE",
		RunningCount:      running,
		DesiredCount:      desired,
		ActiveDeployments: 1,
	}
}

func TestEvaluateServiceHealthy(t *testing.T) {
	check := evaluateService(activeSnap(2, 2))
	if check.Critical {
		t.Error("evaluateService(2/2 ACTIVE) critical = true, want false")
	}
	if len(check.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", check.Warnings)
	}
}

func TestEvaluateServiceInactiveStatus(t *testing.T) {
	snap := activeSnap(2, 2)
	snap.Status = "INACTIVE"
	check := evaluateService(snap)
	if !check.Critical {
		t.Error("evaluateService(INACTIVE) critical = false, want true")
	}
}

func TestEvaluateServiceUnderProvisioned(t *testing.T) {
	check := evaluateService(activeSnap(1, 2))
	if !check.Critical {
		t.Error("evaluateService(1/2) critical = false, want true")
	}
	if len(check.Warnings) == 0 {
		t.Error("under-provisioned service produced no warning")
	}
}

func TestEvaluateServiceOverProvisionedIsInformational(t *testing.T) {
	check := evaluateService(activeSnap(3, 2))
	if check.Critical {
		t.Error("evaluateService(3/2) critical = true, want false (over-provisioning is not a failure)")
	}
	if len(check.Notes) == 0 {
		t.Error("over-provisioned service produced no note")
	}
}

func TestEvaluateServiceMidRolloutIsWarningOnly(t *testing.T) {
	snap := activeSnap(2, 2)
	snap.ActiveDeployments = 2
	check := evaluateService(snap)
	if check.Critical {
		t.Error("evaluateService(2 deployments) critical = true, want false")
	}
	if len(check.Warnings) == 0 {
		t.Error("mid-rollout service produced no warning")
	}
}

func TestEvaluateTasksAllHealthy(t *testing.T) {
	check := evaluateTasks([]aws.TaskSnapshot{
		{TaskID: "a", Health: aws.HealthHealthy},
		{TaskID: "b", Health: aws.HealthHealthy},
	})
	if check.Critical {
		t.Error("critical = true for all-healthy tasks, want false")
	}
	if check.Healthy != 2 || check.Unhealthy != 0 || check.Unknown != 0 {
		t.Errorf("tally = %d/%d/%d, want 2/0/0", check.Healthy, check.Unhealthy, check.Unknown)
	}
}

func TestEvaluateTasksExplicitUnhealthy(t *testing.T) {
	check := evaluateTasks([]aws.TaskSnapshot{
		{TaskID: "a", Health: aws.HealthHealthy},
		{TaskID: "b", Health: aws.HealthUnhealthy},
	})
	if !check.Critical {
		t.Error("critical = false with an UNHEALTHY task, want true")
	}
	if check.Unhealthy != 1 {
		t.Errorf("Unhealthy = %d, want 1", check.Unhealthy)
	}
}

func TestEvaluateTasksUnknownTolerated(t *testing.T) {
	check := evaluateTasks([]aws.TaskSnapshot{
		{TaskID: "a", Health: aws.HealthUnknown},
		{TaskID: "b", Health: aws.HealthUnknown},
	})
	if check.Critical {
		t.Error("critical = true for UNKNOWN-only tasks, want false (no health check configured)")
	}
	if check.Unknown != 2 {
		t.Errorf("Unknown = %d, want 2", check.Unknown)
	}
}

func TestEvaluateTasksZeroTasksIsCritical(t *testing.T) {
	check := evaluateTasks(nil)
	if !check.Critical {
		t.Error("critical = false for zero running tasks, want true")
	}
}

func TestEvaluateTargetsAllHealthy(t *testing.T) {
	check := evaluateTargets([]aws.TargetHealthSnapshot{
		{TargetID: "10.0.1.5", State: "healthy"},
		{TargetID: "10.0.2.6", State: "healthy"},
	})
	if check.Critical {
		t.Error("critical = true for all-healthy targets, want false")
	}
	if check.Healthy != 2 {
		t.Errorf("Healthy = %d, want 2", check.Healthy)
	}
}

func TestEvaluateTargetsNonHealthyState(t *testing.T) {
	cases := []string{"unhealthy", "draining", "initial", "unused"}
	for _, state := range cases {
		check := evaluateTargets([]aws.TargetHealthSnapshot{
			{TargetID: "10.0.1.5", State: state},
		})
		if !check.Critical {
			t.Errorf("critical = false for target state %q, want true", state)
		}
	}
}

func TestEvaluateTargetsEmptyGroup(t *testing.T) {
	check := evaluateTargets(nil)
	if check.Critical {
		t.Error("critical = true for empty target group, want false")
	}
	if !check.Configured {
		t.Error("Configured = false, want true")
	}
}
