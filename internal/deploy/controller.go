// Package deploy drives a rolling deployment of one container image to
// an existing ECS Fargate service: register a new task definition
// revision, force a new deployment, wait for stability, verify task
// health and roll back to the previous revision when anything fails.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bgdnvk/fargo/internal/aws"
	"github.com/bgdnvk/fargo/internal/clock"
	"github.com/bgdnvk/fargo/internal/logging"
	"github.com/bgdnvk/fargo/internal/output"
)

const (
	// stabilityPollInterval is how often the service is re-described
	// while waiting for the rollout to settle.
	stabilityPollInterval = 10 * time.Second
	// postStabilityGrace absorbs container startup latency before task
	// health is trusted.
	postStabilityGrace = 15 * time.Second
	// minTimeout is the smallest stability budget a request may carry.
	minTimeout = 60 * time.Second
)

var errStabilityTimeout = errors.New("stability timeout")

// API is the slice of the cloud facade the controller needs.
type API interface {
	DescribeService(ctx context.Context, cluster, service string) (aws.ServiceSnapshot, error)
	RegisterClonedTaskDefinition(ctx context.Context, ref, image string) (string, error)
	UpdateServiceTaskDefinition(ctx context.Context, cluster, service, taskDef string) (string, error)
	ListRunningTasks(ctx context.Context, cluster, service string) ([]string, error)
	DescribeTasks(ctx context.Context, cluster string, taskARNs []string) ([]aws.TaskSnapshot, error)
}

// Request describes one deployment. Timeout bounds only the stability
// wait, not the individual AWS calls.
type Request struct {
	Cluster       string
	Service       string
	Image         string
	Timeout       time.Duration
	WaitForStable bool
}

// Validate rejects a request before any cloud call is made.
func (r Request) Validate() error {
	if r.Cluster == "" {
		return &Error{Kind: KindInvalidInput, Op: "cluster name is required"}
	}
	if r.Service == "" {
		return &Error{Kind: KindInvalidInput, Op: "service name is required"}
	}
	if r.Image == "" {
		return &Error{Kind: KindInvalidInput, Op: "image URI is required"}
	}
	if r.Timeout < minTimeout {
		return &Error{Kind: KindInvalidInput, Op: fmt.Sprintf("timeout must be at least %s, got %s", minTimeout, r.Timeout)}
	}
	return nil
}

// Outcome is the terminal state of a deployment run.
type Outcome string

const (
	// OutcomeDeployed means the rollout completed, stabilized and passed
	// the task health check.
	OutcomeDeployed Outcome = "deployed"
	// OutcomeUnconfirmed means the service was updated but stability was
	// not awaited or the wait was interrupted.
	OutcomeUnconfirmed Outcome = "deployed-unconfirmed"
	// OutcomeRolledBack means the rollout failed and the service was
	// pointed back at the previous revision.
	OutcomeRolledBack Outcome = "rolled-back"
	// OutcomeRollbackFailed means the rollback itself failed; the
	// service state needs manual intervention.
	OutcomeRollbackFailed Outcome = "rollback-failed"
	// OutcomeFailed means the run aborted without committing a service
	// mutation, so no rollback was needed.
	OutcomeFailed Outcome = "failed"
)

// Result is the structured summary emitted for every run that passed
// validation, whatever branch it took.
type Result struct {
	Outcome            Outcome `json:"outcome"`
	Cluster            string  `json:"cluster"`
	Service            string  `json:"service"`
	Image              string  `json:"image"`
	PreviousTaskDef    string  `json:"previousTaskDefinition,omitempty"`
	NewTaskDef         string  `json:"newTaskDefinition,omitempty"`
	DeploymentID       string  `json:"deploymentId,omitempty"`
	Reason             string  `json:"reason,omitempty"`
	ElapsedSeconds     float64 `json:"elapsedSeconds"`
	RolledBackToTarget bool    `json:"rolledBack"`
}

// Controller runs the deployment state machine. It is stateless between
// runs; everything is re-fetched from the provider.
type Controller struct {
	api     API
	clock   clock.Clock
	printer *output.Printer
}

// NewController wires a controller to a facade, a clock and a printer.
func NewController(api API, clk clock.Clock, printer *output.Printer) *Controller {
	return &Controller{api: api, clock: clk, printer: printer}
}

// Deploy executes the full state machine for one request. The returned
// Result is populated on every branch past validation; err carries the
// failure kind for exit-code mapping. Register, update and rollback
// calls run on a non-cancellable context: once issued they are awaited
// to completion, so an interrupt never leaves a mutation half-sent.
func (c *Controller) Deploy(ctx context.Context, req Request) (res Result, err error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	start := c.clock.Now()
	res = Result{
		Outcome: OutcomeFailed,
		Cluster: req.Cluster,
		Service: req.Service,
		Image:   req.Image,
	}
	defer func() {
		res.ElapsedSeconds = c.clock.Now().Sub(start).Seconds()
	}()

	c.printer.Header(fmt.Sprintf("Deploying %s", req.Image))
	c.printer.Info("cluster %s, service %s", req.Cluster, req.Service)

	// Resolve the current revision; it stays the rollback target for the
	// remainder of the run.
	svc, err := c.api.DescribeService(ctx, req.Cluster, req.Service)
	if err != nil {
		return res, &Error{Kind: KindCloud, Op: "resolve current task definition", Err: err}
	}
	if svc.TaskDefinition == "" {
		return res, &Error{Kind: KindCloud, Op: fmt.Sprintf("service %s/%s has no task definition", req.Cluster, req.Service)}
	}
	res.PreviousTaskDef = svc.TaskDefinition
	c.printer.Info("current revision: %s", aws.FamilyRevision(svc.TaskDefinition))

	mutCtx := context.WithoutCancel(ctx)

	newRef, err := c.api.RegisterClonedTaskDefinition(mutCtx, svc.TaskDefinition, req.Image)
	if err != nil {
		return res, &Error{Kind: KindCloud, Op: "register task definition", Err: err}
	}
	res.NewTaskDef = newRef
	c.printer.Success("registered revision %s", aws.FamilyRevision(newRef))
	logging.Info("task definition registered",
		zap.String("revision", aws.FamilyRevision(newRef)),
		zap.String("image", req.Image))

	deploymentID, err := c.api.UpdateServiceTaskDefinition(mutCtx, req.Cluster, req.Service, newRef)
	if err != nil {
		return c.handleUpdateFailure(ctx, req, res, err)
	}
	res.DeploymentID = deploymentID
	c.printer.Success("service update accepted (deployment %s)", deploymentID)
	logging.Info("service updated",
		zap.String("cluster", req.Cluster),
		zap.String("service", req.Service),
		zap.String("revision", aws.FamilyRevision(newRef)))

	if !req.WaitForStable {
		res.Outcome = OutcomeUnconfirmed
		res.Reason = "stability wait skipped"
		return res, nil
	}

	c.printer.Info("waiting for service to stabilize (timeout %s)", req.Timeout)
	if err := c.waitForStable(ctx, req, start); err != nil {
		if errors.Is(err, errStabilityTimeout) {
			c.printer.Error("service did not stabilize within %s", req.Timeout)
			return c.rollback(mutCtx, req, res, fmt.Sprintf("stability timeout after %s", req.Timeout), KindDeployFailed)
		}
		// Interrupted mid-wait. The rollout keeps progressing server-side;
		// stopping the watch is not a failure.
		res.Outcome = OutcomeUnconfirmed
		res.Reason = "interrupted before stability was confirmed"
		c.printer.Warning("interrupted; rollout continues unwatched")
		return res, nil
	}
	c.printer.Success("service stable")

	select {
	case <-ctx.Done():
		res.Outcome = OutcomeUnconfirmed
		res.Reason = "interrupted before task health was confirmed"
		c.printer.Warning("interrupted; skipping task health check")
		return res, nil
	case <-c.clock.After(postStabilityGrace):
	}

	unhealthy, err := c.unhealthyTasks(ctx, req)
	if err != nil {
		// The deployment is committed but its health cannot be confirmed.
		// Rolling back to the known-good revision is the safe side.
		c.printer.Error("task health check could not be completed: %v", err)
		return c.rollback(mutCtx, req, res, "task health check could not be completed", KindHealthCheck)
	}
	if len(unhealthy) > 0 {
		for _, task := range unhealthy {
			c.printer.Error("task %s is %s (status %s)", task.TaskID, task.Health, task.LastStatus)
		}
		return c.rollback(mutCtx, req, res,
			fmt.Sprintf("%d task(s) failed the health check", len(unhealthy)), KindHealthCheck)
	}

	res.Outcome = OutcomeDeployed
	c.printer.Success("deployment healthy")
	return res, nil
}

// handleUpdateFailure decides whether a failed UpdateService call needs a
// rollback by re-reading the actual service state instead of assuming
// the mutation never landed.
func (c *Controller) handleUpdateFailure(ctx context.Context, req Request, res Result, updateErr error) (Result, error) {
	svc, err := c.api.DescribeService(ctx, req.Cluster, req.Service)
	if err != nil || svc.TaskDefinition != res.NewTaskDef {
		// Nothing committed; the service still runs the previous revision.
		res.Reason = "service update failed before committing; no rollback needed"
		return res, &Error{Kind: KindDeployFailed, Op: "update service", Err: updateErr}
	}
	c.printer.Warning("update call failed but the service already points at %s", aws.FamilyRevision(res.NewTaskDef))
	return c.rollback(context.WithoutCancel(ctx), req, res, "service update failed after committing", KindDeployFailed)
}

// waitForStable polls the service until the rollout settles: running
// count equals desired count with exactly one active deployment. A
// desired count of zero passes the same gate; scale-to-zero is a valid
// stable state. Transient describe failures are retried until the
// deadline.
func (c *Controller) waitForStable(ctx context.Context, req Request, start time.Time) error {
	deadline := c.clock.Now().Add(req.Timeout)

	for {
		svc, err := c.api.DescribeService(ctx, req.Cluster, req.Service)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.printer.Warning("describe failed, retrying: %v", err)
		} else {
			elapsed := c.clock.Now().Sub(start).Round(time.Second)
			c.printer.Info("  %s: running %d/%d (pending %d), deployments %d",
				elapsed, svc.RunningCount, svc.DesiredCount, svc.PendingCount, svc.ActiveDeployments)
			if svc.RunningCount == svc.DesiredCount && svc.ActiveDeployments == 1 {
				return nil
			}
		}

		if !c.clock.Now().Before(deadline) {
			return errStabilityTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(stabilityPollInterval):
		}
	}
}

// unhealthyTasks returns the running tasks that explicitly fail their
// health check. UNKNOWN is tolerated: tasks without a configured health
// check report it forever. Zero running tasks passes vacuously here;
// the stability gate already accepted the desired count.
func (c *Controller) unhealthyTasks(ctx context.Context, req Request) ([]aws.TaskSnapshot, error) {
	arns, err := c.api.ListRunningTasks(ctx, req.Cluster, req.Service)
	if err != nil {
		return nil, err
	}
	if len(arns) == 0 {
		return nil, nil
	}
	tasks, err := c.api.DescribeTasks(ctx, req.Cluster, arns)
	if err != nil {
		return nil, err
	}

	var unhealthy []aws.TaskSnapshot
	for _, task := range tasks {
		if task.Health != aws.HealthHealthy && task.Health != aws.HealthUnknown {
			unhealthy = append(unhealthy, task)
		}
	}
	return unhealthy, nil
}

// rollback points the service back at the previous revision. A rollback
// failure is fatal and is never retried: retrying against unknown
// service state risks compounding the failure.
func (c *Controller) rollback(ctx context.Context, req Request, res Result, reason string, kind ErrorKind) (Result, error) {
	res.Reason = reason
	c.printer.Warning("rolling back to %s", aws.FamilyRevision(res.PreviousTaskDef))
	logging.Warn("rolling back",
		zap.String("cluster", req.Cluster),
		zap.String("service", req.Service),
		zap.String("revision", aws.FamilyRevision(res.PreviousTaskDef)),
		zap.String("reason", reason))

	if _, err := c.api.UpdateServiceTaskDefinition(ctx, req.Cluster, req.Service, res.PreviousTaskDef); err != nil {
		res.Outcome = OutcomeRollbackFailed
		c.printer.Error("rollback failed; manual intervention required")
		return res, &Error{Kind: KindRollbackFailed, Op: "roll back to " + aws.FamilyRevision(res.PreviousTaskDef), Err: err}
	}

	res.Outcome = OutcomeRolledBack
	res.RolledBackToTarget = true
	c.printer.Success("rolled back to %s", aws.FamilyRevision(res.PreviousTaskDef))
	return res, &Error{Kind: kind, Op: reason}
}
