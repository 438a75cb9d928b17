package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"go.uber.org/zap"

	"github.com/bgdnvk/fargo/internal/logging"
)

// describeTasksBatchSize is the DescribeTasks API limit per call.
const describeTasksBatchSize = 100

// DescribeService fetches the current state of a service. A service the
// API reports as missing (or never created) comes back as ErrNotFound.
func (c *Client) DescribeService(ctx context.Context, cluster, service string) (ServiceSnapshot, error) {
	logging.Debug("describe service", zap.String("cluster", cluster), zap.String("service", service))

	out, err := c.ecs.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(cluster),
		Services: []string{service},
	})
	if err != nil {
		return ServiceSnapshot{}, fmt.Errorf("describe service %s/%s: %w", cluster, service, err)
	}
	return decodeService(cluster, service, out)
}

// decodeService turns a DescribeServices response into a snapshot. The
// API reports a missing service through the failure list, not an error.
func decodeService(cluster, service string, out *ecs.DescribeServicesOutput) (ServiceSnapshot, error) {
	if len(out.Services) == 0 {
		for _, f := range out.Failures {
			if reason := aws.ToString(f.Reason); reason != "" && reason != "MISSING" {
				return ServiceSnapshot{}, fmt.Errorf("service %s in cluster %s: %s", service, cluster, reason)
			}
		}
		return ServiceSnapshot{}, fmt.Errorf("service %s in cluster %s: %w", service, cluster, ErrNotFound)
	}

	svc := out.Services[0]
	snap := ServiceSnapshot{
		Cluster:           cluster,
		Service:           service,
		Status:            aws.ToString(svc.Status),
		RunningCount:      int(svc.RunningCount),
		DesiredCount:      int(svc.DesiredCount),
		PendingCount:      int(svc.PendingCount),
		ActiveDeployments: len(svc.Deployments),
		TaskDefinition:    aws.ToString(svc.TaskDefinition),
	}
	if len(svc.Events) > 0 {
		snap.LatestEvent = aws.ToString(svc.Events[0].Message)
	}
	return snap, nil
}

// UpdateServiceTaskDefinition points the service at a task definition and
// forces a new deployment. Returns the id of the primary deployment the
// update created.
func (c *Client) UpdateServiceTaskDefinition(ctx context.Context, cluster, service, taskDef string) (string, error) {
	logging.Debug("update service",
		zap.String("cluster", cluster),
		zap.String("service", service),
		zap.String("taskDefinition", taskDef))

	out, err := c.ecs.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:            aws.String(cluster),
		Service:            aws.String(service),
		TaskDefinition:     aws.String(taskDef),
		ForceNewDeployment: true,
	})
	if err != nil {
		return "", fmt.Errorf("update service %s/%s: %w", cluster, service, err)
	}

	if out.Service != nil {
		for _, d := range out.Service.Deployments {
			if aws.ToString(d.Status) == "PRIMARY" {
				return aws.ToString(d.Id), nil
			}
		}
	}
	return "", nil
}

// ListRunningTasks returns the ARNs of the service's running tasks.
func (c *Client) ListRunningTasks(ctx context.Context, cluster, service string) ([]string, error) {
	logging.Debug("list running tasks", zap.String("cluster", cluster), zap.String("service", service))

	var arns []string
	var nextToken *string
	for {
		out, err := c.ecs.ListTasks(ctx, &ecs.ListTasksInput{
			Cluster:       aws.String(cluster),
			ServiceName:   aws.String(service),
			DesiredStatus: ecstypes.DesiredStatusRunning,
			NextToken:     nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("list tasks for %s/%s: %w", cluster, service, err)
		}
		arns = append(arns, out.TaskArns...)
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return arns, nil
}

// DescribeTasks resolves task ARNs into snapshots with normalized health.
func (c *Client) DescribeTasks(ctx context.Context, cluster string, taskARNs []string) ([]TaskSnapshot, error) {
	if len(taskARNs) == 0 {
		return nil, nil
	}

	var snaps []TaskSnapshot
	for start := 0; start < len(taskARNs); start += describeTasksBatchSize {
		end := start + describeTasksBatchSize
		if end > len(taskARNs) {
			end = len(taskARNs)
		}

		out, err := c.ecs.DescribeTasks(ctx, &ecs.DescribeTasksInput{
			Cluster: aws.String(cluster),
			Tasks:   taskARNs[start:end],
		})
		if err != nil {
			return nil, fmt.Errorf("describe tasks in %s: %w", cluster, err)
		}

		for _, task := range out.Tasks {
			snap := TaskSnapshot{
				TaskARN:          aws.ToString(task.TaskArn),
				TaskID:           shortTaskID(aws.ToString(task.TaskArn)),
				LastStatus:       aws.ToString(task.LastStatus),
				Health:           normalizeHealth(string(task.HealthStatus)),
				CPU:              aws.ToString(task.Cpu),
				Memory:           aws.ToString(task.Memory),
				PrivateIP:        privateIPFromAttachments(task.Attachments),
				AvailabilityZone: aws.ToString(task.AvailabilityZone),
			}
			if task.StartedAt != nil {
				snap.StartedAt = *task.StartedAt
			}
			snaps = append(snaps, snap)
		}
	}
	return snaps, nil
}

// shortTaskID extracts the task id from a task ARN for display.
func shortTaskID(arn string) string {
	if idx := strings.LastIndex(arn, "/"); idx >= 0 {
		return arn[idx+1:]
	}
	return arn
}

// normalizeHealth maps the provider health enum onto the three states the
// rest of the tool reasons about. An empty value means the task has no
// health check configured.
func normalizeHealth(health string) string {
	switch health {
	case HealthHealthy, HealthUnhealthy:
		return health
	default:
		return HealthUnknown
	}
}

// privateIPFromAttachments pulls the Fargate ENI address out of the task
// attachment details.
func privateIPFromAttachments(attachments []ecstypes.Attachment) string {
	for _, att := range attachments {
		if aws.ToString(att.Type) != "ElasticNetworkInterface" {
			continue
		}
		for _, detail := range att.Details {
			if aws.ToString(detail.Name) == "privateIPv4Address" {
				return aws.ToString(detail.Value)
			}
		}
	}
	return ""
}
