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

// RegisterClonedTaskDefinition fetches the task definition behind ref,
// swaps the first container's image for the given one and registers the
// result as a new revision. The returned ARN identifies the new revision.
// Task definitions are append-only; nothing is ever deregistered here.
func (c *Client) RegisterClonedTaskDefinition(ctx context.Context, ref, image string) (string, error) {
	td, err := c.describeTaskDefinition(ctx, ref)
	if err != nil {
		return "", err
	}
	if len(td.ContainerDefinitions) == 0 {
		return "", fmt.Errorf("task definition %s has no container definitions", ref)
	}

	input := cloneTaskDefinition(td)
	input.ContainerDefinitions[0].Image = aws.String(image)

	logging.Debug("register task definition",
		zap.String("family", aws.ToString(input.Family)),
		zap.String("image", image))

	out, err := c.ecs.RegisterTaskDefinition(ctx, input)
	if err != nil {
		return "", fmt.Errorf("register task definition for family %s: %w", aws.ToString(input.Family), err)
	}
	if out.TaskDefinition == nil {
		return "", fmt.Errorf("register task definition for family %s: empty response", aws.ToString(input.Family))
	}
	return aws.ToString(out.TaskDefinition.TaskDefinitionArn), nil
}

func (c *Client) describeTaskDefinition(ctx context.Context, ref string) (*ecstypes.TaskDefinition, error) {
	logging.Debug("describe task definition", zap.String("taskDefinition", ref))

	out, err := c.ecs.DescribeTaskDefinition(ctx, &ecs.DescribeTaskDefinitionInput{
		TaskDefinition: aws.String(ref),
	})
	if err != nil {
		return nil, fmt.Errorf("describe task definition %s: %w", ref, err)
	}
	if out.TaskDefinition == nil {
		return nil, fmt.Errorf("task definition %s: %w", ref, ErrNotFound)
	}
	return out.TaskDefinition, nil
}

// cloneTaskDefinition copies the registerable fields of a described task
// definition. Provider-assigned fields (ARN, revision, status,
// registration metadata, computed compatibilities and attributes) are
// dropped so the result registers cleanly as a new revision.
func cloneTaskDefinition(td *ecstypes.TaskDefinition) *ecs.RegisterTaskDefinitionInput {
	containers := make([]ecstypes.ContainerDefinition, len(td.ContainerDefinitions))
	copy(containers, td.ContainerDefinitions)

	return &ecs.RegisterTaskDefinitionInput{
		Family:                  td.Family,
		ContainerDefinitions:    containers,
		Cpu:                     td.Cpu,
		Memory:                  td.Memory,
		NetworkMode:             td.NetworkMode,
		ExecutionRoleArn:        td.ExecutionRoleArn,
		TaskRoleArn:             td.TaskRoleArn,
		RequiresCompatibilities: td.RequiresCompatibilities,
		Volumes:                 td.Volumes,
		PlacementConstraints:    td.PlacementConstraints,
		ProxyConfiguration:      td.ProxyConfiguration,
		IpcMode:                 td.IpcMode,
		PidMode:                 td.PidMode,
		RuntimePlatform:         td.RuntimePlatform,
		EphemeralStorage:        td.EphemeralStorage,
		InferenceAccelerators:   td.InferenceAccelerators,
	}
}

// FamilyRevision shortens a task definition ARN to family:revision for
// display and summaries.
func FamilyRevision(arn string) string {
	const marker = ":task-definition/"
	if idx := strings.LastIndex(arn, marker); idx >= 0 {
		return arn[idx+len(marker):]
	}
	return arn
}
