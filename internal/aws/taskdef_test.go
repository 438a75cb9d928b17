package aws

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

func TestCloneTaskDefinitionCarriesRegisterableFields(t *testing.T) {
	td := &ecstypes.TaskDefinition{
		TaskDefinitionArn: aws.String("arn:aws:ecs:us-east-1:123456789012:task-definition/web:7"),
		Family:            aws.String("web"),
		Revision:          7,
		Status:            ecstypes.TaskDefinitionStatusActive,
		Cpu:               aws.String("256"),
		Memory:            aws.String("512"),
		NetworkMode:       ecstypes.NetworkModeAwsvpc,
		ExecutionRoleArn:  aws.String("arn:aws:iam::123456789012:role/exec"),
		TaskRoleArn:       aws.String("arn:aws:iam::123456789012:role/task"),
		RequiresCompatibilities: []ecstypes.Compatibility{
			ecstypes.CompatibilityFargate,
		},
		ContainerDefinitions: []ecstypes.ContainerDefinition{
			{Name: aws.String("web"), Image: aws.String("repo/web:old")},
			{Name: aws.String("sidecar"), Image: aws.String("repo/sidecar:1")},
		},
	}

	input := cloneTaskDefinition(td)

	if got := aws.ToString(input.Family); got != "web" {
		t.Errorf("Family = %q, want web", got)
	}
	if got := aws.ToString(input.Cpu); got != "256" {
		t.Errorf("Cpu = %q, want 256", got)
	}
	if got := aws.ToString(input.ExecutionRoleArn); got != "arn:aws:iam::123456789012:role/exec" {
		t.Errorf("ExecutionRoleArn = %q", got)
	}
	if input.NetworkMode != ecstypes.NetworkModeAwsvpc {
		t.Errorf("NetworkMode = %v, want awsvpc", input.NetworkMode)
	}
	if len(input.ContainerDefinitions) != 2 {
		t.Fatalf("ContainerDefinitions len = %d, want 2", len(input.ContainerDefinitions))
	}
}

func TestCloneTaskDefinitionDoesNotAliasContainers(t *testing.T) {
	td := &ecstypes.TaskDefinition{
		Family: aws.String("web"),
		ContainerDefinitions: []ecstypes.ContainerDefinition{
			{Name: aws.String("web"), Image: aws.String("repo/web:old")},
		},
	}

	input := cloneTaskDefinition(td)
	input.ContainerDefinitions[0].Image = aws.String("repo/web:new")

	if got := aws.ToString(td.ContainerDefinitions[0].Image); got != "repo/web:old" {
		t.Errorf("source image mutated to %q, clone must not alias the source slice", got)
	}
}

func TestFamilyRevision(t *testing.T) {
	cases := []struct {
		arn  string
		want string
	}{
		{"arn:aws:ecs:us-east-1:123456789012:task-definition/web:7", "web:7"},
		{"web:7", "web:7"},
		{"", ""},
	}
	for _, c := range cases {
		if got := FamilyRevision(c.arn); got != c.want {
			t.Errorf("FamilyRevision(%q) = %q, want %q", c.arn, got, c.want)
		}
	}
}
