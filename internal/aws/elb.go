package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"go.uber.org/zap"

	"github.com/bgdnvk/fargo/internal/logging"
)

// DescribeTargetHealth lists the registered targets of a target group
// with their health state.
func (c *Client) DescribeTargetHealth(ctx context.Context, targetGroupARN string) ([]TargetHealthSnapshot, error) {
	logging.Debug("describe target health", zap.String("targetGroup", targetGroupARN))

	out, err := c.elbv2.DescribeTargetHealth(ctx, &elasticloadbalancingv2.DescribeTargetHealthInput{
		TargetGroupArn: aws.String(targetGroupARN),
	})
	if err != nil {
		return nil, fmt.Errorf("describe target health for %s: %w", targetGroupARN, err)
	}

	snaps := make([]TargetHealthSnapshot, 0, len(out.TargetHealthDescriptions))
	for _, d := range out.TargetHealthDescriptions {
		snap := TargetHealthSnapshot{}
		if d.Target != nil {
			snap.TargetID = aws.ToString(d.Target.Id)
			snap.Port = aws.ToInt32(d.Target.Port)
		}
		if d.TargetHealth != nil {
			snap.State = string(d.TargetHealth.State)
			snap.Reason = string(d.TargetHealth.Reason)
			snap.Description = aws.ToString(d.TargetHealth.Description)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// FindNetworkInterfaceByIP looks up the ENI holding a private IP. An
// unhealthy target whose IP maps to no interface belongs to a task that
// is already gone and is only waiting to be deregistered.
func (c *Client) FindNetworkInterfaceByIP(ctx context.Context, privateIP string) (bool, string, error) {
	logging.Debug("describe network interfaces", zap.String("privateIP", privateIP))

	out, err := c.ec2.DescribeNetworkInterfaces(ctx, &ec2.DescribeNetworkInterfacesInput{
		Filters: []ec2types.Filter{
			{
				Name:   aws.String("addresses.private-ip-address"),
				Values: []string{privateIP},
			},
		},
	})
	if err != nil {
		return false, "", fmt.Errorf("describe network interfaces for %s: %w", privateIP, err)
	}
	if len(out.NetworkInterfaces) == 0 {
		return false, "", nil
	}

	eni := out.NetworkInterfaces[0]
	desc := fmt.Sprintf("%s (%s)", aws.ToString(eni.NetworkInterfaceId), string(eni.Status))
	return true, desc, nil
}
