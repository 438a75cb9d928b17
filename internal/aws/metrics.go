package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/bgdnvk/fargo/internal/logging"
)

// utilizationWindow is how far back to look for service metrics. ECS
// publishes per-minute datapoints with some delay, so a few minutes of
// slack keeps the latest datapoint inside the window.
const utilizationWindow = 10 * time.Minute

// ServiceUtilization returns the most recent average CPU and memory
// utilization for a service. HasData is false when CloudWatch has no
// datapoints yet, which is normal right after a service is created.
func (c *Client) ServiceUtilization(ctx context.Context, cluster, service string) (ServiceUtilization, error) {
	logging.Debug("get service utilization", zap.String("cluster", cluster), zap.String("service", service))

	end := time.Now()
	start := end.Add(-utilizationWindow)

	dims := []cwtypes.Dimension{
		{Name: aws.String("ClusterName"), Value: aws.String(cluster)},
		{Name: aws.String("ServiceName"), Value: aws.String(service)},
	}
	query := func(id, metric string) cwtypes.MetricDataQuery {
		return cwtypes.MetricDataQuery{
			Id: aws.String(id),
			MetricStat: &cwtypes.MetricStat{
				Metric: &cwtypes.Metric{
					Namespace:  aws.String("AWS/ECS"),
					MetricName: aws.String(metric),
					Dimensions: dims,
				},
				Period: aws.Int32(60),
				Stat:   aws.String("Average"),
			},
		}
	}

	out, err := c.cloudwatch.GetMetricData(ctx, &cloudwatch.GetMetricDataInput{
		StartTime: aws.Time(start),
		EndTime:   aws.Time(end),
		ScanBy:    cwtypes.ScanByTimestampDescending,
		MetricDataQueries: []cwtypes.MetricDataQuery{
			query("cpu", "CPUUtilization"),
			query("mem", "MemoryUtilization"),
		},
	})
	if err != nil {
		return ServiceUtilization{}, fmt.Errorf("get utilization for %s/%s: %w", cluster, service, err)
	}

	var util ServiceUtilization
	for _, result := range out.MetricDataResults {
		if len(result.Values) == 0 {
			continue
		}
		switch aws.ToString(result.Id) {
		case "cpu":
			util.CPUPercent = result.Values[0]
			util.HasData = true
		case "mem":
			util.MemoryPercent = result.Values[0]
			util.HasData = true
		}
	}
	return util, nil
}
