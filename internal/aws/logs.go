package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"go.uber.org/zap"

	"github.com/bgdnvk/fargo/internal/logging"
)

// FilterLogEvents fetches log events matching the filter, oldest first.
func (c *Client) FilterLogEvents(ctx context.Context, filter LogFilter) ([]LogEvent, error) {
	logging.Debug("filter log events",
		zap.String("group", filter.Group),
		zap.Time("start", filter.Start),
		zap.String("pattern", filter.Pattern))

	input := &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: aws.String(filter.Group),
	}
	if !filter.Start.IsZero() {
		input.StartTime = aws.Int64(filter.Start.UnixMilli())
	}
	if !filter.End.IsZero() {
		input.EndTime = aws.Int64(filter.End.UnixMilli())
	}
	if filter.Pattern != "" {
		input.FilterPattern = aws.String(filter.Pattern)
	}
	if filter.Limit > 0 {
		input.Limit = aws.Int32(filter.Limit)
	}

	var events []LogEvent
	for {
		out, err := c.cloudwatchlogs.FilterLogEvents(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("filter log events in %s: %w", filter.Group, err)
		}
		for _, e := range out.Events {
			events = append(events, LogEvent{
				Timestamp: time.UnixMilli(aws.ToInt64(e.Timestamp)),
				Stream:    aws.ToString(e.LogStreamName),
				Message:   aws.ToString(e.Message),
			})
		}
		if filter.Limit > 0 && len(events) >= int(filter.Limit) {
			return events[:filter.Limit], nil
		}
		if out.NextToken == nil {
			return events, nil
		}
		input.NextToken = out.NextToken
	}
}
