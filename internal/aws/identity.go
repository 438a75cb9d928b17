package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"

	"github.com/bgdnvk/fargo/internal/logging"
)

// VerifyCredentials resolves the caller identity. Every command runs this
// before touching anything so a missing or expired credential fails fast
// instead of surfacing halfway through a deploy.
func (c *Client) VerifyCredentials(ctx context.Context) (Identity, error) {
	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("verify credentials: %w", err)
	}

	id := Identity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}
	logging.Debug("caller identity resolved", zap.String("account", id.Account), zap.String("arn", id.ARN))
	return id, nil
}
