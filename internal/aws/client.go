package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Options selects the AWS identity and region for a Client.
type Options struct {
	Profile string
	Region  string
	Debug   bool
}

// Client is the typed boundary to the AWS control plane. Every response
// is decoded here into the snapshot types; callers never parse provider
// output themselves.
type Client struct {
	cfg            aws.Config
	profile        string
	debug          bool
	ecs            *ecs.Client
	elbv2          *elasticloadbalancingv2.Client
	ec2            *ec2.Client
	cloudwatch     *cloudwatch.Client
	cloudwatchlogs *cloudwatchlogs.Client
	sts            *sts.Client
}

// New builds a Client from the default credential chain, optionally
// pinned to a named profile and region.
func New(ctx context.Context, opts Options) (*Client, error) {
	loadOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}

	if opts.Profile == "" {
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("unable to load SDK config: %w", err)
		}
		return newFromConfig(cfg, opts), nil
	}

	// Try to get credentials from the AWS CLI first (works better with SSO)
	creds, err := getCredentialsFromCLI(ctx, opts.Profile)
	if err != nil {
		cfg, err := config.LoadDefaultConfig(ctx,
			append(loadOpts, config.WithSharedConfigProfile(opts.Profile))...)
		if err != nil {
			return nil, fmt.Errorf("unable to load SDK config for profile %s: %w", opts.Profile, err)
		}
		return newFromConfig(cfg, opts), nil
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		append(loadOpts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				creds.AccessKeyId,
				creds.SecretAccessKey,
				creds.SessionToken,
			)),
			config.WithSharedConfigProfile(opts.Profile),
		)...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config with CLI credentials for profile %s: %w", opts.Profile, err)
	}
	return newFromConfig(cfg, opts), nil
}

func newFromConfig(cfg aws.Config, opts Options) *Client {
	return &Client{
		cfg:            cfg,
		profile:        opts.Profile,
		debug:          opts.Debug,
		ecs:            ecs.NewFromConfig(cfg),
		elbv2:          elasticloadbalancingv2.NewFromConfig(cfg),
		ec2:            ec2.NewFromConfig(cfg),
		cloudwatch:     cloudwatch.NewFromConfig(cfg),
		cloudwatchlogs: cloudwatchlogs.NewFromConfig(cfg),
		sts:            sts.NewFromConfig(cfg),
	}
}

// Region reports the region the client resolved to.
func (c *Client) Region() string {
	return c.cfg.Region
}

// awsCredentialsFromCLI represents AWS credentials returned by the CLI
type awsCredentialsFromCLI struct {
	Version         int    `json:"Version"`
	AccessKeyId     string `json:"AccessKeyId"`
	SecretAccessKey string `json:"SecretAccessKey"`
	SessionToken    string `json:"SessionToken"`
	Expiration      string `json:"Expiration"`
}

// getCredentialsFromCLI uses the AWS CLI to get fresh credentials for the
// profile. SSO profiles often have a valid CLI session while the SDK's
// shared-config chain cannot mint one.
func getCredentialsFromCLI(ctx context.Context, profile string) (*awsCredentialsFromCLI, error) {
	cmd := exec.CommandContext(ctx, "aws", "configure", "export-credentials", "--profile", profile, "--format", "process")
	cmd.Env = append(os.Environ(), fmt.Sprintf("AWS_PROFILE=%s", profile))

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials from AWS CLI: %w", err)
	}

	var creds awsCredentialsFromCLI
	if err := json.Unmarshal(output, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse AWS CLI credentials response: %w", err)
	}

	return &creds, nil
}
