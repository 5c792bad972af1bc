package cloud

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// Client holds the SDK clients for one region.
type Client struct {
	region string
	ec2    *ec2.Client
	sts    *sts.Client
}

// Identity is the result of a caller identity lookup.
type Identity struct {
	Account string
	ARN     string
	Region  string
}

// Connect loads the SDK default configuration (environment, shared config,
// instance or Lambda role) and builds the EC2 and STS clients.
//
// If region is empty the SDK resolves it (AWS_REGION inside Lambda).
func Connect(ctx context.Context, region string) (*Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("no AWS region configured (set AWS_REGION or --region)")
	}

	return NewFromConfig(cfg), nil
}

// NewFromConfig builds a Client from an already loaded aws.Config.
func NewFromConfig(cfg aws.Config) *Client {
	return &Client{
		region: cfg.Region,
		ec2:    ec2.NewFromConfig(cfg),
		sts:    sts.NewFromConfig(cfg),
	}
}

// Region returns the region the clients are bound to.
func (c *Client) Region() string {
	return c.region
}

// EC2 returns the EC2 client.
func (c *Client) EC2() *ec2.Client {
	return c.ec2
}

// STS returns the STS client.
func (c *Client) STS() *sts.Client {
	return c.sts
}

// Whoami verifies the credentials by calling GetCallerIdentity.
func (c *Client) Whoami(ctx context.Context) (Identity, error) {
	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("failed to get caller identity: %w", err)
	}

	return Identity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		Region:  c.region,
	}, nil
}

// ErrorCode returns the AWS API error code carried by err, or "" when err
// did not come from the API (network failures, cancellations).
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
