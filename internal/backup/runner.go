package backup

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/jbweber/ec2backup/internal/cloud"
	"github.com/jbweber/ec2backup/internal/config"
)

// Runner executes the retention workflow against one region.
//
// A Runner is not safe for concurrent runs. Serve mode relies on the
// scheduler to never overlap invocations.
type Runner struct {
	cfg     *config.Config
	ec2     ec2API
	sts     stsAPI
	waiter  imageWaiter
	clock   clock.PassiveClock
	metrics Recorder
	log     *zap.Logger

	accountID string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithClock replaces the wall clock used for expiry dates and image names.
func WithClock(c clock.PassiveClock) Option {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithMetrics sets the recorder notified about workflow events.
func WithMetrics(m Recorder) Option {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// NewRunner builds a Runner from a connected cloud client.
func NewRunner(cfg *config.Config, client *cloud.Client, logger *zap.Logger, opts ...Option) *Runner {
	ec2Client := client.EC2()
	return newRunnerWithDeps(cfg, ec2Client, client.STS(), ec2.NewImageExistsWaiter(ec2Client), logger, opts...)
}

// newRunnerWithDeps builds a Runner with injected dependencies.
// This allows for testing by accepting interfaces instead of concrete types.
func newRunnerWithDeps(cfg *config.Config, ec2c ec2API, stsc stsAPI, waiter imageWaiter, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		cfg:     cfg,
		ec2:     ec2c,
		sts:     stsc,
		waiter:  waiter,
		clock:   clock.RealClock{},
		metrics: nopRecorder{},
		log:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// policy returns the failure policy for an operation class.
func (r *Runner) policy(operation string) config.FailurePolicy {
	switch operation {
	case OpDiscovery:
		return r.cfg.Policies.Discovery
	case OpCreate:
		return r.cfg.Policies.Create
	default:
		return r.cfg.Policies.Delete
	}
}

// accountIDFor returns the account that owns the caller's snapshots.
// A successful lookup is cached for the life of the Runner.
func (r *Runner) accountIDFor(ctx context.Context) (string, error) {
	if r.accountID != "" {
		return r.accountID, nil
	}

	out, err := r.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	account := aws.ToString(out.Account)
	if account == "" {
		return "", fmt.Errorf("caller identity returned no account")
	}

	r.accountID = account
	return account, nil
}

// pageSize returns the configured page size as the SDK expects it.
func (r *Runner) pageSize() *int32 {
	if r.cfg.PageSize <= 0 {
		return aws.Int32(config.DefaultPageSize)
	}
	return aws.Int32(int32(r.cfg.PageSize))
}
