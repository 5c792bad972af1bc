package backup

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// ec2API defines the EC2 operations needed by the workflow.
//
// In production, this is satisfied by *ec2.Client directly.
// In tests, this is satisfied by mock implementations.
type ec2API interface {
	// DescribeInstances lists instances (discovery and existence checks)
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)

	// CreateImage starts an image of an instance
	CreateImage(ctx context.Context, params *ec2.CreateImageInput, optFns ...func(*ec2.Options)) (*ec2.CreateImageOutput, error)

	// DescribeImages lists images (expiry sweep)
	DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)

	// CreateTags tags a resource
	CreateTags(ctx context.Context, params *ec2.CreateTagsInput, optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error)

	// DescribeSnapshots lists snapshots
	DescribeSnapshots(ctx context.Context, params *ec2.DescribeSnapshotsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error)

	// DeregisterImage deletes an image
	DeregisterImage(ctx context.Context, params *ec2.DeregisterImageInput, optFns ...func(*ec2.Options)) (*ec2.DeregisterImageOutput, error)

	// DeleteSnapshot deletes a snapshot
	DeleteSnapshot(ctx context.Context, params *ec2.DeleteSnapshotInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSnapshotOutput, error)
}

// stsAPI resolves the account that owns the snapshots.
//
// In production, this is satisfied by *sts.Client.
type stsAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// imageWaiter blocks until a new image exists.
//
// In production, this is satisfied by *ec2.ImageExistsWaiter.
type imageWaiter interface {
	Wait(ctx context.Context, params *ec2.DescribeImagesInput, maxWaitDur time.Duration, optFns ...func(*ec2.ImageExistsWaiterOptions)) error
}

// Recorder receives workflow events for metrics. See internal/metrics.
type Recorder interface {
	ImageCreated()
	ImageDeleted()
	SnapshotDeleted()
	OperationFailed(operation string)
	RunFinished(duration time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) ImageCreated()                    {}
func (nopRecorder) ImageDeleted()                    {}
func (nopRecorder) SnapshotDeleted()                 {}
func (nopRecorder) OperationFailed(string)           {}
func (nopRecorder) RunFinished(time.Duration, error) {}
