package backup

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"go.uber.org/zap"
)

// ListSnapshotsForImage returns the ids of the caller's snapshots whose
// description mentions imageID.
//
// EC2 writes the source image id into the description of snapshots created
// by CreateImage. The match is a plain substring test.
func (r *Runner) ListSnapshotsForImage(ctx context.Context, imageID string) ([]string, error) {
	return r.listSnapshotsForImage(ctx, r.log, imageID)
}

func (r *Runner) listSnapshotsForImage(ctx context.Context, log *zap.Logger, imageID string) ([]string, error) {
	account, err := r.accountIDFor(ctx)
	if err != nil {
		return nil, err
	}

	input := &ec2.DescribeSnapshotsInput{
		OwnerIds:   []string{account},
		MaxResults: r.pageSize(),
	}

	ids := []string{}
	paginator := ec2.NewDescribeSnapshotsPaginator(r.ec2, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe snapshots: %w", err)
		}
		for _, snap := range page.Snapshots {
			if strings.Contains(aws.ToString(snap.Description), imageID) {
				ids = append(ids, aws.ToString(snap.SnapshotId))
			}
		}
	}

	log.Debug("snapshots found", zap.String("image_id", imageID), zap.Strings("snapshot_ids", ids))
	return ids, nil
}
