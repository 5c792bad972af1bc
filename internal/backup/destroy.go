package backup

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"go.uber.org/zap"
)

// DeleteImage deregisters an image. There is no existence pre-check; a
// missing image surfaces as the provider's error.
func (r *Runner) DeleteImage(ctx context.Context, imageID string) error {
	return r.deleteImage(ctx, r.log, imageID)
}

func (r *Runner) deleteImage(ctx context.Context, log *zap.Logger, imageID string) error {
	if r.cfg.DryRun {
		log.Info("dry run: would deregister image", zap.String("image_id", imageID))
		return nil
	}

	if _, err := r.ec2.DeregisterImage(ctx, &ec2.DeregisterImageInput{
		ImageId: aws.String(imageID),
	}); err != nil {
		return fmt.Errorf("failed to deregister image %s: %w", imageID, err)
	}

	log.Info("image deregistered", zap.String("image_id", imageID))
	return nil
}

// DeleteSnapshot deletes a snapshot.
func (r *Runner) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	return r.deleteSnapshot(ctx, r.log, snapshotID)
}

func (r *Runner) deleteSnapshot(ctx context.Context, log *zap.Logger, snapshotID string) error {
	if r.cfg.DryRun {
		log.Info("dry run: would delete snapshot", zap.String("snapshot_id", snapshotID))
		return nil
	}

	if _, err := r.ec2.DeleteSnapshot(ctx, &ec2.DeleteSnapshotInput{
		SnapshotId: aws.String(snapshotID),
	}); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", snapshotID, err)
	}

	log.Info("snapshot deleted", zap.String("snapshot_id", snapshotID))
	return nil
}
