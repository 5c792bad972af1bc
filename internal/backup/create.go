package backup

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"go.uber.org/zap"

	"github.com/jbweber/ec2backup/internal/naming"
	"github.com/jbweber/ec2backup/internal/tags"
)

// CreateImage images one instance and tags the result.
//
// This orchestrates the creation of a single backup:
//  1. Resolve the instance name and the per-instance overrides
//  2. Confirm the instance still exists
//  3. Create the image (rebooting unless BACKUP_REBOOT is "false")
//  4. Wait until the image exists
//  5. Tag it with LEB-DeleteOn, InstanceNameFrom and Name, followed by the
//     instance's own tags unless BACKUP_COPYTAG is "false"
//
// In dry-run mode steps 3 to 5 are logged but not performed and the returned
// CreatedImage has no ImageID.
//
// An instance that no longer exists yields an error wrapping
// ErrInstanceNotFound.
func (r *Runner) CreateImage(ctx context.Context, inst Instance) (*CreatedImage, error) {
	return r.createImage(ctx, r.log, inst)
}

func (r *Runner) createImage(ctx context.Context, log *zap.Logger, inst Instance) (*CreatedImage, error) {
	now := r.clock.Now()

	name := naming.InstanceName(inst.ID, inst.Tags)
	reboot := inst.Tags.Enabled(tags.KeyReboot)
	copyTags := inst.Tags.Enabled(tags.KeyCopyTag)

	log = log.With(zap.String("instance_id", inst.ID), zap.String("instance_name", name))

	// Step 1: Confirm the instance still exists
	log.Debug("checking instance exists")
	if err := r.checkInstanceExists(ctx, inst.ID); err != nil {
		return nil, err
	}

	created := &CreatedImage{
		InstanceID: inst.ID,
		Name:       naming.ImageName(now, name),
		DeleteOn:   naming.DeleteOn(now, r.cfg.RetentionDays),
		NoReboot:   !reboot,
	}

	// Step 2: Build the tag set
	applied := r.imageTags(log, created, name, inst.Tags, copyTags)
	resolved, collisions := applied.Resolve()
	if len(collisions) > 0 {
		log.Debug("tag keys collided, last value wins", zap.Strings("keys", collisions))
	}
	created.Tags = resolved

	if r.cfg.DryRun {
		log.Info("dry run: would create image",
			zap.String("image_name", created.Name),
			zap.Bool("no_reboot", created.NoReboot),
			zap.String("delete_on", created.DeleteOn),
			zap.Int("tags", len(resolved)))
		return created, nil
	}

	// Step 3: Create the image
	log.Info("creating image",
		zap.String("image_name", created.Name),
		zap.Bool("no_reboot", created.NoReboot))
	out, err := r.ec2.CreateImage(ctx, &ec2.CreateImageInput{
		InstanceId:  aws.String(inst.ID),
		Name:        aws.String(created.Name),
		Description: aws.String(naming.ImageDescription),
		NoReboot:    aws.Bool(created.NoReboot),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create image of %s: %w", inst.ID, err)
	}
	created.ImageID = aws.ToString(out.ImageId)
	log = log.With(zap.String("image_id", created.ImageID))

	// Step 4: Wait for the image to exist
	log.Debug("waiting for image", zap.Duration("timeout", r.cfg.WaitTimeout))
	err = r.waiter.Wait(ctx, &ec2.DescribeImagesInput{
		ImageIds: []string{created.ImageID},
	}, r.cfg.WaitTimeout)
	if err != nil {
		return created, fmt.Errorf("failed waiting for image %s: %w", created.ImageID, err)
	}

	// Step 5: Tag the image
	log.Debug("applying tags", zap.Int("count", len(resolved)))
	_, err = r.ec2.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{created.ImageID},
		Tags:      resolved.EC2(),
	})
	if err != nil {
		return created, fmt.Errorf("failed to tag image %s: %w", created.ImageID, err)
	}

	log.Info("image created",
		zap.String("image_name", created.Name),
		zap.String("delete_on", created.DeleteOn))
	return created, nil
}

// checkInstanceExists describes a single instance by id.
func (r *Runner) checkInstanceExists(ctx context.Context, instanceID string) error {
	out, err := r.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInstanceNotFound, instanceID, err)
	}
	for _, reservation := range out.Reservations {
		if len(reservation.Instances) > 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
}

// imageTags returns the ordered, unresolved tag list for a new image. The
// three system tags come first. Copied instance tags follow, minus AWS
// reserved keys and any LEB-DeleteOn the instance carries.
func (r *Runner) imageTags(log *zap.Logger, created *CreatedImage, name string, source tags.Set, copyTags bool) tags.Set {
	set := tags.Set{
		{Key: tags.KeyDeleteOn, Value: created.DeleteOn},
		{Key: tags.KeyInstanceNameFrom, Value: name},
		{Key: tags.KeyName, Value: name},
	}
	if !copyTags {
		return set
	}

	copied, dropped := source.WithoutReserved()
	for _, key := range dropped {
		log.Debug("not copying reserved tag", zap.String("key", key))
	}
	if copied.Has(tags.KeyDeleteOn) {
		log.Debug("not copying instance expiry tag", zap.String("key", tags.KeyDeleteOn))
		copied = copied.Without(tags.KeyDeleteOn)
	}

	return set.Append(copied...)
}
