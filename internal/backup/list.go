package backup

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"

	"github.com/jbweber/ec2backup/internal/naming"
	"github.com/jbweber/ec2backup/internal/tags"
)

// ListInstances returns every instance carrying the selector tag key.
//
// Only running instances are returned when OnlyRunning is set, otherwise
// running and stopped ones. All pages are read.
func (r *Runner) ListInstances(ctx context.Context) ([]Instance, error) {
	return r.listInstances(ctx, r.log)
}

func (r *Runner) listInstances(ctx context.Context, log *zap.Logger) ([]Instance, error) {
	states := []string{"running", "stopped"}
	if r.cfg.OnlyRunning {
		states = []string{"running"}
	}

	log.Debug("listing instances",
		zap.String("tag_key", r.cfg.TagKey),
		zap.Strings("states", states))

	input := &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{Name: aws.String("tag-key"), Values: []string{r.cfg.TagKey}},
			{Name: aws.String("instance-state-name"), Values: states},
		},
		MaxResults: r.pageSize(),
	}

	instances := []Instance{}
	paginator := ec2.NewDescribeInstancesPaginator(r.ec2, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe instances: %w", err)
		}
		for _, reservation := range page.Reservations {
			for _, inst := range reservation.Instances {
				instances = append(instances, instanceFromEC2(inst))
			}
		}
	}

	log.Debug("instances found", zap.Int("count", len(instances)))
	return instances, nil
}

// ListExpiredImages returns the images carrying the selector tag key whose
// LEB-DeleteOn date is today or earlier.
//
// Images without an expiry tag are ignored. Images with an expiry tag that
// does not parse are logged and skipped.
func (r *Runner) ListExpiredImages(ctx context.Context) ([]Image, error) {
	return r.listExpiredImages(ctx, r.log)
}

func (r *Runner) listExpiredImages(ctx context.Context, log *zap.Logger) ([]Image, error) {
	now := r.clock.Now()

	log.Debug("listing images", zap.String("tag_key", r.cfg.TagKey))

	input := &ec2.DescribeImagesInput{
		Owners: []string{"self"},
		Filters: []types.Filter{
			{Name: aws.String("tag-key"), Values: []string{r.cfg.TagKey}},
		},
		MaxResults: r.pageSize(),
	}

	expired := []Image{}
	paginator := ec2.NewDescribeImagesPaginator(r.ec2, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe images: %w", err)
		}

		for _, img := range page.Images {
			imageID := aws.ToString(img.ImageId)
			imageTags := tags.FromEC2(img.Tags)

			value, ok := imageTags.Get(tags.KeyDeleteOn)
			if !ok {
				continue
			}

			deleteOn, err := naming.ParseDeleteOn(value, now.Location())
			if err != nil {
				log.Warn("skipping image with invalid expiry tag",
					zap.String("image_id", imageID),
					zap.String("delete_on", value),
					zap.Error(err))
				continue
			}

			log.Debug("checking image expiry",
				zap.String("image_id", imageID),
				zap.String("delete_on", value))

			if !naming.Expired(deleteOn, now) {
				continue
			}

			expired = append(expired, Image{
				ID:           imageID,
				Name:         aws.ToString(img.Name),
				CreationDate: aws.ToString(img.CreationDate),
				DeleteOn:     deleteOn,
				Tags:         imageTags,
			})
		}
	}

	log.Debug("expired images found", zap.Int("count", len(expired)))
	return expired, nil
}

func instanceFromEC2(inst types.Instance) Instance {
	state := ""
	if inst.State != nil {
		state = string(inst.State.Name)
	}
	return Instance{
		ID:    aws.ToString(inst.InstanceId),
		State: state,
		Tags:  tags.FromEC2(inst.Tags),
	}
}
