package backup

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jbweber/ec2backup/internal/cloud"
	"github.com/jbweber/ec2backup/internal/config"
)

// Run executes a full run: discovery, image creation, then the expiry sweep.
//
// The returned Report is never nil, even when the run fails. The error is a
// *FatalError when a failure policy aborted the run, the aggregated failures
// of collect-policy operations, or the context's error when it was cancelled.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	s := r.start("run")
	err := s.backup(ctx)
	if err == nil {
		err = s.sweep(ctx)
	}
	return s.report, s.finish(err)
}

// Backup executes discovery and image creation only.
func (r *Runner) Backup(ctx context.Context) (*Report, error) {
	s := r.start("backup")
	return s.report, s.finish(s.backup(ctx))
}

// Sweep executes the expiry sweep only.
func (r *Runner) Sweep(ctx context.Context) (*Report, error) {
	s := r.start("sweep")
	return s.report, s.finish(s.sweep(ctx))
}

// run is the state of one invocation.
type run struct {
	r      *Runner
	log    *zap.Logger
	report *Report
	errs   error
}

func (r *Runner) start(mode string) *run {
	id := uuid.NewString()
	s := &run{
		r:   r,
		log: r.log.With(zap.String("run_id", id)),
		report: &Report{
			RunID:            id,
			StartedAt:        r.clock.Now(),
			DryRun:           r.cfg.DryRun,
			Created:          []CreatedImage{},
			DeletedImages:    []string{},
			DeletedSnapshots: []string{},
		},
	}
	s.log.Info("starting run",
		zap.String("mode", mode),
		zap.String("tag_key", r.cfg.TagKey),
		zap.Int("retention_days", r.cfg.RetentionDays),
		zap.Bool("dry_run", r.cfg.DryRun))
	return s
}

func (s *run) finish(err error) error {
	if err == nil {
		err = s.errs
	}
	s.report.FinishedAt = s.r.clock.Now()
	duration := s.report.FinishedAt.Sub(s.report.StartedAt)
	s.r.metrics.RunFinished(duration, err)

	s.log.Info("run finished",
		zap.Int("instances", s.report.Instances),
		zap.Int("created", len(s.report.Created)),
		zap.Int("expired", s.report.Expired),
		zap.Int("deleted_images", len(s.report.DeletedImages)),
		zap.Int("deleted_snapshots", len(s.report.DeletedSnapshots)),
		zap.Int("skipped", len(s.report.Skipped)),
		zap.Duration("duration", duration),
		zap.Bool("failed", err != nil))
	return err
}

// fail applies the failure policy of an operation class. It logs exactly one
// error line and returns a *FatalError only under the abort policy.
func (s *run) fail(operation, resource string, err error) error {
	policy := s.r.policy(operation)
	s.r.metrics.OperationFailed(operation)

	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("resource", resource),
		zap.String("policy", string(policy)),
		zap.Error(err),
	}
	if code := cloud.ErrorCode(err); code != "" {
		fields = append(fields, zap.String("error_code", code))
	}
	s.log.Error("operation failed", fields...)

	switch policy {
	case config.PolicyAbort:
		return &FatalError{Operation: operation, Resource: resource, Err: err}
	case config.PolicyCollect:
		s.errs = multierr.Append(s.errs, err)
		s.report.Errors = append(s.report.Errors, err.Error())
	}

	s.report.Skipped = append(s.report.Skipped, SkippedItem{
		Operation: operation,
		Resource:  resource,
		Error:     err.Error(),
	})
	return nil
}

func (s *run) backup(ctx context.Context) error {
	instances, err := s.r.listInstances(ctx, s.log)
	if err != nil {
		return s.fail(OpDiscovery, "instances", err)
	}
	s.report.Instances = len(instances)

	for _, inst := range instances {
		if err := ctx.Err(); err != nil {
			return err
		}

		created, err := s.r.createImage(ctx, s.log, inst)
		if err != nil {
			if ferr := s.fail(OpCreate, inst.ID, err); ferr != nil {
				return ferr
			}
			continue
		}

		s.report.Created = append(s.report.Created, *created)
		if !s.report.DryRun {
			s.r.metrics.ImageCreated()
		}
	}
	return nil
}

func (s *run) sweep(ctx context.Context) error {
	expired, err := s.r.listExpiredImages(ctx, s.log)
	if err != nil {
		return s.fail(OpDiscovery, "images", err)
	}
	s.report.Expired = len(expired)

	for _, img := range expired {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.sweepImage(ctx, img); err != nil {
			return err
		}
	}
	return nil
}

// sweepImage deregisters one expired image, then deletes its snapshots.
// Snapshots are looked up first because the image id is the only link to
// them once the image is gone.
func (s *run) sweepImage(ctx context.Context, img Image) error {
	snapshots, err := s.r.listSnapshotsForImage(ctx, s.log, img.ID)
	if err != nil {
		return s.fail(OpDiscovery, img.ID, err)
	}

	if err := s.r.deleteImage(ctx, s.log, img.ID); err != nil {
		return s.fail(OpDelete, img.ID, err)
	}
	s.report.DeletedImages = append(s.report.DeletedImages, img.ID)
	if !s.report.DryRun {
		s.r.metrics.ImageDeleted()
	}

	for _, snapshotID := range snapshots {
		if err := s.r.deleteSnapshot(ctx, s.log, snapshotID); err != nil {
			if ferr := s.fail(OpDelete, snapshotID, err); ferr != nil {
				return ferr
			}
			continue
		}
		s.report.DeletedSnapshots = append(s.report.DeletedSnapshots, snapshotID)
		if !s.report.DryRun {
			s.r.metrics.SnapshotDeleted()
		}
	}
	return nil
}
