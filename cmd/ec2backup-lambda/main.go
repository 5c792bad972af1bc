// Command ec2backup-lambda runs one full backup and retention pass per
// scheduled EventBridge invocation.
//
// Configuration comes from the function's environment (BACKUP_RETENTION,
// BACKUP_TAG, BACKUP_ONLYRUNNING, BACKUP_DEBUG and the other BACKUP_*
// variables). BACKUP_CONFIG may name a YAML file bundled with the function.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/jbweber/ec2backup/internal/backup"
	"github.com/jbweber/ec2backup/internal/cloud"
	"github.com/jbweber/ec2backup/internal/config"
	"github.com/jbweber/ec2backup/internal/loader"
	"github.com/jbweber/ec2backup/internal/logging"
)

const envConfigPath = "BACKUP_CONFIG"

// workflow is the part of *backup.Runner the handler needs.
type workflow interface {
	Run(ctx context.Context) (*backup.Report, error)
}

type handler struct {
	runner workflow
	log    *zap.Logger
}

func main() {
	cfg, err := loader.Load(os.Getenv(envConfigPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("settings", zap.Stringer("config", cfg))

	client, err := cloud.Connect(context.Background(), cfg.Region)
	if err != nil {
		logger.Fatal("failed to connect to AWS", zap.Error(err))
		os.Exit(1)
	}

	h := &handler{
		runner: backup.NewRunner(cfg, client, logger.With(zap.String("region", client.Region()))),
		log:    logger,
	}
	lambda.Start(h.Handle)
}

// newLogger builds a logger whose Fatal writes a critical entry and returns,
// leaving the runtime to report the failure.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Config{Debug: cfg.Debug, Format: cfg.LogFormat}, zap.WithFatalHook(logging.ReturnOnFatal))
}

// Handle runs the workflow for one scheduled event. The report is returned
// as the invocation result. Any error marks the invocation failed.
func (h *handler) Handle(ctx context.Context, event events.CloudWatchEvent) (*backup.Report, error) {
	log := h.log.With(zap.String("event_id", event.ID))
	log.Debug("invoked", zap.String("source", event.Source), zap.Time("event_time", event.Time))

	report, err := h.runner.Run(ctx)
	if err != nil {
		if backup.IsFatal(err) {
			log.Fatal("run aborted", zap.Error(err))
		} else {
			log.Error("run finished with errors", zap.Error(err))
		}
		return report, err
	}

	return report, nil
}
