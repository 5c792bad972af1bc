package backup

import (
	"errors"
	"fmt"
	"time"

	"github.com/jbweber/ec2backup/internal/tags"
)

// ErrInstanceNotFound is returned when an instance disappears between
// discovery and imaging.
var ErrInstanceNotFound = errors.New("instance not found")

// Operation classes, each governed by its own failure policy.
const (
	OpDiscovery = "discovery"
	OpCreate    = "create"
	OpDelete    = "delete"
)

// Instance is a discovered EC2 instance.
type Instance struct {
	ID    string   `json:"id" yaml:"id"`
	State string   `json:"state" yaml:"state"`
	Tags  tags.Set `json:"tags" yaml:"tags"`
}

// Image is an image managed by the workflow.
type Image struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	CreationDate string    `json:"creationDate,omitempty" yaml:"creationDate,omitempty"`
	DeleteOn     time.Time `json:"deleteOn" yaml:"deleteOn"`
	Tags         tags.Set  `json:"tags" yaml:"tags"`
}

// CreatedImage describes an image produced by CreateImage. ImageID is empty
// in dry-run mode.
type CreatedImage struct {
	InstanceID string   `json:"instanceId" yaml:"instanceId"`
	ImageID    string   `json:"imageId,omitempty" yaml:"imageId,omitempty"`
	Name       string   `json:"name" yaml:"name"`
	DeleteOn   string   `json:"deleteOn" yaml:"deleteOn"`
	NoReboot   bool     `json:"noReboot" yaml:"noReboot"`
	Tags       tags.Set `json:"tags" yaml:"tags"`
}

// SkippedItem records a failure that did not end the run.
type SkippedItem struct {
	Operation string `json:"operation" yaml:"operation"`
	Resource  string `json:"resource" yaml:"resource"`
	Error     string `json:"error" yaml:"error"`
}

// Report summarizes one run.
type Report struct {
	RunID            string         `json:"runId" yaml:"runId"`
	StartedAt        time.Time      `json:"startedAt" yaml:"startedAt"`
	FinishedAt       time.Time      `json:"finishedAt" yaml:"finishedAt"`
	DryRun           bool           `json:"dryRun" yaml:"dryRun"`
	Instances        int            `json:"instances" yaml:"instances"`
	Created          []CreatedImage `json:"created" yaml:"created"`
	Expired          int            `json:"expired" yaml:"expired"`
	DeletedImages    []string       `json:"deletedImages" yaml:"deletedImages"`
	DeletedSnapshots []string       `json:"deletedSnapshots" yaml:"deletedSnapshots"`
	Skipped          []SkippedItem  `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Errors           []string       `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// FatalError ends a run under the abort policy.
type FatalError struct {
	Operation string
	Resource  string
	Err       error
}

func (e *FatalError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s failed for %s: %v", e.Operation, e.Resource, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err ended a run under the abort policy.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
