// Package naming provides the naming and date conventions for images
// created by the backup workflow: image names, the display name derived
// from the source instance, and the expiry date stored in the
// LEB-DeleteOn tag.
package naming

import (
	"fmt"
	"time"

	"github.com/jbweber/ec2backup/internal/tags"
)

const (
	// DateLayout is the format of the LEB-DeleteOn tag value.
	DateLayout = "2006-01-02"

	// timestampLayout prefixes image names so they sort by creation time.
	timestampLayout = "20060102_1504"

	// ImageDescription is set on every image created by ec2backup.
	ImageDescription = "Created by ec2backup"
)

// InstanceName returns the Name tag of an instance, falling back to its id
// when the tag is missing or empty.
func InstanceName(instanceID string, t tags.Set) string {
	if name, ok := t.Get(tags.KeyName); ok && name != "" {
		return name
	}
	return instanceID
}

// ImageName returns the image name for an instance imaged at now.
// Format: {YYYYMMDD_HHMM}-LEB-{instanceName}
//
// Example: 2024-01-01 09:05 and "web1" → 20240101_0905-LEB-web1
func ImageName(now time.Time, instanceName string) string {
	return fmt.Sprintf("%s-LEB-%s", now.Format(timestampLayout), instanceName)
}

// DeleteOn returns the expiry date for an image created at now.
// The time of day is dropped: only the calendar date is kept.
//
// Example: 2024-01-01 and 7 days → "2024-01-08"
func DeleteOn(now time.Time, retentionDays int) string {
	return now.AddDate(0, 0, retentionDays).Format(DateLayout)
}

// ParseDeleteOn parses a LEB-DeleteOn value as midnight in loc.
func ParseDeleteOn(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s value %q: %w", tags.KeyDeleteOn, value, err)
	}
	return t, nil
}

// Expired reports whether an image tagged with deleteOn is due at now.
// An image becomes due at the start of its delete-on date.
func Expired(deleteOn, now time.Time) bool {
	return !deleteOn.After(now)
}
