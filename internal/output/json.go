package output

import (
	"encoding/json"
	"fmt"

	"github.com/jbweber/ec2backup/internal/backup"
)

// JSONFormatter formats results as JSON.
type JSONFormatter struct{}

// FormatInstances formats instances as a JSON array.
func (f *JSONFormatter) FormatInstances(instances []backup.Instance) (string, error) {
	if len(instances) == 0 {
		return "[]\n", nil
	}
	return marshalJSON(instances, "instances")
}

// FormatImages formats images as a JSON array.
func (f *JSONFormatter) FormatImages(images []backup.Image) (string, error) {
	if len(images) == 0 {
		return "[]\n", nil
	}
	return marshalJSON(images, "images")
}

// FormatReport formats a run report as a JSON object.
func (f *JSONFormatter) FormatReport(report *backup.Report) (string, error) {
	return marshalJSON(report, "report")
}

func marshalJSON(v interface{}, what string) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to JSON: %w", what, err)
	}
	return string(data) + "\n", nil
}
