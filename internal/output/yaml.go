package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/ec2backup/internal/backup"
)

// YAMLFormatter formats results as YAML.
type YAMLFormatter struct{}

// FormatInstances formats instances as a YAML stream (multiple documents
// separated by ---).
func (f *YAMLFormatter) FormatInstances(instances []backup.Instance) (string, error) {
	var buf bytes.Buffer

	for i, inst := range instances {
		data, err := yaml.Marshal(inst)
		if err != nil {
			return "", fmt.Errorf("failed to marshal instance %s to YAML: %w", inst.ID, err)
		}

		// Add document separator between entries (but not before the first one)
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}

	return buf.String(), nil
}

// FormatImages formats images as a YAML stream.
func (f *YAMLFormatter) FormatImages(images []backup.Image) (string, error) {
	var buf bytes.Buffer

	for i, img := range images {
		data, err := yaml.Marshal(img)
		if err != nil {
			return "", fmt.Errorf("failed to marshal image %s to YAML: %w", img.ID, err)
		}

		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}

	return buf.String(), nil
}

// FormatReport formats a run report as a single YAML document.
func (f *YAMLFormatter) FormatReport(report *backup.Report) (string, error) {
	data, err := yaml.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to YAML: %w", err)
	}
	return string(data), nil
}
