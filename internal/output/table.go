package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jbweber/ec2backup/internal/backup"
	"github.com/jbweber/ec2backup/internal/naming"
	"github.com/jbweber/ec2backup/internal/tags"
)

// TableFormatter formats results as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

func newTabWriter(buf *bytes.Buffer) *tabwriter.Writer {
	return tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
}

// FormatInstances formats instances as a table.
func (f *TableFormatter) FormatInstances(instances []backup.Instance) (string, error) {
	if len(instances) == 0 {
		return "No instances found\n", nil
	}

	var buf bytes.Buffer
	w := newTabWriter(&buf)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "INSTANCE ID\tNAME\tSTATE\tREBOOT\tCOPY TAGS")
	}

	for _, inst := range instances {
		state := inst.State
		if state == "" {
			state = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			inst.ID,
			naming.InstanceName(inst.ID, inst.Tags),
			state,
			yesNo(inst.Tags.Enabled(tags.KeyReboot)),
			yesNo(inst.Tags.Enabled(tags.KeyCopyTag)))
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatImages formats images as a table.
func (f *TableFormatter) FormatImages(images []backup.Image) (string, error) {
	if len(images) == 0 {
		return "No images found\n", nil
	}

	var buf bytes.Buffer
	w := newTabWriter(&buf)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "IMAGE ID\tNAME\tDELETE ON\tAGE")
	}

	for _, img := range images {
		deleteOn := "-"
		if !img.DeleteOn.IsZero() {
			deleteOn = img.DeleteOn.Format(naming.DateLayout)
		}

		// CreationDate is ISO 8601 as returned by DescribeImages
		age := "-"
		if created, err := time.Parse(time.RFC3339, img.CreationDate); err == nil {
			age = formatAge(time.Since(created))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", img.ID, dash(img.Name), deleteOn, age)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatReport formats a run report as a summary followed by tables of
// created images and skipped items.
func (f *TableFormatter) FormatReport(report *backup.Report) (string, error) {
	var buf bytes.Buffer
	w := newTabWriter(&buf)

	_, _ = fmt.Fprintf(w, "Run ID:\t%s\n", report.RunID)
	_, _ = fmt.Fprintf(w, "Started:\t%s\n", report.StartedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Second))
	_, _ = fmt.Fprintf(w, "Dry run:\t%s\n", yesNo(report.DryRun))
	_, _ = fmt.Fprintf(w, "Instances:\t%d\n", report.Instances)
	_, _ = fmt.Fprintf(w, "Images created:\t%d\n", len(report.Created))
	_, _ = fmt.Fprintf(w, "Images expired:\t%d\n", report.Expired)
	_, _ = fmt.Fprintf(w, "Images deleted:\t%d\n", len(report.DeletedImages))
	_, _ = fmt.Fprintf(w, "Snapshots deleted:\t%d\n", len(report.DeletedSnapshots))
	_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", len(report.Skipped))
	_ = w.Flush()

	if len(report.Created) > 0 {
		buf.WriteString("\n")
		w = newTabWriter(&buf)
		if !f.NoHeaders {
			_, _ = fmt.Fprintln(w, "INSTANCE ID\tIMAGE ID\tNAME\tDELETE ON")
		}
		for _, c := range report.Created {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.InstanceID, dash(c.ImageID), c.Name, c.DeleteOn)
		}
		_ = w.Flush()
	}

	if len(report.Skipped) > 0 {
		buf.WriteString("\n")
		w = newTabWriter(&buf)
		if !f.NoHeaders {
			_, _ = fmt.Fprintln(w, "OPERATION\tRESOURCE\tERROR")
		}
		for _, s := range report.Skipped {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", s.Operation, s.Resource, s.Error)
		}
		_ = w.Flush()
	}

	return buf.String(), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatAge formats a duration as a human-readable age string.
// Examples: "5s", "2m", "3h", "4d", "2w", "1y"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())

	// Less than 1 minute
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}

	weeks := days / 7
	// Less than ~2 months (8 weeks)
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}

	years := days / 365
	if years > 0 {
		return fmt.Sprintf("%dy", years)
	}

	return fmt.Sprintf("%dd", days)
}
