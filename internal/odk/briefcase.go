// Package odk drives the ODK Briefcase CLI to pull survey submissions from
// the collection server and export them as CSV.
package odk

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/openvital/smartva-bridge/internal/config"
	"github.com/openvital/smartva-bridge/internal/pkg/logger"
)

// Briefcase date flags use slash-separated dates.
const briefcaseDateFormat = "2006/01/02"

var log = logger.Component("odk")

// Briefcase wraps one configured Briefcase installation.
type Briefcase struct {
	cfg config.ODKConfig
}

// NewBriefcase creates a Briefcase runner from config.
func NewBriefcase(cfg config.ODKConfig) *Briefcase {
	return &Briefcase{cfg: cfg}
}

// Export pulls submissions and exports them to a CSV file, returning its
// path. With all set the export covers every submission; otherwise it is
// bounded to [start, end). The exported file may legitimately contain only
// a header when the window has no submissions.
func (b *Briefcase) Export(ctx context.Context, start, end time.Time, all bool) (string, error) {
	if err := os.MkdirAll(b.cfg.ExportDir, 0o755); err != nil {
		return "", fmt.Errorf("creating export dir: %w", err)
	}

	filename := fmt.Sprintf("briefcase_%s.csv", time.Now().UTC().Format("20060102T150405Z"))
	args := b.args(start, end, all, filename)

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout())
	defer cancel()

	log.Info("running briefcase export",
		"form_id", b.cfg.FormID,
		"all", fmt.Sprintf("%t", all),
		"args", strings.Join(redactArgs(args), " "))

	cmd := exec.CommandContext(ctx, b.cfg.JavaPath, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("briefcase export failed: %w: %s", err, tail(output.String()))
	}

	return filepath.Join(b.cfg.ExportDir, filename), nil
}

// args builds the Briefcase CLI invocation. Pull and export run in one
// call; media is excluded because only the CSV feeds the classifier.
func (b *Briefcase) args(start, end time.Time, all bool, filename string) []string {
	args := []string{
		"-jar", b.cfg.BriefcaseJar,
		"--form_id", b.cfg.FormID,
		"--storage_directory", b.cfg.StorageDir,
		"--export_directory", b.cfg.ExportDir,
		"--export_filename", filename,
		"--aggregate_url", b.cfg.AggregateURL,
		"--odk_username", b.cfg.Username,
		"--odk_password", b.cfg.Password,
		"--exclude_media_export",
		"--pull_before",
	}
	if !all {
		args = append(args,
			"--export_start_date", start.Format(briefcaseDateFormat),
			"--export_end_date", end.Format(briefcaseDateFormat),
		)
	}
	return args
}

// redactArgs masks the password value for logging.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "--odk_password" {
			out[i+1] = "***"
		}
	}
	return out
}

// tail returns the last few lines of process output for error context.
func tail(s string) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, " | ")
}
