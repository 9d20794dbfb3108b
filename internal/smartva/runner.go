// Package smartva invokes the SmartVA-Analyze CLI to assign causes of
// death to raw survey exports.
package smartva

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

// The classifier writes per-module result trees under the output dir; the
// pipeline consumes only the individual-level cause assignments.
const individualCSV = "1-individual-cause-of-death/individual-cause-of-death.csv"

var log = logger.Component("smartva")

// Runner wraps one configured SmartVA installation.
type Runner struct {
	cfg config.SmartVAConfig
}

// NewRunner creates a classifier runner from config.
func NewRunner(cfg config.SmartVAConfig) *Runner {
	return &Runner{cfg: cfg}
}

// Classify runs the classifier over a raw export and returns the path of
// the individual cause-of-death CSV. It returns ("", nil) when the
// classifier completed but produced no output, which callers treat as
// nothing to import.
func (r *Runner) Classify(ctx context.Context, rawCSV string) (string, error) {
	outDir := filepath.Join(r.cfg.OutputDir, fmt.Sprintf("run_%s", time.Now().UTC().Format("20060102T150405Z")))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	args := r.args(rawCSV, outDir)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout())
	defer cancel()

	log.Info("running classifier", "input", rawCSV, "output_dir", outDir)

	cmd := exec.CommandContext(ctx, r.cfg.Executable, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("smartva failed: %w: %s", err, tail(output.String()))
	}

	result := filepath.Join(outDir, individualCSV)
	if _, err := os.Stat(result); err != nil {
		if os.IsNotExist(err) {
			log.Warn("classifier produced no individual output", "output_dir", outDir)
			return "", nil
		}
		return "", fmt.Errorf("checking classifier output: %w", err)
	}
	return result, nil
}

// args builds the SmartVA CLI invocation. The HIV, malaria, and HCE flags
// tune the classifier's priors to the deployment region; figures are
// suppressed because only the CSV is consumed.
func (r *Runner) args(input, outDir string) []string {
	return []string{
		"--country", r.cfg.Country,
		"--hiv", boolArg(r.cfg.HIV),
		"--malaria", boolArg(r.cfg.Malaria),
		"--hce", boolArg(r.cfg.HCE),
		"--figures", "False",
		input,
		outDir,
	}
}

// boolArg renders booleans the way the classifier CLI expects them.
func boolArg(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, " | ")
}
