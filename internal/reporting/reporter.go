// Package reporting stores test attachments next to the test report.
package reporting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/testme/tcm-e2e/internal/logging"
)

// FailureScreenshot is the attachment name of the screenshot taken when a
// test fails
const FailureScreenshot = "failure_screenshot"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Reporter writes attachments under a report directory
type Reporter struct {
	dir    string
	logger *zap.Logger
}

// NewReporter creates a reporter rooted at dir
func NewReporter(dir string, logger *zap.Logger) (*Reporter, error) {
	if dir == "" {
		return nil, errors.New("report directory is required")
	}
	return &Reporter{
		dir:    dir,
		logger: logging.OrNop(logger).Named("reporting"),
	}, nil
}

// Dir returns the report directory
func (r *Reporter) Dir() string {
	return r.dir
}

// Attach writes png as <dir>/<test>/<name>-<uuid>.png and returns the path
func (r *Reporter) Attach(testName, name string, png []byte) (string, error) {
	if len(png) == 0 {
		return "", fmt.Errorf("empty attachment %q", name)
	}

	dir := filepath.Join(r.dir, Sanitize(testName))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%s.png", Sanitize(name), uuid.NewString()))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}

	r.logger.Info("Attachment saved", zap.String("test", testName), zap.String("path", path))
	return path, nil
}

// Sanitize turns a test name such as "TestCreate/valid_data" into a single
// path segment
func Sanitize(name string) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "_.")
	if s == "" {
		return "unnamed"
	}
	return s
}
