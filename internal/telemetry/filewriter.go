package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// NewFileWriter opens a timestamped run-log file under logDir and returns it
// as an io.WriteCloser suitable for passing to Init as an extra sink. Callers
// are responsible for closing it when the run ends.
func NewFileWriter(logDir string) (*os.File, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", logDir, err)
	}

	filename := fmt.Sprintf("crfscout_run_%s.log", time.Now().Format("20060102_150405"))
	path := filepath.Join(logDir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create log file %s: %w", path, err)
	}
	return file, nil
}
