package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// EnsureDirectoryWritable verifies dir exists, is a directory, and accepts a
// probe file write. Called once per run before any sample is cut, so a
// read-only or missing temp root fails fast instead of mid-search.
func EnsureDirectoryWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	probe := filepath.Join(dir, ".crfscout-write-check")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	return os.Remove(probe)
}

// TempDir is a single run's working directory for cut samples and encoded
// probe outputs. It is owned by whichever component created it; callers must
// call Cleanup on every exit path, including cancellation.
type TempDir struct {
	path string
}

// CreateTempDir makes a new randomly-named directory under baseDir named
// prefix_<random>.
func CreateTempDir(baseDir, prefix string) (*TempDir, error) {
	suffix, err := generateRandomString(12)
	if err != nil {
		return nil, fmt.Errorf("generate temp dir name: %w", err)
	}
	path := filepath.Join(baseDir, prefix+"_"+suffix)
	if err := os.Mkdir(path, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir %s: %w", path, err)
	}
	return &TempDir{path: path}, nil
}

// Path returns the directory's filesystem path.
func (d *TempDir) Path() string { return d.path }

// Cleanup removes the directory and everything under it. Safe to call more
// than once.
func (d *TempDir) Cleanup() error {
	return os.RemoveAll(d.path)
}

// TempFile is a single scratch file (a cut sample clip or a probe's encoded
// output) owned by whichever pipeline stage created it.
type TempFile struct {
	path string
}

// CreateTempFile creates an empty file under baseDir named
// prefix_<random>.ext and returns a handle that owns its cleanup.
func CreateTempFile(baseDir, prefix, ext string) (*TempFile, error) {
	path, err := CreateTempFilePath(baseDir, prefix, ext)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create temp file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &TempFile{path: path}, nil
}

// CreateTempFilePath reserves a path under baseDir named prefix_<random>.ext
// without creating the file. Used when the caller (typically ffmpeg) will
// create the file itself via its output argument.
func CreateTempFilePath(baseDir, prefix, ext string) (string, error) {
	suffix, err := generateRandomString(12)
	if err != nil {
		return "", fmt.Errorf("generate temp file name: %w", err)
	}
	name := prefix + "_" + suffix
	if ext != "" {
		name += "." + ext
	}
	return filepath.Join(baseDir, name), nil
}

// Cleanup removes the file. Safe to call more than once.
func (f *TempFile) Cleanup() error {
	err := os.Remove(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// CleanupStaleTempFiles removes files under dir whose name starts with
// prefix and whose modification time is older than maxAge. Run at startup to
// sweep scratch files left behind by a prior run that was killed rather than
// cancelled cleanly. Missing dir is not an error.
func CleanupStaleTempFiles(dir, prefix string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	count := 0
	for _, entry := range entries {
		name := entry.Name()
		if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, name)); err == nil {
			count++
		}
	}
	return count, nil
}

// GetAvailableSpace returns the free bytes on the filesystem containing
// path, or 0 if it cannot be determined.
func GetAvailableSpace(path string) uint64 {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0
	}
	return stat.Bavail * uint64(stat.Bsize)
}

// CheckDiskSpace logs (via logf, if non-nil) a warning when the temp
// directory has less than one gibibyte free. Low temp space is a frequent
// cause of a cut or probe-encode failing partway through.
func CheckDiskSpace(path string, logf func(format string, args ...any)) uint64 {
	available := GetAvailableSpace(path)
	if logf != nil && available > 0 && available < GiB {
		logf("low disk space in %s: %s available", path, FormatBytes(available))
	}
	return available
}

func generateRandomString(n int) (string, error) {
	buf := make([]byte, (n+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	s := hex.EncodeToString(buf)
	return s[:n], nil
}
