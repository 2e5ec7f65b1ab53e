// Package cutter produces short lossless clips from a reference for the
// sample-encode pipeline to encode and score.
package cutter

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/finchav/crfscout/internal/config"
	"github.com/finchav/crfscout/internal/lifecycle"
	"github.com/finchav/crfscout/internal/sampleplan"
	"github.com/finchav/crfscout/internal/util"
	"github.com/finchav/crfscout/internal/xerrors"
)

// Cutter cuts sampleplan.Sample clips out of a reference file into a run's temp
// directory.
type Cutter struct {
	TempDir string
}

// New returns a Cutter that writes clips under tempDir.
func New(tempDir string) *Cutter {
	return &Cutter{TempDir: tempDir}
}

// Cut produces a lossless remux of [sample.Start, sample.Start+sample.Duration)
// from referencePath. The output container matches referencePath's extension
// when it is .mp4, and defaults to .mkv otherwise. Fails with an
// EmptySampleError when the produced clip is under 1 KiB.
func (c *Cutter) Cut(ctx context.Context, referencePath string, sample sampleplan.Sample) (string, error) {
	ext := "mkv"
	if strings.EqualFold(fileExt(referencePath), ".mp4") {
		ext = "mp4"
	}

	outPath, err := util.CreateTempFilePath(c.TempDir, fmt.Sprintf("sample%d", sample.Index), ext)
	if err != nil {
		return "", xerrors.NewEncoderError("could not reserve sample clip path", err)
	}

	args := []string{
		"-y",
		"-ss", formatSeconds(sample.Start.Seconds()),
		"-i", referencePath,
		"-t", formatSeconds(sample.Duration.Seconds()),
		"-map", "0:v:0",
		"-map", "0:a?",
		"-sn",
		"-c", "copy",
		"-fflags", "+genpts",
		outPath,
	}

	var stderr strings.Builder
	cmd := lifecycle.Command(ctx, "ffmpeg", args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", xerrors.NewEncoderError(
			fmt.Sprintf("cutting sample %d failed", sample.Index),
			xerrors.WrapExecError("ffmpeg", err, tail(stderr.String(), 32*1024)),
		)
	}

	size, err := util.GetFileSize(outPath)
	if err != nil {
		return "", xerrors.NewEncoderError("could not stat cut sample", err)
	}
	if int64(size) < config.EmptySampleMinBytes {
		_ = os.Remove(outPath)
		return "", xerrors.NewEmptySampleError(outPath, int64(size))
	}

	return outPath, nil
}

func fileExt(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return path[i:]
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}

// tail returns the last n bytes of s, so a long stderr capture never grows
// unbounded while still surfacing the failure that matters.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
