package encoderdriver

import (
	"bufio"
	"context"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/finchav/crfscout/internal/lifecycle"
	"github.com/finchav/crfscout/internal/util"
	"github.com/finchav/crfscout/internal/xerrors"
)

// Progress reports a sample encoder's advance through its clip, emitted as
// ffmpeg's own -stats lines are parsed off stderr.
type Progress struct {
	CurrentFrame uint64
	Percent      float32
	Speed        float32
	FPS          float32
	ETA          time.Duration
	ElapsedSecs  float64
}

// ProgressCallback is invoked once per progress line parsed from stderr.
type ProgressCallback func(Progress)

const stderrTailBytes = 32 * 1024

var timeRegex = regexp.MustCompile(`time=(\d{2}:\d{2}:\d{2}\.?\d*)`)

// Encode runs spec against inputPath, writing outputPath, and reports the
// encode's wall-clock duration and the resulting file size. sampleSeconds is
// the clip's known duration, used only to turn elapsed time into a percent
// and ETA for callback; it does not bound the encode itself.
func Encode(ctx context.Context, spec EncodeSpec, inputPath, outputPath string, sampleSeconds float64, callback ProgressCallback) (string, float64, uint64, error) {
	args, err := buildArgs(spec, inputPath, outputPath)
	if err != nil {
		return "", 0, 0, err
	}

	cmd := lifecycle.Command(ctx, "ffmpeg", args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", 0, 0, xerrors.NewEncoderError("failed to open ffmpeg stderr pipe", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return "", 0, 0, xerrors.NewEncoderError("failed to start ffmpeg", xerrors.WrapExecError("ffmpeg", err, ""))
	}

	var stderrBuilder strings.Builder
	parseProgress(stderr, &stderrBuilder, sampleSeconds, callback)

	waitErr := cmd.Wait()
	wallSeconds := time.Since(start).Seconds()
	stderrStr := stderrBuilder.String()

	if waitErr != nil {
		if ctx.Err() != nil {
			return "", wallSeconds, 0, xerrors.NewCancelledError()
		}
		return "", wallSeconds, 0, xerrors.NewEncoderError(
			"sample encode failed",
			xerrors.WrapExecError("ffmpeg", waitErr, tail(stderrStr, stderrTailBytes)),
		)
	}

	size, err := util.GetFileSize(outputPath)
	if err != nil {
		return "", wallSeconds, 0, xerrors.NewEncoderError("could not stat encoded sample", err)
	}

	return outputPath, wallSeconds, size, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// parseProgress reads ffmpeg stderr byte-by-byte, coalescing \r-terminated
// progress lines into callback invocations while still accumulating the
// full stream for a post-mortem stderr tail.
func parseProgress(stderr io.Reader, stderrBuilder *strings.Builder, durationSecs float64, callback ProgressCallback) {
	reader := bufio.NewReader(stderr)
	var lineBuf strings.Builder

	for {
		b, err := reader.ReadByte()
		if err != nil {
			break
		}
		stderrBuilder.WriteByte(b)

		if b == '\r' || b == '\n' {
			line := lineBuf.String()
			lineBuf.Reset()

			if callback != nil && strings.Contains(line, "frame=") {
				if progress := parseProgressLine(line, durationSecs); progress != nil {
					callback(*progress)
				}
			}
			continue
		}
		lineBuf.WriteByte(b)
	}
}

// parseProgressLine extracts frame/fps/speed/time fields from one ffmpeg
// progress line, e.g. "frame=  120 fps=45 q=28.0 size=... time=00:00:04.00
// bitrate=... speed=1.8x".
func parseProgressLine(line string, durationSecs float64) *Progress {
	var elapsedSecs float64
	if matches := timeRegex.FindStringSubmatch(line); len(matches) >= 2 {
		if secs, ok := util.ParseFFmpegTime(matches[1]); ok {
			elapsedSecs = secs
		}
	}

	var frame uint64
	var fps, speed float32

	if idx := strings.Index(line, "frame="); idx >= 0 {
		remaining := strings.TrimLeft(line[idx+6:], " ")
		if spaceIdx := strings.IndexAny(remaining, " \t"); spaceIdx > 0 {
			if f, err := strconv.ParseUint(remaining[:spaceIdx], 10, 64); err == nil {
				frame = f
			}
		}
	}

	if idx := strings.Index(line, "fps="); idx >= 0 {
		remaining := strings.TrimLeft(line[idx+4:], " ")
		if spaceIdx := strings.IndexAny(remaining, " \t"); spaceIdx > 0 {
			if f, err := strconv.ParseFloat(remaining[:spaceIdx], 32); err == nil {
				fps = float32(f)
			}
		}
	}

	if idx := strings.Index(line, "speed="); idx >= 0 {
		remaining := strings.TrimLeft(line[idx+6:], " ")
		if spaceIdx := strings.IndexAny(remaining, " \t\rx\n"); spaceIdx > 0 {
			remaining = remaining[:spaceIdx]
		}
		remaining = strings.TrimSuffix(remaining, "x")
		if s, err := strconv.ParseFloat(remaining, 32); err == nil {
			speed = float32(s)
		}
	}

	var percent float32
	if durationSecs > 0 {
		percent = float32((elapsedSecs / durationSecs) * 100)
		if percent > 100 {
			percent = 100
		}
	}

	var eta time.Duration
	if speed > 0 && durationSecs > 0 {
		remaining := durationSecs - elapsedSecs
		eta = time.Duration(remaining/float64(speed)) * time.Second
	}

	return &Progress{
		CurrentFrame: frame,
		Percent:      percent,
		Speed:        speed,
		FPS:          fps,
		ETA:          eta,
		ElapsedSecs:  elapsedSecs,
	}
}
