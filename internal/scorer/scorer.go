// Package scorer measures the objective quality of a distorted sample
// against its reference clip, via ffmpeg's libvmaf or xpsnr filter.
package scorer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/finchav/crfscout/internal/config"
	"github.com/finchav/crfscout/internal/lifecycle"
	"github.com/finchav/crfscout/internal/xerrors"
)

// QualitySpec is the full set of parameters that influence a quality
// measurement but not the encode itself; it participates in a cache key
// exactly as EncodeSpec does.
type QualitySpec struct {
	Metric           config.QualityMetric
	Model            string // VMAF only; "" selects the automatic 1k/4k model
	Scale            string // "auto" (default), "none", or "WxH"
	FPS              string // analysis frame rate; "" selects the metric default
	ReferenceVFilter string
	PixFormat        string
	Threads          int
}

// NewQualitySpec derives a QualitySpec from run configuration, resolving
// unset fields to their documented defaults.
func NewQualitySpec(cfg *config.Config) QualitySpec {
	metric, _ := cfg.QualityFloor()
	spec := QualitySpec{
		Metric:           metric,
		Model:            cfg.VMAFOpts,
		Scale:            cfg.VMAFScale,
		ReferenceVFilter: cfg.ReferenceVFilter,
		Threads:          runtime.NumCPU(),
	}
	if metric == config.MetricVMAF {
		spec.FPS = cfg.VMAFFPS
	} else {
		spec.FPS = cfg.XPSNRFPS
	}
	if spec.Scale == "" {
		spec.Scale = "auto"
	}
	return spec
}

const (
	defaultVMAFFPS  = 25
	defaultXPSNRFPS = 60

	// vmaf4KModel and vmaf1KModel are ffmpeg's bundled libvmaf model names.
	vmaf4KModel = "vmaf_4k_v0.6.1"
	vmaf1KModel = "vmaf_v0.6.1"

	// infiniteScoreSentinel stands in for a +∞ XPSNR score (a bit-exact
	// distorted/reference pair): clearly above any realistic quality floor,
	// so it always reads as "meets quality," without claiming an exact value
	// that was never actually measured.
	infiniteScoreSentinel = 1000.0
	// negativeInfiniteScoreSentinel stands in for a -∞ score: clearly below
	// any realistic quality floor.
	negativeInfiniteScoreSentinel = -1000.0
)

// Result is one scorer invocation's outcome.
type Result struct {
	Metric config.QualityMetric
	Score  float64
}

var (
	vmafScoreRegex = regexp.MustCompile(`VMAF score:\s*([-\d.]+)`)
	xpsnrMinRegex  = regexp.MustCompile(`\(minimum:\s*([-+\w.]+)\)`)
)

// Score runs the configured metric over distortedPath against referencePath
// and returns its score. distortedFrames/referenceFrames, when both
// positive, are sanity-checked to be within one frame of each other before
// the metric filter runs; a mismatch is folded into the returned
// ScoreParseError rather than silently scoring a truncated pair.
func Score(ctx context.Context, spec QualitySpec, referencePath, distortedPath string, referenceFrames, distortedFrames int64) (Result, error) {
	if referenceFrames > 0 && distortedFrames > 0 {
		if diff := referenceFrames - distortedFrames; diff > 1 || diff < -1 {
			return Result{}, xerrors.NewScoreParseError(
				fmt.Sprintf("distorted sample has %d frames, reference clip has %d — more than one frame apart", distortedFrames, referenceFrames), nil)
		}
	}

	filter := buildFilterComplex(spec)
	args := []string{"-i", distortedPath, "-i", referencePath, "-filter_complex", filter, "-f", "null", "-"}

	cmd := lifecycle.Command(ctx, "ffmpeg", args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, xerrors.NewScoreParseError("failed to open ffmpeg stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return Result{}, xerrors.NewScoreParseError("failed to start ffmpeg", xerrors.WrapExecError("ffmpeg", err, ""))
	}

	var full strings.Builder
	score, found := parseScoreStream(stderr, spec.Metric, &full)

	waitErr := cmd.Wait()
	if waitErr != nil {
		return Result{}, xerrors.NewScoreParseError("ffmpeg scoring run failed", xerrors.WrapExecError("ffmpeg", waitErr, tail(full.String(), 32*1024)))
	}
	if !found {
		return Result{}, xerrors.NewScoreParseError("no numeric score found in scorer output", nil)
	}

	return Result{Metric: spec.Metric, Score: score}, nil
}

// buildFilterComplex renders spec into an ffmpeg filter_complex value.
// Input 0 is the distorted stream, input 1 is the reference.
func buildFilterComplex(spec QualitySpec) string {
	var pre strings.Builder
	distChain := "[0:v]"
	refChain := "[1:v]"

	pre.WriteString(fmt.Sprintf("%ssettb=AVTB[dist0];", distChain))
	pre.WriteString(fmt.Sprintf("%ssettb=AVTB", refChain))
	if spec.ReferenceVFilter != "" {
		pre.WriteString("," + spec.ReferenceVFilter)
	}
	pre.WriteString("[ref0];")
	distChain, refChain = "[dist0]", "[ref0]"

	fps := spec.FPS
	if spec.Metric == config.MetricXPSNR && fps == "" {
		fps = strconv.Itoa(defaultXPSNRFPS)
	} else if spec.Metric == config.MetricVMAF && fps == "" {
		fps = strconv.Itoa(defaultVMAFFPS)
	}
	if fps != "" {
		pre.WriteString(fmt.Sprintf("%sfps=%s[dist1];%sfps=%s[ref1];", distChain, fps, refChain, fps))
		distChain, refChain = "[dist1]", "[ref1]"
	}

	if spec.Metric == config.MetricVMAF {
		if w, h, ok := vmafScale(spec); ok {
			pre.WriteString(fmt.Sprintf("%sscale=%d:%d:flags=bicubic[dist2];%sscale=%d:%d:flags=bicubic[ref2];", distChain, w, h, refChain, w, h))
			distChain, refChain = "[dist2]", "[ref2]"
		}
	}

	pre.WriteString(distChain)
	pre.WriteString(refChain)

	if spec.Metric == config.MetricVMAF {
		pre.WriteString(fmt.Sprintf("libvmaf=%s", vmafOpts(spec)))
	} else {
		pre.WriteString("xpsnr")
	}
	return pre.String()
}

// vmafOpts renders the libvmaf filter's colon-separated option string.
func vmafOpts(spec QualitySpec) string {
	opts := []string{"shortest=true", "ts_sync_mode=nearest"}
	model := spec.Model
	if model == "" {
		model = vmaf1KModel
	}
	opts = append(opts, fmt.Sprintf("model=version=%s", model))
	threads := spec.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	opts = append(opts, fmt.Sprintf("n_threads=%d", threads))
	return strings.Join(opts, ":")
}

// ResolveVMAFModel picks vmaf_4k_v0.6.1 when the distorted stream exceeds
// 2560x1440, else the default 1k model.
func ResolveVMAFModel(width, height uint32) string {
	if width > 2560 || height > 1440 {
		return vmaf4KModel
	}
	return vmaf1KModel
}

// vmafScale resolves the auto/none/custom scale policy into a concrete
// target width/height, or reports no scaling is needed.
func vmafScale(spec QualitySpec) (w, h int, ok bool) {
	switch spec.Scale {
	case "", "auto":
		return 0, 0, false
	case "none":
		return 0, 0, false
	default:
		parts := strings.SplitN(spec.Scale, "x", 2)
		if len(parts) != 2 {
			return 0, 0, false
		}
		width, err1 := strconv.Atoi(parts[0])
		height, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return 0, 0, false
		}
		return width, height, true
	}
}

// AutoScaleTarget returns the (w, h) a resolution should be upscaled to
// under the "auto" scale policy for the resolved model, or reports no
// scaling is needed. Aspect ratio is preserved by scaling only the bound
// that matters (the other side uses ffmpeg's -1 convention, resolved by
// the caller).
func AutoScaleTarget(model string, width, height uint32) (targetW, targetH int, needed bool) {
	if model == vmaf1KModel && width <= 1728 && height <= 972 {
		return 1920, 1080, true
	}
	if model == vmaf4KModel && width <= 3456 && height <= 1944 {
		return 3840, 2160, true
	}
	return 0, 0, false
}

// parseScoreStream reads stderr byte-by-byte, coalescing \r/\n-terminated
// lines, looking for the metric's terminal score line while accumulating
// the full stream for diagnostics on failure.
func parseScoreStream(stderr io.Reader, metric config.QualityMetric, full *strings.Builder) (float64, bool) {
	reader := bufio.NewReader(stderr)
	var lineBuf strings.Builder
	var score float64
	var found bool

	flush := func() {
		line := lineBuf.String()
		lineBuf.Reset()
		if s, ok := extractScore(line, metric); ok {
			score, found = s, true
		}
	}

	for {
		b, err := reader.ReadByte()
		if err != nil {
			break
		}
		full.WriteByte(b)
		if b == '\r' || b == '\n' {
			flush()
			continue
		}
		lineBuf.WriteByte(b)
	}
	flush()

	return score, found
}

// extractScore pulls a numeric score out of one line of scorer output,
// normalising ±∞ XPSNR scores to a finite sentinel.
func extractScore(line string, metric config.QualityMetric) (float64, bool) {
	switch metric {
	case config.MetricVMAF:
		if m := vmafScoreRegex.FindStringSubmatch(line); len(m) == 2 {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v, true
			}
		}
	case config.MetricXPSNR:
		if !strings.Contains(line, "XPSNR") {
			return 0, false
		}
		if m := xpsnrMinRegex.FindStringSubmatch(line); len(m) == 2 {
			return normalizeXPSNR(m[1])
		}
	}
	return 0, false
}

func normalizeXPSNR(raw string) (float64, bool) {
	switch raw {
	case "inf", "+inf":
		return infiniteScoreSentinel, true
	case "-inf":
		return negativeInfiniteScoreSentinel, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	if math.IsInf(v, 1) {
		return infiniteScoreSentinel, true
	}
	if math.IsInf(v, -1) {
		return negativeInfiniteScoreSentinel, true
	}
	return v, true
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
