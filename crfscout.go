// Package crfscout finds the largest CRF an ffmpeg-driven encoder can use
// against a reference video while still meeting a VMAF or XPSNR quality
// floor and a maximum encoded-size ceiling.
//
// crfscout never performs the full-length encode itself: Search locates the
// CRF, and the caller drives its own full encode at the returned value.
//
// Basic usage:
//
//	searcher, err := crfscout.New(config.EncoderSVTAV1,
//	    crfscout.WithMinVMAF(95),
//	    crfscout.WithPreset("8"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := searcher.Search(ctx, "input.mkv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("crf %.1f, predicted size %.1f%%\n", result.CRF, result.PredictedEncodePercent)
package crfscout

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/finchav/crfscout/internal/cache"
	"github.com/finchav/crfscout/internal/config"
	"github.com/finchav/crfscout/internal/crfsearch"
	"github.com/finchav/crfscout/internal/encoderdriver"
	"github.com/finchav/crfscout/internal/lifecycle"
	"github.com/finchav/crfscout/internal/probe"
	"github.com/finchav/crfscout/internal/reporter"
	"github.com/finchav/crfscout/internal/sampleorch"
	"github.com/finchav/crfscout/internal/sampleplan"
	"github.com/finchav/crfscout/internal/scorer"
	"github.com/finchav/crfscout/internal/telemetry"
	"github.com/finchav/crfscout/internal/util"
)

// Re-export the config types a caller needs to construct a Searcher and its
// options, so callers never need to import internal/config directly.
type (
	Encoder       = config.Encoder
	QualityMetric = config.QualityMetric
)

const (
	EncoderSVTAV1 = config.EncoderSVTAV1
	EncoderAOMAV1 = config.EncoderAOMAV1
	EncoderX264   = config.EncoderX264
	EncoderX265   = config.EncoderX265
	EncoderVP9    = config.EncoderVP9
)

// Reporter re-exports internal/reporter.Reporter so callers can implement
// their own sink without importing the internal package.
type Reporter = reporter.Reporter

// Result is a finished search's accepted CRF and its measured outcome.
type Result struct {
	CRF                    float64
	Metric                 QualityMetric
	MeanScore              float64
	PredictedEncodePercent float64
	PredictedEncodeSeconds float64
	PredictedEncodeSize    uint64
	ProbesTried            int
}

// Searcher runs CRF searches against a fixed configuration.
type Searcher struct {
	config   *config.Config
	reporter reporter.Reporter
}

// Option configures a Searcher's Config at construction time.
type Option func(*config.Config)

// New creates a Searcher for the given encoder family, applying opts over
// its documented defaults.
func New(encoder config.Encoder, opts ...Option) (*Searcher, error) {
	cfg := config.NewConfig(encoder)
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Searcher{config: cfg, reporter: reporter.NullReporter{}}, nil
}

// SetReporter replaces the Searcher's Reporter, which receives lifecycle
// events as Search runs. The default is a NullReporter.
func (s *Searcher) SetReporter(r Reporter) {
	if r == nil {
		r = reporter.NullReporter{}
	}
	s.reporter = r
}

// WithMinVMAF sets the VMAF quality floor. Mutually exclusive with
// WithMinXPSNR; Validate rejects both being set.
func WithMinVMAF(score float64) Option {
	return func(c *config.Config) { c.MinVMAF = &score }
}

// WithMinXPSNR sets the XPSNR quality floor. Mutually exclusive with
// WithMinVMAF.
func WithMinXPSNR(score float64) Option {
	return func(c *config.Config) { c.MinXPSNR = &score }
}

// WithMaxEncodedPercent sets the size ceiling, as a percent of the
// reference's video-stream byte budget.
func WithMaxEncodedPercent(percent float64) Option {
	return func(c *config.Config) { c.MaxEncodedPercent = percent }
}

// WithCRFRange overrides the search bounds and step.
func WithCRFRange(min, max, increment float64) Option {
	return func(c *config.Config) {
		c.MinCRF, c.MaxCRF, c.CRFIncrement = min, max, increment
	}
}

// WithPreset sets the encoder speed preset.
func WithPreset(preset string) Option {
	return func(c *config.Config) { c.Preset = preset }
}

// WithPixFormat overrides the output pixel format.
func WithPixFormat(pixFormat string) Option {
	return func(c *config.Config) { c.PixFormat = pixFormat }
}

// WithVFilter sets an extra ffmpeg -vf applied to the distorted sample
// before encoding.
func WithVFilter(filter string) Option {
	return func(c *config.Config) { c.VFilter = filter }
}

// WithSVTParams passes through svtav1-params/aom-params key=value pairs.
func WithSVTParams(params ...string) Option {
	return func(c *config.Config) { c.SVTParams = params }
}

// WithKeyint sets the encoder's keyframe interval.
func WithKeyint(keyint string) Option {
	return func(c *config.Config) { c.Keyint = keyint }
}

// WithSceneChangeDetection enables scene-change detection at keyframes.
func WithSceneChangeDetection() Option {
	return func(c *config.Config) { c.SCD = true }
}

// WithEnc passes through extra output-side encoder flags as key=value pairs.
func WithEnc(flags ...string) Option {
	return func(c *config.Config) { c.Enc = flags }
}

// WithEncInput passes through extra input-side ffmpeg flags as key=value
// pairs.
func WithEncInput(flags ...string) Option {
	return func(c *config.Config) { c.EncInput = flags }
}

// WithReferenceVFilter sets an extra ffmpeg filter applied to the reference
// before scoring, independent of the distorted sample's WithVFilter.
func WithReferenceVFilter(filter string) Option {
	return func(c *config.Config) { c.ReferenceVFilter = filter }
}

// WithVMAFModel overrides libvmaf's model file, bypassing the resolution-based
// default model lookup.
func WithVMAFModel(model string) Option {
	return func(c *config.Config) { c.VMAFOpts = model }
}

// WithVMAFScale overrides libvmaf's scaling behaviour: "auto", "none", or an
// explicit WxH.
func WithVMAFScale(scale string) Option {
	return func(c *config.Config) { c.VMAFScale = scale }
}

// WithVMAFFPS overrides the frame rate libvmaf analyzes at.
func WithVMAFFPS(fps string) Option {
	return func(c *config.Config) { c.VMAFFPS = fps }
}

// WithXPSNRFPS overrides the frame rate XPSNR analyzes at.
func WithXPSNRFPS(fps string) Option {
	return func(c *config.Config) { c.XPSNRFPS = fps }
}

// WithSampleEvery overrides how often a sample is planted along the
// reference's duration.
func WithSampleEvery(d time.Duration) Option {
	return func(c *config.Config) { c.SampleEvery = d }
}

// WithMinSamples overrides the minimum sample count a plan ever produces.
func WithMinSamples(n int) Option {
	return func(c *config.Config) { c.MinSamples = n }
}

// WithSamples overrides the sample-plan's clip count, skipping the
// duration-derived clamp formula.
func WithSamples(n int) Option {
	return func(c *config.Config) { c.Samples = &n }
}

// WithSampleDuration overrides each planned sample clip's length.
func WithSampleDuration(d time.Duration) Option {
	return func(c *config.Config) { c.SampleDuration = d }
}

// WithSampleParallelism sets how many samples may be in flight (cut, encode,
// or score) at once per probe.
func WithSampleParallelism(n int) Option {
	return func(c *config.Config) { c.SampleParallelism = n }
}

// WithTempDir overrides the directory a run's scratch directory is created
// under. Defaults to the process working directory.
func WithTempDir(dir string) Option {
	return func(c *config.Config) { c.TempDir = dir }
}

// WithKeep suppresses temp directory cleanup on exit, for post-mortem
// inspection of cut/encoded samples.
func WithKeep() Option {
	return func(c *config.Config) { c.Keep = true }
}

// WithoutCache disables the persistent result cache.
func WithoutCache() Option {
	return func(c *config.Config) { c.Cache = false }
}

// WithCacheDir overrides the cache database's directory. Defaults to
// os.UserCacheDir()/crfscout.
func WithCacheDir(dir string) Option {
	return func(c *config.Config) { c.CacheDir = dir }
}

// WithThorough enables the extra post-acceptance neighbour probe described
// in C8 step 7.
func WithThorough() Option {
	return func(c *config.Config) { c.Thorough = true }
}

// Search runs the full probe-low/probe-high/bound/interpolate/iterate/
// validate/thorough state machine against referencePath, returning the
// largest CRF that meets both the configured quality floor and size
// ceiling.
func (s *Searcher) Search(ctx context.Context, referencePath string) (*Result, error) {
	cfg := s.config
	rep := s.reporter

	rep.Hardware(toHardwareSummary(util.GetSystemInfo()))

	ref, err := probe.NewProber().Probe(ctx, referencePath)
	if err != nil {
		rep.Error(toReporterError("probe failed", err))
		return nil, err
	}

	handle, err := lifecycle.NewHandle(cfg.GetTempDir(), cfg.Keep)
	if err != nil {
		rep.Error(toReporterError("could not create run temp directory", err))
		return nil, err
	}
	defer func() { _ = handle.Close() }()

	store, err := openCache(cfg)
	if err != nil {
		rep.Warning(fmt.Sprintf("result cache unavailable, continuing uncached: %v", err))
		store = nil
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	plan := sampleplan.Build(ref, cfg)
	qualitySpec := buildQualitySpec(cfg, ref)

	metric, target := cfg.QualityFloor()
	rep.SearchStarted(toReferenceSummary(ref), reporter.SearchConfigSummary{
		Encoder:           string(cfg.Encoder),
		Preset:            cfg.Preset,
		Metric:            string(metric),
		QualityTarget:     target,
		MaxEncodedPercent: cfg.MaxEncodedPercent,
		MinCRF:            cfg.MinCRF,
		MaxCRF:            cfg.MaxCRF,
		CRFIncrement:      cfg.CRFIncrement,
		SampleCount:       len(plan.Samples),
		FullPass:          plan.FullPass,
		Cached:            store != nil,
	})

	pipeline := sampleorch.New(handle.Temp.Path(), store, cfg.SampleParallelism)
	template := encoderdriver.EncodeSpec{
		Encoder:   cfg.Encoder,
		Preset:    cfg.Preset,
		PixFormat: cfg.PixFormat,
		Keyint:    cfg.Keyint,
		SCD:       cfg.SCD,
		VFilter:   cfg.VFilter,
		SVTParams: cfg.SVTParams,
		Enc:       cfg.Enc,
		EncInput:  cfg.EncInput,
	}

	round := 0
	rate := lifecycle.NewRateTracker(timeNow())

	evaluate := func(ctx context.Context, crf float64) (cache.Result, error) {
		round++
		rep.ProbeStarted(reporter.ProbeStartedInfo{CRF: crf, Round: round})

		spec := template
		spec.CRF = crf

		result, err := pipeline.SampleEncode(ctx, ref, spec, qualitySpec, plan, cfg, func(sampleIndex int, stage string, fraction float64) {
			overall := lifecycle.SampleFraction(stage, fraction)
			eta := rate.Update(timeNow(), float64(sampleIndex)+overall, float64(len(plan.Samples)))
			rep.SampleProgress(reporter.SampleProgress{
				CRF:         crf,
				SampleIndex: sampleIndex,
				SampleCount: len(plan.Samples),
				Stage:       stage,
				Fraction:    overall,
				ETA:         eta,
			})
		})
		if err != nil {
			rep.Error(toReporterError(fmt.Sprintf("probe at crf=%.2f failed", crf), err))
			return cache.Result{}, err
		}

		rep.ProbeComplete(reporter.ProbeResult{
			CRF:                    crf,
			MeanScore:              result.MeanScore,
			PredictedEncodePercent: result.PredictedEncodePercent,
			PredictedEncodeSeconds: result.PredictedEncodeSeconds,
			MeetsQuality:           result.MeanScore >= target,
			MeetsSizeCeiling:       result.PredictedEncodePercent <= cfg.MaxEncodedPercent,
			FromCache:              result.FromCache,
		})
		return result, nil
	}

	outcome, err := crfsearch.Search(ctx, cfg, evaluate)
	if err != nil {
		rep.Error(toReporterError("search did not find an acceptable crf", err))
		return nil, err
	}

	searchResult := Result{
		CRF:                    outcome.CRF,
		Metric:                 metric,
		MeanScore:              outcome.Result.MeanScore,
		PredictedEncodePercent: outcome.Result.PredictedEncodePercent,
		PredictedEncodeSeconds: outcome.Result.PredictedEncodeSeconds,
		PredictedEncodeSize:    outcome.Result.PredictedEncodeSize,
		ProbesTried:            len(outcome.Probes),
	}

	rep.SearchComplete(reporter.SearchResult{
		CRF:                    searchResult.CRF,
		Metric:                 string(searchResult.Metric),
		MeanScore:              searchResult.MeanScore,
		PredictedEncodePercent: searchResult.PredictedEncodePercent,
		PredictedEncodeSeconds: searchResult.PredictedEncodeSeconds,
		PredictedEncodeSize:    searchResult.PredictedEncodeSize,
		ProbesTried:            searchResult.ProbesTried,
	})

	return &searchResult, nil
}

// buildQualitySpec derives a QualitySpec from cfg, resolving an unset VMAF
// model from the reference's resolution per §4.5.
func buildQualitySpec(cfg *config.Config, ref *probe.Reference) scorer.QualitySpec {
	spec := scorer.NewQualitySpec(cfg)
	if spec.Metric == config.MetricVMAF && spec.Model == "" {
		spec.Model = scorer.ResolveVMAFModel(ref.Width, ref.Height)
	}
	return spec
}

// openCache opens the result store under cfg's configured or default
// directory, or reports disabled when cfg.Cache is false.
func openCache(cfg *config.Config) (*cache.Store, error) {
	if !cfg.Cache {
		return nil, nil
	}
	dir := cfg.CacheDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		dir = filepath.Join(base, "crfscout")
	}
	return cache.Open(dir)
}

func toHardwareSummary(info util.SystemInfo) reporter.HardwareSummary {
	return reporter.HardwareSummary{Hostname: info.Hostname, NumCPU: info.NumCPU, OS: info.OS, Arch: info.Arch}
}

func toReferenceSummary(ref *probe.Reference) reporter.ReferenceSummary {
	rate, _ := ref.FrameRate.Float64()
	return reporter.ReferenceSummary{
		Path:         ref.Path,
		Duration:     time.Duration(ref.DurationSeconds() * float64(time.Second)),
		Width:        ref.Width,
		Height:       ref.Height,
		FrameRateFPS: rate,
		IsStillImage: ref.IsStillImage,
	}
}

func toReporterError(context string, err error) reporter.ReporterError {
	return reporter.ReporterError{
		Title:   "search failed",
		Message: err.Error(),
		Context: context,
	}
}

// timeNow is the one call site Search uses for wall-clock progress timing,
// isolated so tests can fake the clock without touching the rest of the
// pipeline's signatures.
var timeNow = time.Now

func init() {
	// Ensure the process-wide logger is initialized before any component
	// reaches for telemetry.Global(), even when the caller never calls a
	// CLI entry point that would otherwise call telemetry.Init explicitly.
	_ = telemetry.Global()
}
