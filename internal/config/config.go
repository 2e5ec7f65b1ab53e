// Package config provides configuration types and defaults for crfscout.
package config

import (
	"fmt"
	"time"
)

// Encoder identifies the ffmpeg video encoder family driving a search. Its
// string value is passed to ffmpeg's -c:v verbatim.
type Encoder string

const (
	EncoderSVTAV1 Encoder = "libsvtav1"
	EncoderAOMAV1 Encoder = "libaom-av1"
	EncoderX264   Encoder = "libx264"
	EncoderX265   Encoder = "libx265"
	EncoderVP9    Encoder = "libvpx-vp9"
)

// DefaultCRFIncrement returns the smallest CRF step worth probing for an
// encoder family. libx264, libx265 and libvpx-vp9 accept fractional CRF
// values; the rest are effectively integer-only.
func (e Encoder) DefaultCRFIncrement() float64 {
	switch e {
	case EncoderX264, EncoderX265, EncoderVP9:
		return 0.1
	default:
		return 1.0
	}
}

// DefaultMinCRF returns the lower search bound for an encoder family.
func (e Encoder) DefaultMinCRF() float64 {
	return 0.0
}

// DefaultMaxCRF returns the upper search bound for an encoder family.
func (e Encoder) DefaultMaxCRF() float64 {
	switch e {
	case EncoderX264, EncoderX265:
		return 46.0
	default:
		return 55.0
	}
}

// QualityMetric selects which objective scorer a search targets.
type QualityMetric string

const (
	MetricVMAF  QualityMetric = "vmaf"
	MetricXPSNR QualityMetric = "xpsnr"
)

// StdoutFormat selects how the CLI renders a finished search.
type StdoutFormat string

const (
	StdoutText StdoutFormat = "text"
	StdoutJSON StdoutFormat = "json"
)

const (
	// DefaultMaxEncodedPercent is the percentage of the reference's
	// video-stream bytes an accepted CRF's predicted output may occupy.
	DefaultMaxEncodedPercent float64 = 80.0

	// DefaultMinVMAF is the quality floor applied when neither min_vmaf nor
	// min_xpsnr is set.
	DefaultMinVMAF float64 = 95.0

	// DefaultSampleEvery is how often a sample is planted along the
	// reference's duration.
	DefaultSampleEvery = 12 * time.Minute

	// DefaultSampleDuration is the length of each cut sample clip.
	DefaultSampleDuration = 20 * time.Second

	// DefaultMinSamples is the minimum sample count a plan ever produces.
	DefaultMinSamples = 1

	// DefaultMaxSamples is the upper bound a plan clamps to before it would
	// otherwise keep adding samples to a very long reference.
	DefaultMaxSamples = 10

	// FullPassCollapseFraction is the `n*d / duration` threshold above which
	// a plan collapses to a single full-pass sample instead of several short
	// ones.
	FullPassCollapseFraction = 0.85

	// EmptySampleMinBytes is the smallest cut clip size that isn't treated as
	// a cutter failure.
	EmptySampleMinBytes int64 = 1024

	// MaxCRF is the encoder-family-independent ceiling no Config may exceed.
	MaxCRF float64 = 63
)

// Config holds every option that can change a search's outcome, plus the
// ambient knobs (temp dir, cache, logging) that don't.
type Config struct {
	// Search bounds and resolution.
	MinCRF        float64
	MaxCRF        float64
	CRFIncrement  float64

	// Quality floor; at most one of these is set after Validate succeeds.
	// With neither set, QualityFloor falls back to DefaultMinVMAF.
	MinVMAF  *float64
	MinXPSNR *float64

	// Size ceiling; hard constraint on the accepted CRF.
	MaxEncodedPercent float64

	// EncodeSpec inputs.
	Encoder    Encoder
	Preset     string // encoder speed preset / -cpu-used / -speed, family-dependent
	PixFormat  string
	Keyint     string
	SCD        bool
	SVTParams  []string // passed through as svtav1-params key=value pairs
	Enc        []string // extra output-side encoder flags
	EncInput   []string // extra input-side flags
	VFilter    string

	// QualitySpec inputs.
	ReferenceVFilter string
	VMAFOpts         string // passthrough libvmaf filter options
	VMAFScale        string
	VMAFFPS          string
	XPSNRFPS         string

	// SamplePlan inputs.
	SampleEvery       time.Duration
	SampleDuration    time.Duration
	MinSamples        int
	MaxSamples        int
	Samples           *int // explicit sample count override, skips the clamp formula
	SampleParallelism int  // concurrent sample slots; 1 keeps samples sequential

	// Lifecycle / search behaviour.
	TempDir   string
	Keep      bool
	Cache     bool
	Thorough  bool
	CacheDir  string // overrides $CACHE_DIR/crfscout

	// Output.
	StdoutFormat StdoutFormat

	// Ambient.
	LogDir   string
	LogLevel string
}

// NewConfig returns a Config with every default applied for the given
// encoder family. No quality floor is set; Validate accepts that, and
// QualityFloor then resolves to DefaultMinVMAF on VMAF.
func NewConfig(encoder Encoder) *Config {
	return &Config{
		MinCRF:            encoder.DefaultMinCRF(),
		MaxCRF:            encoder.DefaultMaxCRF(),
		CRFIncrement:      encoder.DefaultCRFIncrement(),
		MaxEncodedPercent: DefaultMaxEncodedPercent,
		Encoder:           encoder,
		SampleEvery:       DefaultSampleEvery,
		SampleDuration:    DefaultSampleDuration,
		MinSamples:        DefaultMinSamples,
		MaxSamples:        DefaultMaxSamples,
		SampleParallelism: 1,
		Cache:             true,
		StdoutFormat:      StdoutText,
	}
}

// QualityFloor returns the configured quality target and which metric it
// applies to. Falls back to DefaultMinVMAF against VMAF when neither option
// is set; Validate accepts a config with no floor, so this fallback is what
// an unset floor resolves to.
func (c *Config) QualityFloor() (metric QualityMetric, target float64) {
	if c.MinXPSNR != nil {
		return MetricXPSNR, *c.MinXPSNR
	}
	if c.MinVMAF != nil {
		return MetricVMAF, *c.MinVMAF
	}
	return MetricVMAF, DefaultMinVMAF
}

// CutOnWidenedRange reports whether the configured [MinCRF, MaxCRF] is wide
// enough, relative to the encoder family's default range, to justify probing
// the search's first two points at 20%/80% instead of 25%/75%.
func (c *Config) CutOnWidenedRange() bool {
	defaultWidth := c.Encoder.DefaultMaxCRF() - c.Encoder.DefaultMinCRF()
	return (c.MaxCRF - c.MinCRF) > defaultWidth*0.5
}

// Validate rejects mutually exclusive or out-of-range combinations before
// any subprocess is spawned.
func (c *Config) Validate() error {
	if c.MinVMAF != nil && c.MinXPSNR != nil {
		return ErrQualityFloorConflict
	}

	if c.MinCRF < 0 || c.MinCRF > MaxCRF {
		return fmt.Errorf("%w: min_crf must be 0-%g, got %g", ErrInvalidCRF, MaxCRF, c.MinCRF)
	}
	if c.MaxCRF < 0 || c.MaxCRF > MaxCRF {
		return fmt.Errorf("%w: max_crf must be 0-%g, got %g", ErrInvalidCRF, MaxCRF, c.MaxCRF)
	}
	if c.MinCRF > c.MaxCRF {
		return ErrInvalidCRFRange
	}
	if c.CRFIncrement <= 0 {
		return ErrInvalidCRFIncrement
	}

	if c.MaxEncodedPercent <= 0 {
		return ErrInvalidEncodedPercent
	}

	if c.Samples != nil && *c.Samples < 1 {
		return fmt.Errorf("%w: samples must be >= 1, got %d", ErrInvalidSamplePlan, *c.Samples)
	}
	if c.MinSamples < 1 {
		return fmt.Errorf("%w: min_samples must be >= 1, got %d", ErrInvalidSamplePlan, c.MinSamples)
	}
	if c.MaxSamples < c.MinSamples {
		return fmt.Errorf("%w: max_samples (%d) below min_samples (%d)", ErrInvalidSamplePlan, c.MaxSamples, c.MinSamples)
	}
	if c.SampleParallelism < 1 {
		return fmt.Errorf("%w: sample_parallelism must be >= 1, got %d", ErrInvalidSamplePlan, c.SampleParallelism)
	}

	switch c.StdoutFormat {
	case StdoutText, StdoutJSON, "":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStdoutFormat, c.StdoutFormat)
	}

	return nil
}

// GetTempDir returns the configured temp root, falling back to the process
// working directory when unset.
func (c *Config) GetTempDir() string {
	if c.TempDir != "" {
		return c.TempDir
	}
	return "."
}
