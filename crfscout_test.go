package crfscout

import (
	"math/big"
	"testing"
	"time"

	"github.com/finchav/crfscout/internal/config"
	"github.com/finchav/crfscout/internal/probe"
)

func TestNewAppliesOptions(t *testing.T) {
	searcher, err := New(EncoderSVTAV1,
		WithMinVMAF(93),
		WithPreset("8"),
		WithMaxEncodedPercent(70),
		WithCRFRange(10, 40, 2),
		WithSamples(3),
		WithThorough(),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cfg := searcher.config
	if cfg.MinVMAF == nil || *cfg.MinVMAF != 93 {
		t.Errorf("expected MinVMAF=93, got %v", cfg.MinVMAF)
	}
	if cfg.Preset != "8" {
		t.Errorf("expected Preset=8, got %q", cfg.Preset)
	}
	if cfg.MaxEncodedPercent != 70 {
		t.Errorf("expected MaxEncodedPercent=70, got %g", cfg.MaxEncodedPercent)
	}
	if cfg.MinCRF != 10 || cfg.MaxCRF != 40 || cfg.CRFIncrement != 2 {
		t.Errorf("expected CRF range [10, 40] step 2, got [%g, %g] step %g", cfg.MinCRF, cfg.MaxCRF, cfg.CRFIncrement)
	}
	if cfg.Samples == nil || *cfg.Samples != 3 {
		t.Errorf("expected Samples=3, got %v", cfg.Samples)
	}
	if !cfg.Thorough {
		t.Error("expected Thorough=true")
	}
}

func TestNewRejectsConflictingQualityFloor(t *testing.T) {
	_, err := New(EncoderSVTAV1, WithMinVMAF(95), WithMinXPSNR(40))
	if err != config.ErrQualityFloorConflict {
		t.Errorf("expected ErrQualityFloorConflict, got %v", err)
	}
}

func TestNewRejectsInvalidCRFRange(t *testing.T) {
	_, err := New(EncoderSVTAV1, WithCRFRange(40, 10, 1))
	if err == nil {
		t.Error("expected an error for min_crf > max_crf")
	}
}

func TestSetReporterNilFallsBackToNullReporter(t *testing.T) {
	searcher, err := New(EncoderSVTAV1, WithMinVMAF(95))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	searcher.SetReporter(nil)
	if searcher.reporter == nil {
		t.Error("SetReporter(nil) should install a NullReporter, not leave reporter nil")
	}
}

func TestWithEncAndEncInputPassThrough(t *testing.T) {
	searcher, err := New(EncoderSVTAV1,
		WithMinVMAF(95),
		WithEnc("g=240", "bf=6"),
		WithEncInput("r=24"),
		WithKeyint("240"),
		WithSceneChangeDetection(),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cfg := searcher.config
	if len(cfg.Enc) != 2 || cfg.Enc[0] != "g=240" || cfg.Enc[1] != "bf=6" {
		t.Errorf("expected Enc=[g=240 bf=6], got %v", cfg.Enc)
	}
	if len(cfg.EncInput) != 1 || cfg.EncInput[0] != "r=24" {
		t.Errorf("expected EncInput=[r=24], got %v", cfg.EncInput)
	}
	if cfg.Keyint != "240" {
		t.Errorf("expected Keyint=240, got %q", cfg.Keyint)
	}
	if !cfg.SCD {
		t.Error("expected SCD=true")
	}
}

func TestWithQualityScorerOptions(t *testing.T) {
	searcher, err := New(EncoderSVTAV1,
		WithMinVMAF(95),
		WithReferenceVFilter("crop=in_w:in_h-20"),
		WithVMAFModel("vmaf_4k_v0.6.1"),
		WithVMAFScale("none"),
		WithVMAFFPS("24"),
		WithXPSNRFPS("30"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cfg := searcher.config
	if cfg.ReferenceVFilter != "crop=in_w:in_h-20" {
		t.Errorf("unexpected ReferenceVFilter %q", cfg.ReferenceVFilter)
	}
	if cfg.VMAFOpts != "vmaf_4k_v0.6.1" {
		t.Errorf("unexpected VMAFOpts %q", cfg.VMAFOpts)
	}
	if cfg.VMAFScale != "none" {
		t.Errorf("unexpected VMAFScale %q", cfg.VMAFScale)
	}
	if cfg.VMAFFPS != "24" {
		t.Errorf("unexpected VMAFFPS %q", cfg.VMAFFPS)
	}
	if cfg.XPSNRFPS != "30" {
		t.Errorf("unexpected XPSNRFPS %q", cfg.XPSNRFPS)
	}
}

func TestWithSamplePlanOptions(t *testing.T) {
	searcher, err := New(EncoderSVTAV1,
		WithMinVMAF(95),
		WithSampleEvery(5*time.Minute),
		WithSampleDuration(10*time.Second),
		WithMinSamples(4),
		WithSampleParallelism(2),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cfg := searcher.config
	if cfg.SampleEvery != 5*time.Minute {
		t.Errorf("unexpected SampleEvery %v", cfg.SampleEvery)
	}
	if cfg.SampleDuration != 10*time.Second {
		t.Errorf("unexpected SampleDuration %v", cfg.SampleDuration)
	}
	if cfg.MinSamples != 4 {
		t.Errorf("unexpected MinSamples %d", cfg.MinSamples)
	}
	if cfg.SampleParallelism != 2 {
		t.Errorf("unexpected SampleParallelism %d", cfg.SampleParallelism)
	}
}

func TestWithLifecycleOptions(t *testing.T) {
	searcher, err := New(EncoderSVTAV1,
		WithMinVMAF(95),
		WithTempDir("/tmp/crfscout-test"),
		WithKeep(),
		WithoutCache(),
		WithCacheDir("/tmp/crfscout-cache"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cfg := searcher.config
	if cfg.TempDir != "/tmp/crfscout-test" {
		t.Errorf("unexpected TempDir %q", cfg.TempDir)
	}
	if !cfg.Keep {
		t.Error("expected Keep=true")
	}
	if cfg.Cache {
		t.Error("expected Cache=false")
	}
	if cfg.CacheDir != "/tmp/crfscout-cache" {
		t.Errorf("unexpected CacheDir %q", cfg.CacheDir)
	}
}

func TestToReferenceSummaryCarriesFrameRate(t *testing.T) {
	ref := &probe.Reference{
		Path:      "input.mkv",
		Duration:  big.NewRat(120, 1),
		Width:     1920,
		Height:    1080,
		FrameRate: big.NewRat(24000, 1001),
	}
	summary := toReferenceSummary(ref)
	if summary.Width != 1920 || summary.Height != 1080 {
		t.Errorf("unexpected resolution %dx%d", summary.Width, summary.Height)
	}
	if summary.FrameRateFPS < 23.9 || summary.FrameRateFPS > 24.0 {
		t.Errorf("unexpected frame rate %v", summary.FrameRateFPS)
	}
	if summary.Duration != 120*time.Second {
		t.Errorf("unexpected duration %v", summary.Duration)
	}
}
