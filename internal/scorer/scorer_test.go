package scorer

import (
	"strings"
	"testing"

	"github.com/finchav/crfscout/internal/config"
)

func TestExtractScore_VMAF(t *testing.T) {
	line := "[libvmaf @ 0x55d8a2e3e740] VMAF score: 94.123456"
	score, ok := extractScore(line, config.MetricVMAF)
	if !ok {
		t.Fatal("expected a parsed score")
	}
	if score < 94.1 || score > 94.2 {
		t.Errorf("score = %v, want ~94.123", score)
	}
}

func TestExtractScore_XPSNR(t *testing.T) {
	line := "[Parsed_xpsnr_0 @ 0x711494004cc0] XPSNR  y: 33.6547  u: 41.8741  v: 42.2571  (minimum: 33.6547)"
	score, ok := extractScore(line, config.MetricXPSNR)
	if !ok {
		t.Fatal("expected a parsed score")
	}
	if score != 33.6547 {
		t.Errorf("score = %v, want 33.6547", score)
	}
}

func TestExtractScore_XPSNRInfiniteSentinel(t *testing.T) {
	line := "[Parsed_xpsnr_0 @ 0x0] XPSNR  y: inf  u: inf  v: inf  (minimum: inf)"
	score, ok := extractScore(line, config.MetricXPSNR)
	if !ok {
		t.Fatal("expected a parsed score")
	}
	if score != infiniteScoreSentinel {
		t.Errorf("score = %v, want sentinel %v", score, infiniteScoreSentinel)
	}
}

func TestExtractScore_NoMatch(t *testing.T) {
	if _, ok := extractScore("frame=100 fps=30 q=-0.0", config.MetricVMAF); ok {
		t.Error("expected no match on a plain progress line")
	}
}

func TestResolveVMAFModel(t *testing.T) {
	if got := ResolveVMAFModel(3840, 2160); got != "vmaf_4k_v0.6.1" {
		t.Errorf("4k input should select the 4k model, got %q", got)
	}
	if got := ResolveVMAFModel(1920, 1080); got != "vmaf_v0.6.1" {
		t.Errorf("1080p input should select the 1k model, got %q", got)
	}
}

func TestAutoScaleTarget(t *testing.T) {
	if w, h, ok := AutoScaleTarget("vmaf_v0.6.1", 1280, 720); !ok || w != 1920 || h != 1080 {
		t.Errorf("small 1k input should upscale to 1080p, got (%d,%d,%v)", w, h, ok)
	}
	if _, _, ok := AutoScaleTarget("vmaf_v0.6.1", 1920, 1080); ok {
		t.Error("1080p input should not need scaling for the 1k model")
	}
	if w, h, ok := AutoScaleTarget("vmaf_4k_v0.6.1", 3000, 1600); !ok || w != 3840 || h != 2160 {
		t.Errorf("sub-4k input should upscale to 4k, got (%d,%d,%v)", w, h, ok)
	}
}

func TestBuildFilterComplex_VMAFIncludesDefaults(t *testing.T) {
	spec := QualitySpec{Metric: config.MetricVMAF, Scale: "auto", Threads: 8}
	filter := buildFilterComplex(spec)
	for _, want := range []string{"settb=AVTB", "fps=25", "libvmaf=", "shortest=true", "ts_sync_mode=nearest", "n_threads=8"} {
		if !strings.Contains(filter, want) {
			t.Errorf("filter %q missing %q", filter, want)
		}
	}
}

func TestBuildFilterComplex_XPSNRDefaultFPS(t *testing.T) {
	spec := QualitySpec{Metric: config.MetricXPSNR}
	filter := buildFilterComplex(spec)
	if !strings.Contains(filter, "fps=60") {
		t.Errorf("xpsnr filter should default to fps=60, got %q", filter)
	}
	if !strings.HasSuffix(filter, "xpsnr") {
		t.Errorf("xpsnr filter should end with the xpsnr filter name, got %q", filter)
	}
}

func TestNewQualitySpec_DefaultsToVMAF(t *testing.T) {
	cfg := config.NewConfig(config.EncoderSVTAV1)
	spec := NewQualitySpec(cfg)
	if spec.Metric != config.MetricVMAF {
		t.Errorf("expected default metric VMAF, got %v", spec.Metric)
	}
	if spec.Scale != "auto" {
		t.Errorf("expected default scale auto, got %q", spec.Scale)
	}
}
