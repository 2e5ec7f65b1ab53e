package encoderdriver

import (
	"strings"
	"testing"

	"github.com/finchav/crfscout/internal/config"
	"github.com/finchav/crfscout/internal/xerrors"
)

func TestBuildArgs_SVTAV1UsesIntegerCRF(t *testing.T) {
	spec := EncodeSpec{Encoder: config.EncoderSVTAV1, CRF: 28.0, Preset: "6"}
	args, err := buildArgs(spec, "in.mkv", "out.mkv")
	if err != nil {
		t.Fatalf("buildArgs: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-crf 28 ") && !strings.HasSuffix(joined, "-crf 28") {
		t.Errorf("expected integer -crf 28 in %q", joined)
	}
	if !strings.Contains(joined, "-preset 6") {
		t.Errorf("expected -preset 6 in %q", joined)
	}
}

func TestBuildArgs_X264UsesDecimalCRF(t *testing.T) {
	spec := EncodeSpec{Encoder: config.EncoderX264, CRF: 23.5}
	args, err := buildArgs(spec, "in.mkv", "out.mkv")
	if err != nil {
		t.Fatalf("buildArgs: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-crf 23.5") {
		t.Errorf("expected decimal -crf 23.5 in %q", joined)
	}
}

func TestBuildArgs_VP9AddsConstantQualityFlag(t *testing.T) {
	spec := EncodeSpec{Encoder: config.EncoderVP9, CRF: 30}
	args, err := buildArgs(spec, "in.mkv", "out.mkv")
	if err != nil {
		t.Fatalf("buildArgs: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-b:v 0") {
		t.Errorf("expected -b:v 0 for vp9 constant quality, got %q", joined)
	}
	if strings.Contains(joined, "-preset") {
		t.Errorf("vp9 should not use -preset, got %q", joined)
	}
}

func TestBuildArgs_RejectsDuplicateUserFlag(t *testing.T) {
	spec := EncodeSpec{Encoder: config.EncoderSVTAV1, CRF: 28, Enc: []string{"-crf", "99"}}
	_, err := buildArgs(spec, "in.mkv", "out.mkv")
	if err == nil {
		t.Fatal("expected a ConfigError for a duplicate -crf flag")
	}
	if !xerrors.Is(err, xerrors.KindConfig) {
		t.Errorf("expected KindConfig, got %v", err)
	}
}

func TestBuildArgs_SVTParamsRenderedAsParamsFlag(t *testing.T) {
	spec := EncodeSpec{Encoder: config.EncoderSVTAV1, CRF: 28, SVTParams: []string{"tune=3", "scd=1"}}
	args, err := buildArgs(spec, "in.mkv", "out.mkv")
	if err != nil {
		t.Fatalf("buildArgs: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-svtav1-params tune=3:scd=1") {
		t.Errorf("expected combined svtav1-params flag, got %q", joined)
	}
}

func TestBuildArgs_AomUsesAomParamsFlag(t *testing.T) {
	spec := EncodeSpec{Encoder: config.EncoderAOMAV1, CRF: 28, SVTParams: []string{"cpu-used=4"}}
	args, err := buildArgs(spec, "in.mkv", "out.mkv")
	if err != nil {
		t.Fatalf("buildArgs: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-aom-params cpu-used=4") {
		t.Errorf("expected -aom-params flag, got %q", joined)
	}
}

func TestCrfFlag(t *testing.T) {
	if _, v := crfFlag(config.EncoderSVTAV1, 27.6); v != "28" {
		t.Errorf("svt-av1 crf should round to nearest integer, got %q", v)
	}
	if _, v := crfFlag(config.EncoderX265, 27.6); v != "27.6" {
		t.Errorf("x265 crf should keep the decimal, got %q", v)
	}
}

func TestPresetFlag(t *testing.T) {
	if got := presetFlag(config.EncoderAOMAV1); got != "-cpu-used" {
		t.Errorf("aom should use -cpu-used, got %q", got)
	}
	if got := presetFlag(config.EncoderX264); got != "-preset" {
		t.Errorf("x264 should use -preset, got %q", got)
	}
}
