package sampleplan

import (
	"math/big"
	"testing"
	"time"

	"github.com/finchav/crfscout/internal/config"
	"github.com/finchav/crfscout/internal/probe"
)

func refWithDuration(seconds float64, isStill bool) *probe.Reference {
	return &probe.Reference{
		Duration:     new(big.Rat).SetFloat64(seconds),
		IsStillImage: isStill,
	}
}

func TestBuild_ShortReferenceCollapsesToFullPass(t *testing.T) {
	cfg := config.NewConfig(config.EncoderSVTAV1)
	ref := refWithDuration(15, false) // well under one sample_duration*min_samples cycle

	plan := Build(ref, cfg)
	if !plan.FullPass {
		t.Fatal("expected full pass for a reference shorter than the collapse threshold")
	}
	if len(plan.Samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(plan.Samples))
	}
	if plan.Samples[0].Start != 0 {
		t.Errorf("expected full-pass sample to start at 0, got %v", plan.Samples[0].Start)
	}
}

func TestBuild_StillImageAlwaysFullPass(t *testing.T) {
	cfg := config.NewConfig(config.EncoderSVTAV1)
	ref := refWithDuration(0.04, true)

	plan := Build(ref, cfg)
	if !plan.FullPass || len(plan.Samples) != 1 {
		t.Fatalf("expected a single full-pass sample for a still image, got %+v", plan)
	}
}

func TestBuild_LongReferenceProducesCenteredSamples(t *testing.T) {
	cfg := config.NewConfig(config.EncoderSVTAV1)
	cfg.SampleEvery = 10 * time.Minute
	cfg.SampleDuration = 20 * time.Second
	cfg.MinSamples = 1
	cfg.MaxSamples = 10

	duration := 60 * 60.0 // 1 hour
	ref := refWithDuration(duration, false)

	plan := Build(ref, cfg)
	if plan.FullPass {
		t.Fatal("expected a multi-sample plan, not a full pass")
	}
	wantN := 6 // round(3600/600)
	if len(plan.Samples) != wantN {
		t.Fatalf("expected %d samples, got %d", wantN, len(plan.Samples))
	}

	for i, s := range plan.Samples {
		if s.Index != i {
			t.Errorf("sample %d has Index=%d", i, s.Index)
		}
		if s.Duration != cfg.SampleDuration {
			t.Errorf("sample %d duration = %v, want %v", i, s.Duration, cfg.SampleDuration)
		}
		startSecs := s.Start.Seconds()
		if startSecs < 0 || startSecs+s.Duration.Seconds() > duration {
			t.Errorf("sample %d out of bounds: start=%v duration=%v", i, s.Start, s.Duration)
		}
	}

	// Samples should be in increasing, evenly-spaced order (no overlap).
	for i := 1; i < len(plan.Samples); i++ {
		if plan.Samples[i].Start <= plan.Samples[i-1].Start {
			t.Errorf("sample %d should start after sample %d", i, i-1)
		}
	}
}

func TestBuild_ExplicitSampleCountOverride(t *testing.T) {
	cfg := config.NewConfig(config.EncoderSVTAV1)
	cfg.SampleEvery = 10 * time.Minute
	cfg.SampleDuration = 5 * time.Second
	cfg.MinSamples = 1
	cfg.MaxSamples = 10
	n := 3
	cfg.Samples = &n

	ref := refWithDuration(3600, false)
	plan := Build(ref, cfg)
	if len(plan.Samples) != 3 {
		t.Fatalf("expected explicit override of 3 samples, got %d", len(plan.Samples))
	}
}

func TestSampleCount_ClampsToMaxSamples(t *testing.T) {
	cfg := config.NewConfig(config.EncoderSVTAV1)
	cfg.SampleEvery = 1 * time.Minute
	cfg.MinSamples = 1
	cfg.MaxSamples = 4

	n := sampleCount(3600, cfg) // would be 60 uncapped
	if n != cfg.MaxSamples {
		t.Errorf("sampleCount() = %d, want clamp to MaxSamples=%d", n, cfg.MaxSamples)
	}
}

func TestClamp(t *testing.T) {
	if clamp(5, 1, 10) != 5 {
		t.Error("value within range should pass through")
	}
	if clamp(-1, 1, 10) != 1 {
		t.Error("value below range should clamp to lo")
	}
	if clamp(20, 1, 10) != 10 {
		t.Error("value above range should clamp to hi")
	}
}
