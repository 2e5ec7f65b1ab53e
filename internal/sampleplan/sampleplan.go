// Package sampleplan derives a SamplePlan — where to cut short clips from a
// reference, and how many — from the reference's duration and configuration.
package sampleplan

import (
	"math"
	"time"

	"github.com/finchav/crfscout/internal/config"
	"github.com/finchav/crfscout/internal/probe"
)

// Sample is one planned clip: it covers [Start, Start+Duration) of the
// reference.
type Sample struct {
	Index    int
	Start    time.Duration
	Duration time.Duration
}

// Plan is the full set of samples a CRF search will cut and re-cut (once)
// for every probe.
type Plan struct {
	Samples  []Sample
	FullPass bool
}

// Build computes a Plan for ref under cfg's sample-plan options.
//
// n = clamp(round(duration/sample_every), min_samples, max_samples); if
// n*sample_duration covers at least FullPassCollapseFraction of the
// reference, that collapses to a single full-pass sample instead of several
// short ones. Still images always plan to one full-pass sample.
func Build(ref *probe.Reference, cfg *config.Config) *Plan {
	duration := ref.DurationSeconds()

	if ref.IsStillImage {
		return fullPass(duration)
	}

	n := sampleCount(duration, cfg)
	d := cfg.SampleDuration.Seconds()

	if float64(n)*d >= config.FullPassCollapseFraction*duration {
		return fullPass(duration)
	}

	samples := make([]Sample, n)
	maxStart := duration - d
	for i := 0; i < n; i++ {
		t := float64(i+1)*duration/float64(n+1) - d/2
		if t < 0 {
			t = 0
		}
		if t > maxStart {
			t = maxStart
		}
		samples[i] = Sample{
			Index:    i,
			Start:    secondsToDuration(t),
			Duration: cfg.SampleDuration,
		}
	}

	return &Plan{Samples: samples}
}

func sampleCount(duration float64, cfg *config.Config) int {
	if cfg.Samples != nil {
		return clamp(*cfg.Samples, cfg.MinSamples, cfg.MaxSamples)
	}
	sampleEvery := cfg.SampleEvery.Seconds()
	if sampleEvery <= 0 {
		sampleEvery = 1
	}
	n := int(math.Round(duration / sampleEvery))
	return clamp(n, cfg.MinSamples, cfg.MaxSamples)
}

func fullPass(duration float64) *Plan {
	return &Plan{
		Samples: []Sample{{
			Index:    0,
			Start:    0,
			Duration: secondsToDuration(duration),
		}},
		FullPass: true,
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
