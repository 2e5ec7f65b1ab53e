package lifecycle

import (
	"math"
	"time"
)

// rateSmoothing is the exponential-smoothing factor applied to each new
// throughput sample; higher values react to recent samples faster, lower
// values damp out jitter between progress lines from the same subprocess.
const rateSmoothing = 0.3

// maxETA bounds the ETA this tracker will ever report, so a near-zero rate
// sample early in a run produces a merely large number instead of an
// overflowed or NaN duration (§4.9 "overflow in ETA arithmetic is clamped,
// never panicked").
const maxETA = 999 * time.Hour

// RateTracker estimates time-to-completion from a stream of (done, total)
// progress samples using an exponentially-smoothed rate, so a single slow
// or fast tick from a child process's progress output doesn't swing the
// reported ETA wildly.
type RateTracker struct {
	started      time.Time
	lastDone     float64
	lastAt       time.Time
	smoothedRate float64 // units of "done" per second
	haveRate     bool
}

// NewRateTracker returns a tracker anchored at the current time.
func NewRateTracker(now time.Time) *RateTracker {
	return &RateTracker{started: now, lastAt: now}
}

// Update folds in a new (done, total) sample observed at now and returns the
// smoothed ETA to reach total. total <= 0 or done <= 0 reports zero.
func (t *RateTracker) Update(now time.Time, done, total float64) time.Duration {
	if total <= 0 || done <= 0 {
		return 0
	}

	elapsed := now.Sub(t.lastAt).Seconds()
	if elapsed > 0 && done > t.lastDone {
		instantRate := (done - t.lastDone) / elapsed
		if !t.haveRate {
			t.smoothedRate = instantRate
			t.haveRate = true
		} else {
			t.smoothedRate = rateSmoothing*instantRate + (1-rateSmoothing)*t.smoothedRate
		}
	}
	t.lastDone = done
	t.lastAt = now

	if !t.haveRate || t.smoothedRate <= 0 {
		return 0
	}

	remaining := total - done
	if remaining <= 0 {
		return 0
	}

	secs := remaining / t.smoothedRate
	if math.IsInf(secs, 0) || math.IsNaN(secs) || secs > maxETA.Seconds() {
		return maxETA
	}
	return time.Duration(secs * float64(time.Second))
}

// StageWeights assigns each pipeline stage a share of one sample's overall
// progress, used to blend cut/encode/score into a single fraction for the
// reporter's per-sample progress bar.
var StageWeights = map[string]float64{
	"cut":    0.1,
	"encode": 0.8,
	"score":  0.1,
	"cached": 1.0,
}

// SampleFraction blends a sample's current stage and its within-stage
// fraction into one [0,1] overall-progress value for that sample, using
// StageWeights to decide how much of the sample's bar each stage covers.
func SampleFraction(stage string, stageFraction float64) float64 {
	order := []string{"cut", "encode", "score"}
	var before, weight float64
	found := false
	for _, s := range order {
		w := StageWeights[s]
		if s == stage {
			weight = w
			found = true
			break
		}
		before += w
	}
	if !found {
		if stage == "cached" {
			return 1.0
		}
		return 0
	}
	if stageFraction < 0 {
		stageFraction = 0
	}
	if stageFraction > 1 {
		stageFraction = 1
	}
	return before + weight*stageFraction
}
