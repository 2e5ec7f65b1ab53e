package crfsearch

import (
	"math"
	"testing"

	"github.com/finchav/crfscout/internal/cache"
)

func approxEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestLerp(t *testing.T) {
	result := Lerp([2]float64{90, 96}, [2]float64{30, 20}, 93)
	if result == nil {
		t.Fatal("expected a result")
	}
	if !approxEqual(*result, 25, 0.01) {
		t.Errorf("expected ~25, got %g", *result)
	}
}

func TestLerpRejectsNonIncreasingX(t *testing.T) {
	if Lerp([2]float64{96, 90}, [2]float64{20, 30}, 93) != nil {
		t.Error("expected nil for non-increasing x")
	}
}

func TestFritschCarlsonThroughThreePoints(t *testing.T) {
	x := []float64{90, 95, 99}
	y := []float64{35, 25, 15}
	result := FritschCarlson(x, y, 95)
	if result == nil {
		t.Fatal("expected a result")
	}
	if !approxEqual(*result, 25, 0.5) {
		t.Errorf("expected interpolation to land near the known point (25), got %g", *result)
	}
}

func TestFritschCarlsonRejectsWrongPointCount(t *testing.T) {
	if FritschCarlson([]float64{90, 95}, []float64{35, 25}, 92) != nil {
		t.Error("expected nil, FritschCarlson requires exactly 3 points")
	}
}

func TestPCHIPThroughFourPoints(t *testing.T) {
	x := [4]float64{85, 90, 95, 99}
	y := [4]float64{40, 30, 20, 10}
	result := PCHIP(x, y, 95)
	if result == nil {
		t.Fatal("expected a result")
	}
	if !approxEqual(*result, 20, 0.5) {
		t.Errorf("expected interpolation to land near the known point (20), got %g", *result)
	}
}

func TestPCHIPRejectsNonIncreasingX(t *testing.T) {
	x := [4]float64{85, 90, 90, 99}
	y := [4]float64{40, 30, 20, 10}
	if PCHIP(x, y, 95) != nil {
		t.Error("expected nil for non-strictly-increasing x")
	}
}

func TestAkimaThroughFivePoints(t *testing.T) {
	x := []float64{80, 85, 90, 95, 99}
	y := []float64{50, 40, 30, 20, 10}
	result := Akima(x, y, 90)
	if result == nil {
		t.Fatal("expected a result")
	}
	if !approxEqual(*result, 30, 0.5) {
		t.Errorf("expected interpolation to land near the known point (30), got %g", *result)
	}
}

func TestAkimaRejectsFewerThanFivePoints(t *testing.T) {
	if Akima([]float64{80, 85, 90, 95}, []float64{50, 40, 30, 20}, 90) != nil {
		t.Error("expected nil, Akima requires at least 5 points")
	}
}

func TestAkimaRejectsOutOfBoundsTarget(t *testing.T) {
	x := []float64{80, 85, 90, 95, 99}
	y := []float64{50, 40, 30, 20, 10}
	if Akima(x, y, 100) != nil {
		t.Error("expected nil for a target outside the probed range")
	}
}

func TestInterpolateCRFEscalatesMethodWithRound(t *testing.T) {
	probes := []CrfProbe{
		{CRF: 20, Result: crfProbeResult(97)},
		{CRF: 30, Result: crfProbeResult(90)},
	}

	if got := interpolateCRF(probes, 95, 1, 1); got != nil {
		t.Errorf("round 1 should defer to probe-low/probe-high, got %v", *got)
	}
	if got := interpolateCRF(probes, 95, 1, 2); got != nil {
		t.Errorf("round 2 should defer to probe-low/probe-high, got %v", *got)
	}

	got := interpolateCRF(probes, 95, 1, 3)
	if got == nil {
		t.Fatal("round 3 should linearly interpolate between the two probes taken")
	}
}

func TestInterpolateCRFRoundsToIncrement(t *testing.T) {
	probes := []CrfProbe{
		{CRF: 20, Result: crfProbeResult(97)},
		{CRF: 30, Result: crfProbeResult(90)},
	}

	got := interpolateCRF(probes, 95, 2, 3)
	if got == nil {
		t.Fatal("expected a result")
	}
	steps := *got / 2
	if !approxEqual(steps, math.Round(steps), 1e-9) {
		t.Errorf("expected result rounded to a multiple of 2, got %g", *got)
	}
}

func TestInterpolateCRFFallsBackWithoutEnoughProbes(t *testing.T) {
	probes := []CrfProbe{{CRF: 20, Result: crfProbeResult(97)}}

	if got := interpolateCRF(probes, 95, 1, 4); got != nil {
		t.Errorf("round 4 needs 3 probes, expected nil fallback with only 1, got %v", *got)
	}
}

func TestRoundToIncrement(t *testing.T) {
	cases := []struct {
		crf, increment, want float64
	}{
		{24.3, 1, 24},
		{24.7, 1, 25},
		{24.24, 0.1, 24.2},
		{24.26, 0.1, 24.3},
		{24.3, 0, 24},
	}
	for _, c := range cases {
		if got := roundToIncrement(c.crf, c.increment); !approxEqual(got, c.want, 1e-9) {
			t.Errorf("roundToIncrement(%g, %g) = %g, want %g", c.crf, c.increment, got, c.want)
		}
	}
}

func crfProbeResult(score float64) cache.Result {
	return cache.Result{MeanScore: score}
}
