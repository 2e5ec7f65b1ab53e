package crfsearch

import (
	"testing"

	"github.com/finchav/crfscout/internal/cache"
)

func result(score, encodedPercent float64) cache.Result {
	return cache.Result{MeanScore: score, PredictedEncodePercent: encodedPercent}
}

func TestStateAddProbeAndProbeAt(t *testing.T) {
	s := newState(10, 50)
	s.addProbe(30, result(94, 60))

	p, ok := s.probeAt(30)
	if !ok {
		t.Fatal("expected probeAt(30) to find the probe just added")
	}
	if p.Result.MeanScore != 94 {
		t.Errorf("expected MeanScore=94, got %g", p.Result.MeanScore)
	}

	if _, ok := s.probeAt(31); ok {
		t.Error("expected probeAt(31) to miss, no probe recorded at that CRF")
	}
}

func TestBestProbeIgnoresProbesBelowTarget(t *testing.T) {
	s := newState(0, 63)
	s.addProbe(28, result(94.99, 50)) // just under target, would win on distance alone
	s.addProbe(20, result(97.5, 90))  // comfortably over target

	best := s.bestProbe(95)
	if best == nil {
		t.Fatal("expected a qualifying probe, got nil")
	}
	if best.CRF != 20 {
		t.Errorf("expected the only quality-passing probe (crf=20) to be chosen, got crf=%g (score=%g)",
			best.CRF, best.Result.MeanScore)
	}
}

func TestBestProbeReturnsNilWhenNoneQualify(t *testing.T) {
	s := newState(0, 63)
	s.addProbe(28, result(90, 50))
	s.addProbe(35, result(80, 30))

	if best := s.bestProbe(95); best != nil {
		t.Errorf("expected nil when no probe meets the quality floor, got crf=%g score=%g",
			best.CRF, best.Result.MeanScore)
	}
}

func TestBestProbePrefersHigherCRFAmongQualifying(t *testing.T) {
	s := newState(0, 63)
	s.addProbe(18, result(98, 95)) // passes, but far above target
	s.addProbe(24, result(96, 70)) // passes, closer to target
	s.addProbe(30, result(93, 50)) // fails

	best := s.bestProbe(95)
	if best == nil {
		t.Fatal("expected a qualifying probe")
	}
	if best.CRF != 24 {
		t.Errorf("expected crf=24 (closest qualifying score to target), got crf=%g", best.CRF)
	}
}

func TestBestProbeTieBreaksOnHigherCRF(t *testing.T) {
	s := newState(0, 63)
	s.addProbe(20, result(96, 70))
	s.addProbe(26, result(96, 60)) // same score, higher CRF should win

	best := s.bestProbe(95)
	if best == nil {
		t.Fatal("expected a qualifying probe")
	}
	if best.CRF != 26 {
		t.Errorf("expected the higher-CRF probe to win an exact score tie, got crf=%g", best.CRF)
	}
}
