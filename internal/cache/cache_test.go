package cache

import (
	"testing"

	"go.etcd.io/bbolt"

	"github.com/finchav/crfscout/internal/config"
)

func TestComputeKey_DeterministicAndOrderIndependent(t *testing.T) {
	base := Identity{
		Encoder:         config.EncoderSVTAV1,
		CRF:             28.0,
		CRFIncrement:    1.0,
		Preset:          "6",
		ReferencePath:   "/videos/ref.mkv",
		ReferenceSize:   123456,
		EncFlags:        []string{"b=1", "a=2"},
		SampleOffsetsMs: []int64{0, 1000},
	}
	reordered := base
	reordered.EncFlags = []string{"a=2", "b=1"}

	k1 := Compute(base)
	k2 := Compute(reordered)
	if k1 != k2 {
		t.Error("flag-bag order should not affect the computed key")
	}
}

func TestComputeKey_DiffersOnCRF(t *testing.T) {
	base := Identity{Encoder: config.EncoderSVTAV1, CRF: 28.0, CRFIncrement: 1.0}
	other := base
	other.CRF = 29.0

	if Compute(base) == Compute(other) {
		t.Error("different CRFs should produce different keys")
	}
}

func TestComputeKey_CanonicalizesSubIncrementNoise(t *testing.T) {
	base := Identity{Encoder: config.EncoderX264, CRF: 23.050000001, CRFIncrement: 0.1}
	other := base
	other.CRF = 23.049999999

	if Compute(base) != Compute(other) {
		t.Error("CRFs within float noise of the same increment step should hash identically")
	}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	key := Compute(Identity{Encoder: config.EncoderSVTAV1, CRF: 28, CRFIncrement: 1})
	want := Result{Metric: config.MetricVMAF, MeanScore: 95.4, PredictedEncodePercent: 42.0}

	if err := store.Put(key, want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := store.Get(key)
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if got.MeanScore != want.MeanScore || got.PredictedEncodePercent != want.PredictedEncodePercent {
		t.Errorf("got %+v, want %+v (FromCache aside)", got, want)
	}
	if !got.FromCache {
		t.Error("Get should mark FromCache true")
	}
}

func TestStore_GetMiss(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	var key Key
	if _, ok := store.Get(key); ok {
		t.Error("expected a miss for an unknown key")
	}
}

func TestStore_CorruptEntryTreatedAsMiss(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	key := Compute(Identity{Encoder: config.EncoderSVTAV1, CRF: 28, CRFIncrement: 1})
	if _, ok := decode([]byte{0xFF, 'x'}); ok {
		t.Error("wrong schema byte should not decode")
	}

	if err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put(key[:], []byte{0xFF, 'x'})
	}); err != nil {
		t.Fatalf("writing corrupt entry: %v", err)
	}
	if _, ok := store.Get(key); ok {
		t.Error("a corrupt entry should read as a miss")
	}
}
