package cache

import (
	"fmt"
	"sort"
	"strconv"

	"lukechampine.com/blake3"

	"github.com/finchav/crfscout/internal/config"
)

// Key is the 256-bit fingerprint over every input that can alter a
// SampleResult's measured output. Any option that could change a sample's
// bitstream or its measured score must be folded in here — see Identity.
type Key [32]byte

func (k Key) String() string { return fmt.Sprintf("%x", k[:]) }

// Identity is the full set of inputs hashed into a Key. Sample identity is
// captured by the reference's own fingerprint plus the sample plan's
// offsets/durations rather than by hashing cut clip content — cheap to
// compute and exactly as unique as the reference + plan that produced the
// clips.
type Identity struct {
	Encoder          config.Encoder
	CRF              float64
	CRFIncrement     float64
	Preset           string
	PixFormat        string
	Keyint           string
	SCD              bool
	VFilter          string
	EncFlags         []string
	EncInputFlags    []string
	SVTParams        []string
	Metric           config.QualityMetric
	QualityModel     string
	QualityScale     string
	QualityFPS       string
	ReferenceVFilter string
	QualityThreads   int
	ReferencePath    string
	ReferenceSize    uint64
	ReferenceMTime   int64
	SampleOffsetsMs  []int64
	SampleDurationMs []int64
	ToolVersions     map[string]string
}

// Compute hashes id into a Key. Field order is fixed so the same Identity
// always produces the same Key across process runs.
func Compute(id Identity) Key {
	h := blake3.New(32, nil)

	write := func(s string) { _, _ = h.Write([]byte(s)); _, _ = h.Write([]byte{0}) }
	writeFloat := func(f float64) { write(strconv.FormatFloat(f, 'g', -1, 64)) }
	writeInt := func(i int64) { write(strconv.FormatInt(i, 10)) }

	write(string(id.Encoder))
	writeFloat(canonicalCRF(id.CRF, id.CRFIncrement))
	writeFloat(id.CRFIncrement)
	write(id.Preset)
	write(id.PixFormat)
	write(id.Keyint)
	write(strconv.FormatBool(id.SCD))
	write(id.VFilter)
	writeStrings(write, id.EncFlags)
	writeStrings(write, id.EncInputFlags)
	writeStrings(write, id.SVTParams)
	write(string(id.Metric))
	write(id.QualityModel)
	write(id.QualityScale)
	write(id.QualityFPS)
	write(id.ReferenceVFilter)
	writeInt(int64(id.QualityThreads))
	write(id.ReferencePath)
	writeInt(int64(id.ReferenceSize))
	writeInt(id.ReferenceMTime)
	for _, ms := range id.SampleOffsetsMs {
		writeInt(ms)
	}
	for _, ms := range id.SampleDurationMs {
		writeInt(ms)
	}
	writeToolVersions(write, id.ToolVersions)

	var key Key
	copy(key[:], h.Sum(nil))
	return key
}

// canonicalCRF rounds crf to the nearest multiple of increment, so two CRF
// values that differ only by float noise below the search's own resolution
// hash identically. Ties round up; a value within 1e-6 of a step's halfway
// point counts as a tie, so noise on either side of it lands on one step.
func canonicalCRF(crf, increment float64) float64 {
	if increment <= 0 {
		return crf
	}
	steps := crf / increment
	rounded := float64(int64(steps + 0.5 + 1e-6))
	if steps < 0 {
		rounded = float64(int64(steps - 0.5))
	}
	return rounded * increment
}

func writeStrings(write func(string), ss []string) {
	sorted := append([]string(nil), ss...)
	sort.Strings(sorted)
	for _, s := range sorted {
		write(s)
	}
}

func writeToolVersions(write func(string), versions map[string]string) {
	keys := make([]string, 0, len(versions))
	for k := range versions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		write(k + "=" + versions[k])
	}
}
