package encoderdriver

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/finchav/crfscout/internal/config"
	"github.com/finchav/crfscout/internal/xerrors"
)

// EncodeSpec is the complete set of parameters that influence an encode's
// bitstream. Two EncodeSpecs produce the same bitstream iff every field is
// equal — callers building a CacheKey must hash every field here.
type EncodeSpec struct {
	Encoder   config.Encoder
	CRF       float64
	Preset    string
	PixFormat string
	Keyint    string
	SCD       bool // scene-change detection at keyframes
	VFilter   string
	SVTParams []string // key=value pairs, passed as svtav1-params / aom-params
	Enc       []string // extra output-side flags, passed through verbatim
	EncInput  []string // extra input-side flags, passed through verbatim
}

// reservedOutputFlags are output-side flags the driver already supplies; a
// user-supplied Enc flag that duplicates one is a ConfigError rather than a
// silently-overridden setting.
var reservedOutputFlags = map[string]bool{
	"-crf": true, "-preset": true, "-cpu-used": true, "-speed": true,
	"-pix_fmt": true, "-g": true, "-vf": true, "-svtav1-params": true, "-aom-params": true,
	"-sc_threshold": true,
}

// presetFlag returns the flag this encoder family uses for its speed
// preset.
func presetFlag(e config.Encoder) string {
	switch e {
	case config.EncoderAOMAV1, config.EncoderVP9:
		return "-cpu-used"
	default:
		return "-preset"
	}
}

// crfFlag returns the flag and formatted value this encoder family uses for
// its quality target. svt-av1 and aom-av1 take an integer CRF; libx264,
// libx265, and libvpx-vp9 accept a decimal value.
func crfFlag(e config.Encoder, crf float64) (string, string) {
	switch e {
	case config.EncoderX264, config.EncoderX265, config.EncoderVP9:
		return "-crf", strconv.FormatFloat(crf, 'f', -1, 64)
	default:
		return "-crf", strconv.Itoa(int(math.Round(crf)))
	}
}

// validate rejects a spec whose Enc/EncInput carries a flag the driver is
// already supplying, or whose SVTParams duplicates a raw -svtav1-params /
// -aom-params entry in Enc.
func (s EncodeSpec) validate() error {
	for _, flags := range [][]string{s.Enc, s.EncInput} {
		for _, f := range flags {
			name := f
			if eq := strings.IndexByte(f, '='); eq >= 0 {
				name = f[:eq]
			}
			if reservedOutputFlags[name] {
				return xerrors.NewConfigError(fmt.Sprintf("user flag %q duplicates one the encoder driver already supplies", name))
			}
		}
	}
	return nil
}

// buildArgs renders spec into an ffmpeg argument list encoding inputPath
// into outputPath.
func buildArgs(spec EncodeSpec, inputPath, outputPath string) ([]string, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	args := []string{"-y"}
	args = append(args, spec.EncInput...)
	args = append(args, "-i", inputPath, "-c:v", string(spec.Encoder))

	crfArg, crfVal := crfFlag(spec.Encoder, spec.CRF)
	args = append(args, crfArg, crfVal)

	if spec.Encoder == config.EncoderAOMAV1 || spec.Encoder == config.EncoderVP9 {
		args = append(args, "-b:v", "0")
	}

	if spec.Preset != "" {
		args = append(args, presetFlag(spec.Encoder), spec.Preset)
	}
	if spec.PixFormat != "" {
		args = append(args, "-pix_fmt", spec.PixFormat)
	}
	if spec.Keyint != "" {
		args = append(args, "-g", spec.Keyint)
	}
	if spec.VFilter != "" {
		args = append(args, "-vf", spec.VFilter)
	}

	scdViaParams := spec.Encoder == config.EncoderSVTAV1 || spec.Encoder == config.EncoderAOMAV1
	if len(spec.SVTParams) > 0 || (spec.SCD && scdViaParams) {
		builder := NewParamsBuilder()
		for _, kv := range spec.SVTParams {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) == 2 {
				builder.Add(parts[0], parts[1])
			}
		}
		if spec.SCD && scdViaParams {
			builder.Add("scd", "1")
		}
		flag := "-svtav1-params"
		if spec.Encoder == config.EncoderAOMAV1 {
			flag = "-aom-params"
		}
		args = append(args, flag, builder.Build())
	} else if spec.SCD {
		args = append(args, "-sc_threshold", "40")
	}

	args = append(args, spec.Enc...)
	args = append(args, outputPath)
	return args, nil
}
