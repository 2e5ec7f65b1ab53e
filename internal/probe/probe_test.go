package probe

import (
	"os"
	"path/filepath"
	"testing"
)

func loadTestData(t *testing.T, filename string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", filename))
	if err != nil {
		t.Fatalf("failed to load test data %s: %v", filename, err)
	}
	return data
}

func TestParseFFprobeOutput_Valid1080p(t *testing.T) {
	data := loadTestData(t, "video_1080p.json")

	parsed, err := parseFFprobeOutput(data)
	if err != nil {
		t.Fatalf("parseFFprobeOutput() error = %v", err)
	}

	if parsed.Format.Duration != "120.500000" {
		t.Errorf("Duration = %q, want %q", parsed.Format.Duration, "120.500000")
	}
	if len(parsed.Streams) != 2 {
		t.Fatalf("len(Streams) = %d, want 2", len(parsed.Streams))
	}
}

func TestParseFFprobeOutput_MalformedJSON(t *testing.T) {
	data := []byte(`{"format": {"duration": "120.5"}, "streams": [}`)

	_, err := parseFFprobeOutput(data)
	if err == nil {
		t.Error("parseFFprobeOutput() expected error for malformed JSON, got nil")
	}
}

func TestBuildReference_1080p(t *testing.T) {
	parsed, err := parseFFprobeOutput(loadTestData(t, "video_1080p.json"))
	if err != nil {
		t.Fatalf("parseFFprobeOutput() error = %v", err)
	}

	ref, err := buildReference(parsed, "video.mkv")
	if err != nil {
		t.Fatalf("buildReference() error = %v", err)
	}

	if ref.Width != 1920 || ref.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", ref.Width, ref.Height)
	}
	if got := ref.DurationSeconds(); got != 120.5 {
		t.Errorf("DurationSeconds() = %v, want 120.5", got)
	}
	if ref.IsStillImage {
		t.Error("expected IsStillImage = false for a video stream")
	}
	if ref.Streams.Video != 1 || ref.Streams.Audio != 1 {
		t.Errorf("Streams = %+v, want 1 video, 1 audio", ref.Streams)
	}
	if ref.ContainerExt != "mkv" {
		t.Errorf("ContainerExt = %q, want %q", ref.ContainerExt, "mkv")
	}
	wantRate := float64(24000) / float64(1001)
	gotRate, _ := ref.FrameRate.Float64()
	if diff := gotRate - wantRate; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("FrameRate = %v, want %v", gotRate, wantRate)
	}
}

func TestBuildReference_NoVideoStream(t *testing.T) {
	parsed, err := parseFFprobeOutput(loadTestData(t, "audio_only.json"))
	if err != nil {
		t.Fatalf("parseFFprobeOutput() error = %v", err)
	}

	_, err = buildReference(parsed, "audio.mka")
	if err == nil {
		t.Error("buildReference() expected error for missing video stream, got nil")
	}
}

func TestBuildReference_StillImage(t *testing.T) {
	parsed, err := parseFFprobeOutput(loadTestData(t, "still_image.json"))
	if err != nil {
		t.Fatalf("parseFFprobeOutput() error = %v", err)
	}

	ref, err := buildReference(parsed, "frame.png")
	if err != nil {
		t.Fatalf("buildReference() error = %v", err)
	}
	if !ref.IsStillImage {
		t.Error("expected IsStillImage = true for a png codec stream")
	}
	if ref.Duration.Sign() <= 0 {
		t.Error("expected a positive one-frame duration for a still image")
	}
}

func TestParseRationalRate(t *testing.T) {
	tests := []struct {
		name    string
		r, avg  string
		wantErr bool
	}{
		{"r_frame_rate present", "24000/1001", "", false},
		{"falls back to avg_frame_rate", "0/0", "25/1", false},
		{"both unusable", "0/0", "0/0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRationalRate(tt.r, tt.avg)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseRationalRate(%q, %q) error = %v, wantErr %v", tt.r, tt.avg, err, tt.wantErr)
			}
		})
	}
}
