package encoderdriver

import (
	"strings"
	"testing"
)

func TestParamsBuilder(t *testing.T) {
	tests := []struct {
		name     string
		build    func() string
		contains []string
	}{
		{
			name: "basic params",
			build: func() string {
				return NewParamsBuilder().
					Add("tune", "3").
					Add("enable-variance-boost", "1").
					Add("variance-boost-strength", "1").
					Add("variance-octile", "7").
					Build()
			},
			contains: []string{"tune=3", "enable-variance-boost=1", "variance-boost-strength=1", "variance-octile=7"},
		},
		{
			name: "custom params",
			build: func() string {
				return NewParamsBuilder().
					Add("keyint", "10s").
					Add("scd", "1").
					Build()
			},
			contains: []string{"keyint=10s", "scd=1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.build()
			for _, want := range tt.contains {
				if !strings.Contains(result, want) {
					t.Errorf("result %q does not contain %q", result, want)
				}
			}
		})
	}
}

func TestParamsBuilder_Empty(t *testing.T) {
	if got := NewParamsBuilder().Build(); got != "" {
		t.Errorf("empty builder should produce \"\", got %q", got)
	}
}

func TestParamsBuilder_Keys(t *testing.T) {
	b := NewParamsBuilder().Add("tune", "3").Add("scd", "1")
	keys := b.Keys()
	if len(keys) != 2 || keys[0] != "tune" || keys[1] != "scd" {
		t.Errorf("Keys() = %v, want [tune scd]", keys)
	}
}

func TestFilterChain(t *testing.T) {
	tests := []struct {
		name  string
		build func() string
		want  string
	}{
		{
			name:  "empty chain",
			build: func() string { return NewFilterChain().Build() },
			want:  "",
		},
		{
			name:  "single filter",
			build: func() string { return NewFilterChain().Add("crop=1920:800:0:140").Build() },
			want:  "crop=1920:800:0:140",
		},
		{
			name: "crop and scale",
			build: func() string {
				return NewFilterChain().
					Add("crop=1920:800:0:140").
					Add("scale=1920:1080").
					Build()
			},
			want: "crop=1920:800:0:140,scale=1920:1080",
		},
		{
			name: "empty filters ignored",
			build: func() string {
				return NewFilterChain().
					Add("").
					Add("").
					Add("crop=1920:1080:0:0").
					Build()
			},
			want: "crop=1920:1080:0:0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.build()
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilterChain_IsEmpty(t *testing.T) {
	c := NewFilterChain()
	if !c.IsEmpty() {
		t.Error("new chain should be empty")
	}
	c.Add("scale=1920:1080")
	if c.IsEmpty() {
		t.Error("chain with a filter should not be empty")
	}
}
