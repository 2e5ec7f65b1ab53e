// Package encoderdriver runs the -crf-driven sample encoder and streams its
// progress, for whichever ffmpeg video encoder family a search is using.
package encoderdriver

import (
	"fmt"
	"strings"
)

// ParamsBuilder builds an encoder's colon-separated key=value parameter
// string (svtav1-params, aom-params, and the like) with method chaining.
type ParamsBuilder struct {
	params []paramKV
}

type paramKV struct {
	key   string
	value string
}

// NewParamsBuilder creates a new empty parameter builder.
func NewParamsBuilder() *ParamsBuilder {
	return &ParamsBuilder{}
}

// Add appends a key=value pair.
func (b *ParamsBuilder) Add(key, value string) *ParamsBuilder {
	b.params = append(b.params, paramKV{key, value})
	return b
}

// Keys returns the keys currently in the builder, in insertion order.
func (b *ParamsBuilder) Keys() []string {
	keys := make([]string, len(b.params))
	for i, p := range b.params {
		keys[i] = p.key
	}
	return keys
}

// Build renders the parameters into a colon-separated string.
func (b *ParamsBuilder) Build() string {
	if len(b.params) == 0 {
		return ""
	}
	parts := make([]string, len(b.params))
	for i, p := range b.params {
		parts[i] = fmt.Sprintf("%s=%s", p.key, p.value)
	}
	return strings.Join(parts, ":")
}
