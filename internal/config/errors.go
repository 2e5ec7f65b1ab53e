// Package config provides configuration types and defaults for crfscout.
package config

import "errors"

// Sentinel errors for configuration validation.
var (
	// ErrInvalidCRF indicates a CRF value outside the valid 0-63 range.
	ErrInvalidCRF = errors.New("CRF value out of range")

	// ErrInvalidCRFRange indicates min_crf exceeds max_crf.
	ErrInvalidCRFRange = errors.New("min_crf exceeds max_crf")

	// ErrInvalidCRFIncrement indicates a non-positive crf_increment.
	ErrInvalidCRFIncrement = errors.New("crf_increment must be positive")

	// ErrQualityFloorRequired indicates neither min_vmaf nor min_xpsnr was set.
	ErrQualityFloorRequired = errors.New("one of min_vmaf or min_xpsnr is required")

	// ErrQualityFloorConflict indicates both min_vmaf and min_xpsnr were set.
	ErrQualityFloorConflict = errors.New("min_vmaf and min_xpsnr are mutually exclusive")

	// ErrInvalidEncodedPercent indicates a non-positive max_encoded_percent.
	ErrInvalidEncodedPercent = errors.New("max_encoded_percent must be positive")

	// ErrInvalidSamplePlan indicates an inconsistent sample-plan option.
	ErrInvalidSamplePlan = errors.New("invalid sample plan option")

	// ErrInvalidStdoutFormat indicates an unrecognised stdout_format value.
	ErrInvalidStdoutFormat = errors.New("invalid stdout format")
)
