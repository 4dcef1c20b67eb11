package settings

import "ragbench/internal/rag"

// StylePreset is a coarse answer-style choice mapped onto a temperature.
type StylePreset string

// DepthPreset is a coarse retrieval-depth choice mapped onto topK and the
// answer token budget.
type DepthPreset string

const (
	StyleFactual  StylePreset = "factual"
	StyleBalanced StylePreset = "balanced"
	StyleCreative StylePreset = "creative"

	DepthFast     DepthPreset = "fast"
	DepthBalanced DepthPreset = "balanced"
	DepthThorough DepthPreset = "thorough"
)

// Temperature returns the sampling temperature for the style.
func (p StylePreset) Temperature() float64 {
	switch p {
	case StyleFactual:
		return 0.1
	case StyleCreative:
		return 0.7
	default:
		return 0.3
	}
}

// TopK returns the retrieval depth for the preset.
func (p DepthPreset) TopK() int {
	switch p {
	case DepthFast:
		return 3
	case DepthThorough:
		return 10
	default:
		return 5
	}
}

// MaxTokens returns the answer token budget for the preset.
func (p DepthPreset) MaxTokens() int {
	switch p {
	case DepthFast:
		return 500
	case DepthThorough:
		return 1400
	default:
		return 900
	}
}

// ApplyPresets seeds a draft from base by overwriting the preset-controlled
// fields. Pure and stateless; the result is a draft, not the authoritative
// value, and only becomes effective through Propose.
func ApplyPresets(base rag.Settings, style StylePreset, depth DepthPreset) rag.Settings {
	base.Temperature = style.Temperature()
	base.TopK = depth.TopK()
	base.MaxTokens = depth.MaxTokens()
	return base
}

// StyleFor classifies an existing temperature back into the nearest style
// preset, for seeding preset pickers from current settings.
func StyleFor(temperature float64) StylePreset {
	switch {
	case temperature <= 0.15:
		return StyleFactual
	case temperature <= 0.45:
		return StyleBalanced
	default:
		return StyleCreative
	}
}

// DepthFor classifies an existing topK back into the nearest depth preset.
func DepthFor(topK int) DepthPreset {
	switch {
	case topK <= 3:
		return DepthFast
	case topK <= 6:
		return DepthBalanced
	default:
		return DepthThorough
	}
}
