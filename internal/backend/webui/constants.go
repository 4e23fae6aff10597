package webui

import "time"

// API endpoints, relative to a backend address.
const (
	// Txt2ImgPath renders one image from a text prompt.
	Txt2ImgPath = "/sdapi/v1/txt2img"

	// MemoryPath is a cheap endpoint used as the liveness check.
	MemoryPath = "/sdapi/v1/memory"
)

// DefaultRenderTimeout bounds one render request. Renders are slow, so this is
// deliberately long compared to the probe timeout.
const DefaultRenderTimeout = 600 * time.Second

// MaxResponseSize caps the txt2img response body (base64 images plus info).
const MaxResponseSize = 256 << 20

// ControlNet settings used for reference-image conditioning.
const (
	ControlNetModule = "ip-adapter-auto"
	ControlNetModel  = "ip-adapter_sd15_plus [32cd8f7f]"
)

// Script keys under alwayson_scripts.
const (
	scriptControlNet       = "controlnet"
	scriptRegionalPrompter = "Regional Prompter"
)

// Regional Prompter defaults. Regions are laid out as vertical columns of a
// matrix split, weighted by attention.
const (
	RegionalModeMatrix     = "Matrix"
	RegionalMatrixVertical = "Vertical"
	RegionalMaskMode       = "Mask"
	RegionalPromptMode     = "Prompt"
	RegionalCalcAttention  = "Attention"
)
