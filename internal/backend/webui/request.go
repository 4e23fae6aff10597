package webui

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/seantiz/easel/internal/model"
)

// Txt2ImgRequest is the body of POST /sdapi/v1/txt2img. Optional capability
// extensions are attached through Scripts; a nil Scripts omits the block.
type Txt2ImgRequest struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	Steps             int     `json:"steps"`
	SamplerName       string  `json:"sampler_name"`
	Scheduler         string  `json:"scheduler"`
	BatchSize         int     `json:"batch_size"`
	CFGScale          float64 `json:"cfg_scale"`
	Seed              int64   `json:"seed"`
	EnableHR          bool    `json:"enable_hr"`
	HRScale           float64 `json:"hr_scale"`
	HRUpscaler        string  `json:"hr_upscaler"`
	DenoisingStrength float64 `json:"denoising_strength"`

	Scripts *AlwaysOnScripts `json:"alwayson_scripts,omitempty"`
}

// AlwaysOnScripts groups the extension blocks. Each extension is toggled
// independently by leaving its pointer nil or not.
type AlwaysOnScripts struct {
	ControlNet       *ControlNetExtension
	RegionalPrompter *RegionalPrompterExtension
}

// MarshalJSON emits only the enabled extensions, keyed by their script names.
func (s AlwaysOnScripts) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 2)
	if s.ControlNet != nil {
		m[scriptControlNet] = s.ControlNet
	}
	if s.RegionalPrompter != nil {
		m[scriptRegionalPrompter] = s.RegionalPrompter
	}
	return json.Marshal(m)
}

// ControlNetExtension conditions the render on a reference image.
type ControlNetExtension struct {
	Args []ControlNetUnit `json:"args"`
}

// ControlNetUnit is one ControlNet unit.
type ControlNetUnit struct {
	Enabled bool   `json:"enabled"`
	Image   string `json:"image"`
	Module  string `json:"module"`
	Model   string `json:"model"`
}

// RegionalPrompterExtension composites independently prompted sub-regions.
// The script takes positional arguments, so the struct marshals to an args
// array in the script's parameter order.
type RegionalPrompterExtension struct {
	Active            bool
	Debug             bool
	Mode              string
	MatrixMode        string
	MaskMode          string
	PromptMode        string
	Ratios            string
	BaseRatios        string
	UseBase           bool
	UseCommon         bool
	UseNegCommon      bool
	CalcMode          string
	NotChangeAnd      bool
	LoRATextEncoder   string
	LoRAUNet          string
	Threshold         string
	Mask              string
	LoRAStopStep      string
	LoRAHiresStopStep string
	Flip              bool
}

// MarshalJSON implements json.Marshaler.
func (r RegionalPrompterExtension) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]any{
		"args": {
			r.Active,
			r.Debug,
			r.Mode,
			r.MatrixMode,
			r.MaskMode,
			r.PromptMode,
			r.Ratios,
			r.BaseRatios,
			r.UseBase,
			r.UseCommon,
			r.UseNegCommon,
			r.CalcMode,
			r.NotChangeAnd,
			r.LoRATextEncoder,
			r.LoRAUNet,
			r.Threshold,
			r.Mask,
			r.LoRAStopStep,
			r.LoRAHiresStopStep,
			r.Flip,
		},
	})
}

// NewControlNetExtension builds the reference-image block for raw image bytes.
func NewControlNetExtension(image []byte) *ControlNetExtension {
	return &ControlNetExtension{
		Args: []ControlNetUnit{{
			Enabled: true,
			Image:   base64.StdEncoding.EncodeToString(image),
			Module:  ControlNetModule,
			Model:   ControlNetModel,
		}},
	}
}

// NewRegionalPrompterExtension builds a multi-region block giving each of the
// regions an equal weight share.
func NewRegionalPrompterExtension(regions int) *RegionalPrompterExtension {
	return &RegionalPrompterExtension{
		Active:            true,
		Mode:              RegionalModeMatrix,
		MatrixMode:        RegionalMatrixVertical,
		MaskMode:          RegionalMaskMode,
		PromptMode:        RegionalPromptMode,
		Ratios:            EqualRatios(regions),
		CalcMode:          RegionalCalcAttention,
		LoRATextEncoder:   "0",
		LoRAUNet:          "0",
		Threshold:         "0",
		LoRAStopStep:      "0",
		LoRAHiresStopStep: "0",
	}
}

// EqualRatios returns the ratio string "1,1,...,1" with one entry per region.
func EqualRatios(regions int) string {
	if regions < 1 {
		regions = 1
	}
	return strings.TrimSuffix(strings.Repeat("1,", regions), ",")
}

// NewTxt2ImgRequest builds the request for a task. The multi-region block is
// attached when the task has more than one region, and the conditioning block
// when it carries a reference image.
func NewTxt2ImgRequest(t model.Task) *Txt2ImgRequest {
	p := t.Params
	req := &Txt2ImgRequest{
		Prompt:            t.Prompt,
		NegativePrompt:    t.NegativePrompt,
		Width:             p.Width,
		Height:            p.Height,
		Steps:             p.Steps,
		SamplerName:       p.SamplerName,
		Scheduler:         p.Scheduler,
		BatchSize:         p.BatchSize,
		CFGScale:          p.CFGScale,
		Seed:              p.Seed,
		EnableHR:          p.EnableHR,
		HRScale:           p.HRScale,
		HRUpscaler:        p.HRUpscaler,
		DenoisingStrength: p.DenoisingStrength,
	}

	var scripts AlwaysOnScripts
	if t.Regions > 1 {
		scripts.RegionalPrompter = NewRegionalPrompterExtension(t.Regions)
	}
	if len(t.Reference) > 0 {
		scripts.ControlNet = NewControlNetExtension(t.Reference)
	}
	if scripts.ControlNet != nil || scripts.RegionalPrompter != nil {
		req.Scripts = &scripts
	}
	return req
}

// Txt2ImgResponse is the subset of the txt2img response the client reads.
type Txt2ImgResponse struct {
	Images []string `json:"images"`
}
