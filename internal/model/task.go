package model

import "fmt"

// Default generation parameters used when the pipeline config leaves a field unset.
const (
	DefaultWidth             = 512
	DefaultHeight            = 512
	DefaultSteps             = 50
	DefaultSamplerName       = "DPM++ 3M SDE"
	DefaultScheduler         = "Karras"
	DefaultBatchSize         = 1
	DefaultCFGScale          = 7.0
	DefaultSeed              = -1 // -1 asks the backend for a random seed
	DefaultHRScale           = 2.0
	DefaultHRUpscaler        = "Latent"
	DefaultDenoisingStrength = 0.7
)

// artifactPattern names the artifact for a 1-based index.
const artifactPattern = "output_%d.png"

// GenerationParams holds the per-render knobs forwarded to a backend.
// The Enable/HR fields describe the optional upscale second pass.
type GenerationParams struct {
	Width             int     `json:"width" toml:"width"`
	Height            int     `json:"height" toml:"height"`
	Steps             int     `json:"steps" toml:"steps"`
	SamplerName       string  `json:"sampler_name" toml:"sampler_name"`
	Scheduler         string  `json:"scheduler" toml:"scheduler"`
	BatchSize         int     `json:"batch_size" toml:"batch_size"`
	CFGScale          float64 `json:"cfg_scale" toml:"cfg_scale"`
	Seed              int64   `json:"seed" toml:"seed"`
	EnableHR          bool    `json:"enable_hr" toml:"enable_hr"`
	HRScale           float64 `json:"hr_scale" toml:"hr_scale"`
	HRUpscaler        string  `json:"hr_upscaler" toml:"hr_upscaler"`
	DenoisingStrength float64 `json:"denoising_strength" toml:"denoising_strength"`
}

// DefaultParams returns the stock parameter set.
func DefaultParams() GenerationParams {
	return GenerationParams{
		Width:             DefaultWidth,
		Height:            DefaultHeight,
		Steps:             DefaultSteps,
		SamplerName:       DefaultSamplerName,
		Scheduler:         DefaultScheduler,
		BatchSize:         DefaultBatchSize,
		CFGScale:          DefaultCFGScale,
		Seed:              DefaultSeed,
		EnableHR:          true,
		HRScale:           DefaultHRScale,
		HRUpscaler:        DefaultHRUpscaler,
		DenoisingStrength: DefaultDenoisingStrength,
	}
}

// ParamOverrides carries caller-supplied replacements for individual
// generation parameters. Nil fields keep the base value.
type ParamOverrides struct {
	Width             *int     `json:"width,omitempty"`
	Height            *int     `json:"height,omitempty"`
	Steps             *int     `json:"steps,omitempty"`
	SamplerName       *string  `json:"sampler_name,omitempty"`
	Scheduler         *string  `json:"scheduler,omitempty"`
	CFGScale          *float64 `json:"cfg_scale,omitempty"`
	Seed              *int64   `json:"seed,omitempty"`
	EnableHR          *bool    `json:"enable_hr,omitempty"`
	HRScale           *float64 `json:"hr_scale,omitempty"`
	HRUpscaler        *string  `json:"hr_upscaler,omitempty"`
	DenoisingStrength *float64 `json:"denoising_strength,omitempty"`
}

// Apply returns p with every non-nil override applied.
func (p GenerationParams) Apply(o *ParamOverrides) GenerationParams {
	if o == nil {
		return p
	}
	if o.Width != nil {
		p.Width = *o.Width
	}
	if o.Height != nil {
		p.Height = *o.Height
	}
	if o.Steps != nil {
		p.Steps = *o.Steps
	}
	if o.SamplerName != nil {
		p.SamplerName = *o.SamplerName
	}
	if o.Scheduler != nil {
		p.Scheduler = *o.Scheduler
	}
	if o.CFGScale != nil {
		p.CFGScale = *o.CFGScale
	}
	if o.Seed != nil {
		p.Seed = *o.Seed
	}
	if o.EnableHR != nil {
		p.EnableHR = *o.EnableHR
	}
	if o.HRScale != nil {
		p.HRScale = *o.HRScale
	}
	if o.HRUpscaler != nil {
		p.HRUpscaler = *o.HRUpscaler
	}
	if o.DenoisingStrength != nil {
		p.DenoisingStrength = *o.DenoisingStrength
	}
	return p
}

// Task is one render request. Index is 0-based and stable for the life of a
// batch; it alone determines the artifact filename.
type Task struct {
	Index          int
	Prompt         string
	Regions        int
	NegativePrompt string
	Params         GenerationParams
	Reference      []byte
	PromptHash     string
}

// ArtifactName returns the artifact filename for the task.
func (t Task) ArtifactName() string {
	return ArtifactName(t.Index + 1)
}

// ArtifactName returns the filename for a 1-based artifact number.
func ArtifactName(n int) string {
	return fmt.Sprintf(artifactPattern, n)
}
