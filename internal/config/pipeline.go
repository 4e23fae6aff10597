package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/seantiz/easel/internal/model"
)

// Pipeline is the shared pipeline configuration read from a TOML file.
//
//	negative_prompt = "lowres, bad anatomy"
//
//	[generation]
//	width = 768
//	steps = 30
type Pipeline struct {
	NegativePrompt string                 `toml:"negative_prompt"`
	Generation     model.GenerationParams `toml:"generation"`
}

// DefaultPipeline returns the pipeline settings used when no file exists.
func DefaultPipeline() Pipeline {
	return Pipeline{Generation: model.DefaultParams()}
}

// LoadPipeline reads the pipeline file at path over the defaults. A missing
// file yields the defaults. The result is validated.
func LoadPipeline(path string) (*Pipeline, error) {
	p := DefaultPipeline()

	file, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("open pipeline config: %w", err)
	default:
		defer file.Close()
		if err := toml.NewDecoder(file).Decode(&p); err != nil {
			return nil, fmt.Errorf("parse pipeline config: %w", err)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the generation parameters for values no backend accepts.
func (p *Pipeline) Validate() error {
	g := p.Generation
	var errs []error
	if g.Width <= 0 || g.Height <= 0 {
		errs = append(errs, fmt.Errorf("generation.width and generation.height must be positive (got %dx%d)", g.Width, g.Height))
	}
	if g.Steps <= 0 {
		errs = append(errs, fmt.Errorf("generation.steps must be positive (got %d)", g.Steps))
	}
	if g.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("generation.batch_size must be at least 1 (got %d)", g.BatchSize))
	}
	if g.CFGScale <= 0 {
		errs = append(errs, fmt.Errorf("generation.cfg_scale must be positive (got %g)", g.CFGScale))
	}
	if g.SamplerName == "" {
		errs = append(errs, errors.New("generation.sampler_name is required"))
	}
	if g.EnableHR && g.HRScale < 1 {
		errs = append(errs, fmt.Errorf("generation.hr_scale must be at least 1 when enable_hr is set (got %g)", g.HRScale))
	}
	if g.DenoisingStrength < 0 || g.DenoisingStrength > 1 {
		errs = append(errs, fmt.Errorf("generation.denoising_strength must be within [0, 1] (got %g)", g.DenoisingStrength))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid pipeline config: %w", errors.Join(errs...))
	}
	return nil
}
