package prompts

import "github.com/seantiz/easel/internal/model"

// Source builds the current task list from the prompts file on every call, so
// edits to the file are picked up by the next batch.
type Source struct {
	Path           string
	Params         model.GenerationParams
	NegativePrompt string
	Reference      []byte
}

// Tasks loads the prompts and builds tasks with o applied over the base
// params. A non-empty reference replaces the configured reference image.
func (s *Source) Tasks(o *model.ParamOverrides, reference []byte) ([]model.Task, error) {
	ps, err := Load(s.Path)
	if err != nil {
		return nil, err
	}
	if len(reference) == 0 {
		reference = s.Reference
	}
	return BuildTasks(ps, s.Params.Apply(o), s.NegativePrompt, reference), nil
}
