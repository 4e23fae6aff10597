// Package prompts turns upstream prompt files into render tasks.
package prompts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/seantiz/easel/internal/model"
)

// RegionMarker separates independently composited sub-regions in a prompt.
const RegionMarker = "BREAK"

// ErrNoPrompts is returned when a prompts file contains no usable prompt.
var ErrNoPrompts = errors.New("no prompts found")

// entry is the object form of a prompts file element.
type entry struct {
	Prompt string `json:"prompt"`
}

// Load reads a prompts file. JSON arrays of strings and JSON arrays of
// objects with a "prompt" field are accepted; anything else is read as plain
// text with one prompt per non-empty line, including lines that open with
// bracketed emphasis such as "[blurry:0.5]". Blank prompts are dropped.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	out, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// Parse decodes prompts from data using the same rules as Load.
func Parse(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)

	var raw []string
	if looksLikeJSON(trimmed) {
		var err error
		raw, err = parseJSON(trimmed)
		if err != nil {
			return nil, err
		}
	} else {
		raw = strings.Split(string(trimmed), "\n")
	}

	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoPrompts
	}
	return out, nil
}

// looksLikeJSON reports whether data opens a JSON array of strings or
// objects. A bare '[' is prompt syntax, not enough on its own.
func looksLikeJSON(data []byte) bool {
	if len(data) == 0 || data[0] != '[' {
		return false
	}
	rest := bytes.TrimLeft(data[1:], " \t\r\n")
	return len(rest) > 0 && (rest[0] == '"' || rest[0] == '{' || rest[0] == ']')
}

func parseJSON(data []byte) ([]string, error) {
	var strs []string
	if err := json.Unmarshal(data, &strs); err == nil {
		return strs, nil
	}

	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Prompt
	}
	return out, nil
}

// RegionCount returns the number of sub-regions a prompt describes: one plus
// the number of region markers it contains.
func RegionCount(prompt string) int {
	return strings.Count(prompt, RegionMarker) + 1
}

// Hash returns a stable fingerprint of a prompt for log correlation.
func Hash(prompt string) string {
	return fmt.Sprintf("%x", uuid.NewSHA1(uuid.NameSpaceDNS, []byte(prompt)))
}

// BuildTasks creates one task per prompt, indexed by position. Every task
// shares params, the negative prompt and the optional reference image.
func BuildTasks(prompts []string, params model.GenerationParams, negative string, reference []byte) []model.Task {
	tasks := make([]model.Task, len(prompts))
	for i, p := range prompts {
		tasks[i] = model.Task{
			Index:          i,
			Prompt:         p,
			Regions:        RegionCount(p),
			NegativePrompt: negative,
			Params:         params,
			Reference:      reference,
			PromptHash:     Hash(p),
		}
	}
	return tasks
}
