package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/seantiz/easel/internal/backend"
	"github.com/seantiz/easel/internal/backend/webuitest"
	"github.com/seantiz/easel/internal/model"
)

func TestParseIndices(t *testing.T) {
	tests := []struct {
		line    string
		want    []int
		quit    bool
		wantErr bool
	}{
		{line: "2 4", want: []int{2, 4}},
		{line: "  3\t1 ", want: []int{3, 1}},
		{line: "", want: nil},
		{line: "N", quit: true},
		{line: "n", quit: true},
		{line: "2 x", wantErr: true},
	}
	for _, tt := range tests {
		got, quit, err := parseIndices(tt.line)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseIndices(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			continue
		}
		if quit != tt.quit {
			t.Errorf("parseIndices(%q) quit = %v, want %v", tt.line, quit, tt.quit)
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("parseIndices(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestRegenerateLoop(t *testing.T) {
	in := strings.NewReader("2 4\n\nabc\n1\nN\n3\n")
	var out bytes.Buffer
	var calls [][]int

	err := regenerateLoop(context.Background(), in, &out, func(indices []int) error {
		calls = append(calls, indices)
		return nil
	})
	if err != nil {
		t.Fatalf("regenerateLoop: %v", err)
	}
	if len(calls) != 2 || !slices.Equal(calls[0], []int{2, 4}) || !slices.Equal(calls[1], []int{1}) {
		t.Errorf("calls = %v, want [[2 4] [1]]", calls)
	}
	if !strings.Contains(out.String(), `invalid index "abc"`) {
		t.Errorf("output missing parse error: %q", out.String())
	}
	if got := strings.Count(out.String(), regeneratePrompt); got != 5 {
		t.Errorf("prompted %d times, want 5", got)
	}
}

func TestRegenerateLoopEOFAndError(t *testing.T) {
	var out bytes.Buffer
	if err := regenerateLoop(context.Background(), strings.NewReader(""), &out, nil); err != nil {
		t.Errorf("EOF: err = %v, want nil", err)
	}

	boom := errors.New("boom")
	err := regenerateLoop(context.Background(), strings.NewReader("1\n"), &out, func([]int) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := regenerateLoop(ctx, strings.NewReader("1\n"), &out, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: err = %v, want context.Canceled", err)
	}
}

func TestRenderSummary(t *testing.T) {
	s := &model.Summary{
		BatchID:       "01ABC",
		Kind:          model.KindDispatch,
		Total:         2,
		SuccessCount:  1,
		FailedIndices: []int{2},
		Skipped:       []int{9},
		Results: []model.GenerationResult{
			{Index: 0, Success: true, Backend: "http://a", DurationMS: 1500},
			{Index: 1, Backend: "http://b", Error: "status 500"},
		},
	}
	out := renderSummary(s)
	for _, want := range []string{"output_1.png", "output_2.png", "status 500", "1.5s", "dispatch 01ABC: 1/2 succeeded", "failed [2]", "skipped [9]"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRenderProbe(t *testing.T) {
	out := renderProbe([]backend.Status{
		{Address: "http://a", Alive: true, LatencyMS: 12},
		{Address: "http://b", Error: "connection refused"},
	})
	for _, want := range []string{"http://a", "yes", "12ms", "http://b", "no", "connection refused"} {
		if !strings.Contains(out, want) {
			t.Errorf("probe table missing %q:\n%s", want, out)
		}
	}
}

// setupCLIEnv points every path the CLI touches into a temp dir and writes a
// prompts file with n prompts.
func setupCLIEnv(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()

	lines := make([]string, n)
	for i := range lines {
		lines[i] = "a castle, prompt " + string(rune('a'+i))
	}
	promptsPath := filepath.Join(dir, "prompts.txt")
	if err := os.WriteFile(promptsPath, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("EASEL_DB_PATH", filepath.Join(dir, "easel.db"))
	t.Setenv("EASEL_OUTPUT_DIR", filepath.Join(dir, "image"))
	t.Setenv("EASEL_PARAMS_LOG", filepath.Join(dir, "temp", "params.jsonl"))
	t.Setenv("EASEL_PROMPTS_PATH", promptsPath)
	t.Setenv("EASEL_PIPELINE_CONFIG", filepath.Join(dir, "missing.toml"))
	t.Setenv("EASEL_LOG_LEVEL", "error")
	return dir
}

func executeCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	dir := setupCLIEnv(t, 3)
	f := webuitest.NewServer()
	defer f.Close()

	out, err := executeCLI(t, "", "--backends", f.URL(), "run")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "3/3 succeeded") {
		t.Errorf("output missing totals:\n%s", out)
	}
	for n := 1; n <= 3; n++ {
		if _, err := os.Stat(filepath.Join(dir, "image", model.ArtifactName(n))); err != nil {
			t.Errorf("artifact %d: %v", n, err)
		}
	}
}

func TestRunCommandInteractive(t *testing.T) {
	setupCLIEnv(t, 3)
	f := webuitest.NewServer()
	defer f.Close()

	out, err := executeCLI(t, "2\n7\nN\n", "--backends", f.URL(), "run", "--interactive")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "regenerate") || !strings.Contains(out, "1/1 succeeded") {
		t.Errorf("output missing regeneration summary:\n%s", out)
	}
	if !strings.Contains(out, "nothing to regenerate; skipped [7]") {
		t.Errorf("output missing skipped notice:\n%s", out)
	}
	if got := f.Renders(); got != 4 {
		t.Errorf("renders = %d, want 4", got)
	}
}

func TestRunCommandNoBackends(t *testing.T) {
	setupCLIEnv(t, 1)
	f := webuitest.NewServer()
	defer f.Close()
	f.SetDead(true)

	_, err := executeCLI(t, "", "--backends", f.URL(), "run")
	if !errors.Is(err, backend.ErrBackendUnavailable) {
		t.Errorf("err = %v, want ErrBackendUnavailable", err)
	}
}

func TestRegenerateCommand(t *testing.T) {
	setupCLIEnv(t, 2)
	f := webuitest.NewServer()
	defer f.Close()

	out, err := executeCLI(t, "", "--backends", f.URL(), "regenerate", "2")
	if err != nil {
		t.Fatalf("regenerate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "output_2.png") || strings.Contains(out, "output_1.png") {
		t.Errorf("unexpected summary:\n%s", out)
	}

	if _, err := executeCLI(t, "", "--backends", f.URL(), "regenerate", "x"); err == nil {
		t.Error("expected error for non-numeric index")
	}
}

func TestProbeCommand(t *testing.T) {
	setupCLIEnv(t, 1)
	alive := webuitest.NewServer()
	defer alive.Close()
	dead := webuitest.NewServer()
	defer dead.Close()
	dead.SetDead(true)

	out, err := executeCLI(t, "", "--backends", alive.URL()+","+dead.URL(), "probe")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if !strings.Contains(out, alive.URL()) || !strings.Contains(out, dead.URL()) {
		t.Errorf("probe output missing backends:\n%s", out)
	}
}

func TestInvalidPipelineConfigReportedOnce(t *testing.T) {
	dir := setupCLIEnv(t, 1)
	path := filepath.Join(dir, "easel.toml")
	if err := os.WriteFile(path, []byte("[generation]\nsteps = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	f := webuitest.NewServer()
	defer f.Close()

	_, err := executeCLI(t, "", "--backends", f.URL(), "--config", path, "probe")
	if err == nil {
		t.Fatal("expected error for invalid pipeline config")
	}
	msg := err.Error()
	if !strings.Contains(msg, "generation.steps") {
		t.Errorf("error = %q, want mention of generation.steps", msg)
	}
	if n := strings.Count(msg, "invalid pipeline config"); n != 1 {
		t.Errorf("error = %q, repeats its prefix %d times", msg, n)
	}
}
