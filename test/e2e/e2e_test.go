package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	startupTimeout = 10 * time.Second
	batchTimeout   = 20 * time.Second
	pollInterval   = 100 * time.Millisecond
)

// lockedBuffer is a thread-safe wrapper around bytes.Buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (lb *lockedBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.Write(p)
}

func (lb *lockedBuffer) String() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.String()
}

// serverProc holds the running server subprocess and its output.
type serverProc struct {
	cmd    *exec.Cmd
	stdout *lockedBuffer
	url    string
}

var (
	binMu    sync.Mutex
	binaries = map[string]string{}
	binDir   string
)

// getBinary builds ./cmd/<name> once per test run.
func getBinary(t *testing.T, name string) string {
	t.Helper()
	binMu.Lock()
	defer binMu.Unlock()
	if b, ok := binaries[name]; ok {
		return b
	}
	if binDir == "" {
		dir, err := os.MkdirTemp("", "easel-e2e-*")
		if err != nil {
			t.Fatal(err)
		}
		binDir = dir
	}
	binary := filepath.Join(binDir, name)
	cmd := exec.Command("go", "build", "-o", binary, "./cmd/"+name)
	cmd.Dir = findRepoRoot(t)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build %s failed: %v\n%s", name, err, out)
	}
	binaries[name] = binary
	return binary
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repo root")
		}
		dir = parent
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// startServer runs binary with args and env and waits for /healthz.
func startServer(t *testing.T, binary string, env []string, args ...string) *serverProc {
	t.Helper()

	addr := freeAddr(t)
	stdout := &lockedBuffer{}
	cmd := exec.Command(binary, args...)
	cmd.Env = append(os.Environ(), "EASEL_LISTEN_ADDR="+addr)
	cmd.Env = append(cmd.Env, env...)
	cmd.Stdout = stdout
	cmd.Stderr = stdout

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}

	sp := &serverProc{
		cmd:    cmd,
		stdout: stdout,
		url:    "http://" + addr,
	}

	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})

	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(sp.url + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				return sp
			}
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("server did not become ready within %v\nstdout:\n%s", startupTimeout, stdout.String())
	return nil
}

// easelEnv points every path easel touches into a fresh temp dir with a
// prompts file of n prompts.
func easelEnv(t *testing.T, n int, backends ...string) (dir string, env []string) {
	t.Helper()
	dir = t.TempDir()

	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("an old harbour in fog, take %d", i+1)
	}
	promptsPath := filepath.Join(dir, "prompts.txt")
	if err := os.WriteFile(promptsPath, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}

	env = []string{
		"EASEL_DB_PATH=" + filepath.Join(dir, "easel.db"),
		"EASEL_OUTPUT_DIR=" + filepath.Join(dir, "image"),
		"EASEL_PARAMS_LOG=" + filepath.Join(dir, "temp", "params.jsonl"),
		"EASEL_PROMPTS_PATH=" + promptsPath,
		"EASEL_PIPELINE_CONFIG=" + filepath.Join(dir, "easel.toml"),
		"EASEL_BACKENDS=" + strings.Join(backends, ","),
		"EASEL_LOG_LEVEL=info",
	}
	return dir, env
}

func postJSON(t *testing.T, url, body string, v any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	return decodeBody(t, resp, v)
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	return decodeBody(t, resp, v)
}

func decodeBody(t *testing.T, resp *http.Response, v any) int {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if v != nil {
		if err := json.Unmarshal(data, v); err != nil {
			t.Fatalf("decode %s: %v\nbody: %s", resp.Request.URL, err, data)
		}
	}
	return resp.StatusCode
}

type batch struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	Total         int    `json:"total"`
	SuccessCount  int    `json:"success_count"`
	FailedIndices []int  `json:"failed_indices"`
}

type batchDetail struct {
	Batch   batch `json:"batch"`
	Results []struct {
		Index   int    `json:"index"`
		Success bool   `json:"success"`
		Backend string `json:"backend"`
	} `json:"results"`
}

// waitForBatch polls a batch until it leaves the running state.
func waitForBatch(t *testing.T, sp *serverProc, id string) batchDetail {
	t.Helper()
	deadline := time.Now().Add(batchTimeout)
	for time.Now().Before(deadline) {
		var got batchDetail
		getJSON(t, sp.url+"/v1/batches/"+id, &got)
		if got.Batch.Status != "running" {
			return got
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("batch %s did not finish within %v\nstdout:\n%s", id, batchTimeout, sp.stdout.String())
	return batchDetail{}
}
