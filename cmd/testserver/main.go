// testserver starts an Easel API server backed by fake WebUI backends for E2E
// testing.
// Usage: go run ./cmd/testserver
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/seantiz/easel/internal/api"
	"github.com/seantiz/easel/internal/artifact"
	"github.com/seantiz/easel/internal/backend"
	"github.com/seantiz/easel/internal/backend/webui"
	"github.com/seantiz/easel/internal/backend/webuitest"
	"github.com/seantiz/easel/internal/engine"
	"github.com/seantiz/easel/internal/model"
	"github.com/seantiz/easel/internal/prompts"
	"github.com/seantiz/easel/internal/store"
)

const (
	defaultFakes   = 2
	defaultPrompts = 4
	renderDelay    = 200 * time.Millisecond
)

// envInt reads a non-negative integer from the environment.
func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func main() {
	addr := ":8080"
	if v := os.Getenv("EASEL_LISTEN_ADDR"); v != "" {
		addr = v
	}
	workDir := os.Getenv("EASEL_TEST_WORKDIR")
	if workDir == "" {
		dir, err := os.MkdirTemp("", "easel-testserver-*")
		if err != nil {
			log.Fatalf("create work dir: %v", err)
		}
		defer os.RemoveAll(dir)
		workDir = dir
	}

	// EASEL_TEST_FAILING lists 1-based fake numbers that answer every render
	// with a 500.
	failing := map[int]bool{}
	for _, f := range backend.ParseList(os.Getenv("EASEL_TEST_FAILING")) {
		if n, err := strconv.Atoi(f); err == nil {
			failing[n] = true
		}
	}

	addrs := make([]string, 0, defaultFakes)
	for i := 1; i <= envInt("EASEL_TEST_FAKES", defaultFakes); i++ {
		f := webuitest.NewServer()
		defer f.Close()
		f.SetDelay(renderDelay)
		if failing[i] {
			f.SetMode(webuitest.ModeFail)
		}
		addrs = append(addrs, f.URL())
	}

	n := envInt("EASEL_TEST_PROMPTS", defaultPrompts)
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("a lighthouse at dusk, variant %d", i+1)
	}
	promptsPath := filepath.Join(workDir, "prompts.txt")
	if err := os.WriteFile(promptsPath, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		log.Fatalf("write prompts: %v", err)
	}

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	arts, err := artifact.NewStore(filepath.Join(workDir, "image"))
	if err != nil {
		log.Fatalf("create artifact store: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	client := webui.NewClient(30 * time.Second)
	d := engine.NewDispatcher(engine.Deps{
		Registry:      backend.NewRegistry(addrs...),
		Prober:        backend.NewProber(client, 2*time.Second, logger),
		Renderer:      client,
		Artifacts:     arts,
		ParamsLogPath: filepath.Join(workDir, "temp", "params.jsonl"),
		Store:         db,
		Logger:        logger,
	})
	src := &prompts.Source{Path: promptsPath, Params: model.DefaultParams()}

	srv := api.NewServer(addr, db, d, src, logger)

	logger.Info("testserver: starting", "addr", addr, "backends", addrs, "work_dir", workDir)
	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
