package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"

	"github.com/seantiz/easel/internal/backend"
)

const (
	defaultListenAddr     = ":8080"
	defaultDBPath         = "easel.db"
	defaultBackends       = "http://127.0.0.1:7860"
	defaultOutputDir      = "image"
	defaultParamsLogPath  = "temp/params.jsonl"
	defaultPromptsPath    = "txt/prompts.json"
	defaultPipelinePath   = "easel.toml"
	defaultProbeTimeoutS  = 5
	defaultRenderTimeoutS = 600

	envListenAddr     = "EASEL_LISTEN_ADDR"
	envDBPath         = "EASEL_DB_PATH"
	envLogLevel       = "EASEL_LOG_LEVEL"
	envBackends       = "EASEL_BACKENDS"
	envOutputDir      = "EASEL_OUTPUT_DIR"
	envParamsLog      = "EASEL_PARAMS_LOG"
	envPromptsPath    = "EASEL_PROMPTS_PATH"
	envPipelinePath   = "EASEL_PIPELINE_CONFIG"
	envReferenceImage = "EASEL_REFERENCE_IMAGE"
	envMaxWorkers     = "EASEL_MAX_WORKERS"
	envProbeTimeoutS  = "EASEL_PROBE_TIMEOUT_S"
	envRenderTimeoutS = "EASEL_RENDER_TIMEOUT_S"
	envPushgatewayURL = "EASEL_PUSHGATEWAY_URL"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr     string
	DBPath         string
	LogLevel       slog.Level
	Backends       []string
	OutputDir      string
	ParamsLogPath  string
	PromptsPath    string
	PipelinePath   string
	ReferenceImage string
	MaxWorkers     int
	ProbeTimeout   time.Duration
	RenderTimeout  time.Duration
	PushgatewayURL string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first; variables already set
// in the environment take precedence over it.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:    defaultListenAddr,
		DBPath:        defaultDBPath,
		LogLevel:      slog.LevelInfo,
		Backends:      backend.Normalize(backend.ParseList(defaultBackends)),
		OutputDir:     defaultOutputDir,
		ParamsLogPath: defaultParamsLogPath,
		PromptsPath:   defaultPromptsPath,
		PipelinePath:  defaultPipelinePath,
		ProbeTimeout:  defaultProbeTimeoutS * time.Second,
		RenderTimeout: defaultRenderTimeoutS * time.Second,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envBackends); v != "" {
		cfg.Backends = backend.Normalize(backend.ParseList(v))
	}
	if v := os.Getenv(envOutputDir); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv(envParamsLog); v != "" {
		cfg.ParamsLogPath = v
	}
	if v := os.Getenv(envPromptsPath); v != "" {
		cfg.PromptsPath = v
	}
	if v := os.Getenv(envPipelinePath); v != "" {
		cfg.PipelinePath = v
	}
	if v := os.Getenv(envReferenceImage); v != "" {
		cfg.ReferenceImage = v
	}
	if v := os.Getenv(envPushgatewayURL); v != "" {
		cfg.PushgatewayURL = v
	}
	if n, ok := parseNonNegative(os.Getenv(envMaxWorkers)); ok {
		cfg.MaxWorkers = n
	}
	if n, ok := parseNonNegative(os.Getenv(envProbeTimeoutS)); ok && n > 0 {
		cfg.ProbeTimeout = time.Duration(n) * time.Second
	}
	if n, ok := parseNonNegative(os.Getenv(envRenderTimeoutS)); ok && n > 0 {
		cfg.RenderTimeout = time.Duration(n) * time.Second
	}

	return cfg
}

func parseNonNegative(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewConsoleLogger creates a logger for interactive commands: human-readable
// text when f is a terminal, JSON otherwise.
func NewConsoleLogger(f *os.File, level slog.Level) *slog.Logger {
	fd := f.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	}
	return NewLogger(f, level)
}
