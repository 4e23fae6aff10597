// Package webuitest provides an in-process fake WebUI backend. It implements
// the liveness and txt2img endpoints, can be switched into failing or dead
// modes at runtime, and records in-flight concurrency for tests.
package webuitest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seantiz/easel/internal/backend/webui"
)

// Mode controls how the fake answers txt2img.
type Mode int32

const (
	// ModeOK renders a small PNG.
	ModeOK Mode = iota
	// ModeFail answers 500.
	ModeFail
	// ModeNoImages answers 200 with an empty images list.
	ModeNoImages
	// ModeBadImage answers 200 with base64 that is not an image.
	ModeBadImage
)

// CapturedRequest is one txt2img body received by the fake.
type CapturedRequest struct {
	Prompt string
	Raw    map[string]any
}

// Server is a fake WebUI backend.
type Server struct {
	ts *httptest.Server

	mode  atomic.Int32
	dead  atomic.Bool
	delay atomic.Int64

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	renders     atomic.Int32

	mu       sync.Mutex
	gate     chan struct{}
	requests []CapturedRequest
}

// NewServer starts a fake backend. Call Close when done.
func NewServer() *Server {
	s := &Server{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+webui.MemoryPath, s.handleMemory)
	mux.HandleFunc("POST "+webui.Txt2ImgPath, s.handleTxt2Img)
	s.ts = httptest.NewServer(mux)
	return s
}

// URL returns the backend address.
func (s *Server) URL() string { return s.ts.URL }

// Close shuts the fake down.
func (s *Server) Close() {
	s.Release()
	s.ts.Close()
}

// SetMode switches the txt2img behaviour.
func (s *Server) SetMode(m Mode) { s.mode.Store(int32(m)) }

// SetDead makes the liveness endpoint answer 503 when dead is true.
func (s *Server) SetDead(dead bool) { s.dead.Store(dead) }

// SetDelay adds latency to every txt2img call.
func (s *Server) SetDelay(d time.Duration) { s.delay.Store(int64(d)) }

// Hold makes subsequent txt2img calls block until Release is called.
func (s *Server) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate == nil {
		s.gate = make(chan struct{})
	}
}

// Release unblocks every held txt2img call.
func (s *Server) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

// InFlight returns the number of txt2img calls currently being served.
func (s *Server) InFlight() int { return int(s.inFlight.Load()) }

// MaxInFlight returns the highest concurrent txt2img count observed.
func (s *Server) MaxInFlight() int { return int(s.maxInFlight.Load()) }

// Renders returns the number of successful renders served.
func (s *Server) Renders() int { return int(s.renders.Load()) }

// Requests returns every txt2img body received, in arrival order.
func (s *Server) Requests() []CapturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CapturedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) handleMemory(w http.ResponseWriter, _ *http.Request) {
	if s.dead.Load() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]any{"ram": map[string]any{}, "cuda": map[string]any{}})
}

func (s *Server) handleTxt2Img(w http.ResponseWriter, r *http.Request) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		cur := s.maxInFlight.Load()
		if n <= cur || s.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "invalid JSON body", http.StatusUnprocessableEntity)
		return
	}
	prompt, _ := raw["prompt"].(string)

	s.mu.Lock()
	s.requests = append(s.requests, CapturedRequest{Prompt: prompt, Raw: raw})
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if d := time.Duration(s.delay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	switch Mode(s.mode.Load()) {
	case ModeFail:
		http.Error(w, "CUDA out of memory", http.StatusInternalServerError)
	case ModeNoImages:
		writeJSON(w, webui.Txt2ImgResponse{Images: []string{}})
	case ModeBadImage:
		writeJSON(w, webui.Txt2ImgResponse{Images: []string{base64.StdEncoding.EncodeToString([]byte("not an image"))}})
	default:
		seq := s.renders.Add(1)
		writeJSON(w, webui.Txt2ImgResponse{Images: []string{base64.StdEncoding.EncodeToString(PNG(uint8(seq)))}})
	}
}

// PNG encodes a 2x2 image whose colour depends on shade, so successive
// renders produce different bytes.
func PNG(shade uint8) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			img.Set(x, y, color.RGBA{R: shade, G: 255 - shade, B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
