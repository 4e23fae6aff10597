package webui

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/seantiz/easel/internal/backend"
)

// Compile-time interface satisfaction check.
var _ backend.Pinger = (*Client)(nil)

// Client calls WebUI backends. One client serves every backend address; the
// address is supplied per call.
type Client struct {
	http          *http.Client
	renderTimeout time.Duration
}

// NewClient creates a client whose render calls are bounded by renderTimeout.
// A non-positive timeout selects DefaultRenderTimeout.
func NewClient(renderTimeout time.Duration) *Client {
	if renderTimeout <= 0 {
		renderTimeout = DefaultRenderTimeout
	}
	return &Client{
		http:          &http.Client{},
		renderTimeout: renderTimeout,
	}
}

// Ping issues the liveness call. Any status other than 200 counts as not ready.
// The caller's context carries the probe timeout.
func (c *Client) Ping(ctx context.Context, addr string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr+MemoryPath, nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping %s: %w", addr, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping %s: status %d", addr, resp.StatusCode)
	}
	return nil
}

// Render submits req to the backend at addr and returns the decoded bytes of
// the first returned image. Transport errors, timeouts, non-2xx statuses and
// responses without an image wrap backend.ErrBackendRequestFailed; an image
// that cannot be decoded wraps backend.ErrArtifactDecodeFailed.
func (c *Client) Render(ctx context.Context, addr string, req *Txt2ImgRequest) ([]byte, error) {
	start := time.Now()
	img, err := c.render(ctx, addr, req)
	renderDuration.WithLabelValues(addr).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		rendersTotal.WithLabelValues(addr, outcomeOK).Inc()
	case errors.Is(err, backend.ErrArtifactDecodeFailed):
		rendersTotal.WithLabelValues(addr, outcomeDecodeError).Inc()
	default:
		rendersTotal.WithLabelValues(addr, outcomeRequestErr).Inc()
	}
	return img, err
}

func (c *Client) render(ctx context.Context, addr string, req *Txt2ImgRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal payload: %v", backend.ErrBackendRequestFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.renderTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, addr+Txt2ImgPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", backend.ErrBackendRequestFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: timed out after %s", backend.ErrBackendRequestFailed, c.renderTimeout)
		}
		return nil, fmt.Errorf("%w: %v", backend.ErrBackendRequestFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", backend.ErrBackendRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", backend.ErrBackendRequestFailed, resp.StatusCode, snippet(data))
	}

	var out Txt2ImgResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", backend.ErrBackendRequestFailed, err)
	}
	if len(out.Images) == 0 || out.Images[0] == "" {
		return nil, fmt.Errorf("%w: response contained no images", backend.ErrBackendRequestFailed)
	}

	return DecodeImage(out.Images[0])
}

// DecodeImage decodes a base64 image as returned by txt2img. Some WebUI builds
// prefix the payload with a data URI header, which is stripped.
func DecodeImage(encoded string) ([]byte, error) {
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}

	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrArtifactDecodeFailed, err)
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("%w: empty image", backend.ErrArtifactDecodeFailed)
	}
	if ct := http.DetectContentType(img); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: payload is %s, not an image", backend.ErrArtifactDecodeFailed, ct)
	}
	return img, nil
}

// snippet trims a response body for inclusion in an error message.
func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
