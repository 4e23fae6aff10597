package backend

import (
	"context"
	"errors"
)

var (
	// ErrBackendUnavailable is returned when no registered backend passed
	// health probing. A dispatch that sees it attempts no tasks.
	ErrBackendUnavailable = errors.New("no backends available")

	// ErrBackendRequestFailed wraps timeouts, transport errors, non-success
	// statuses and responses missing the expected artifact.
	ErrBackendRequestFailed = errors.New("backend request failed")

	// ErrArtifactDecodeFailed wraps responses whose artifact payload could not
	// be decoded into a usable image.
	ErrArtifactDecodeFailed = errors.New("artifact decode failed")
)

// Pinger performs the lightweight liveness call against one backend address.
// A nil error means the backend reported ready.
type Pinger interface {
	Ping(ctx context.Context, addr string) error
}

// Status is the transient liveness of one backend, valid only for the probe
// that produced it.
type Status struct {
	Address   string `json:"address"`
	Alive     bool   `json:"alive"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}
