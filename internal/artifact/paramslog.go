package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLogWriteFailed is returned when a parameter log record cannot be appended.
var ErrLogWriteFailed = errors.New("params log write failed")

// queueSize is the record buffer between workers and the log writer.
const queueSize = 64

type record struct {
	name    string
	payload any
}

// ParamsLog appends one JSON line per successful render to a shared file.
// Records from concurrent workers are funnelled through a single writer
// goroutine, so lines are never interleaved. Each append also holds an
// advisory file lock on path+".lock" against other processes.
type ParamsLog struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger

	records  chan record
	done     chan struct{}
	failures int
}

// OpenParamsLog starts a writer for the log at path, creating its directory
// if needed. Close must be called to flush pending records.
func OpenParamsLog(path string, logger *slog.Logger) (*ParamsLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create log dir: %v", ErrLogWriteFailed, err)
	}

	l := &ParamsLog{
		path:    path,
		lock:    flock.New(path + ".lock"),
		logger:  logger,
		records: make(chan record, queueSize),
		done:    make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Append queues {name: payload} for writing. It must not be called after Close.
func (l *ParamsLog) Append(name string, payload any) {
	l.records <- record{name: name, payload: payload}
}

// Close drains the queue, stops the writer and returns the number of records
// that could not be written.
func (l *ParamsLog) Close() int {
	close(l.records)
	<-l.done
	return l.failures
}

func (l *ParamsLog) run() {
	defer close(l.done)
	for rec := range l.records {
		if err := l.write(rec); err != nil {
			l.failures++
			l.logger.Warn("params log append failed", "artifact", rec.name, "path", l.path, "error", err)
		}
	}
}

func (l *ParamsLog) write(rec record) error {
	line, err := json.Marshal(map[string]any{rec.name: rec.payload})
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrLogWriteFailed, rec.name, err)
	}
	line = append(line, '\n')

	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("%w: lock: %v", ErrLogWriteFailed, err)
	}
	defer l.lock.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open: %v", ErrLogWriteFailed, err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("%w: write: %v", ErrLogWriteFailed, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrLogWriteFailed, err)
	}
	return nil
}

// ReadRecords parses every line of the log at path. It is used to inspect a
// log after a batch; a malformed line is an error.
func ReadRecords(path string) ([]map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read params log: %w", err)
	}

	var out []map[string]json.RawMessage
	for i, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec map[string]json.RawMessage
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("params log line %d: %w", i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
