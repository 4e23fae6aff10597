package backend

import (
	"strings"
	"sync"
)

// Registry holds the configured backend addresses. It is safe for concurrent
// use; readers always receive a copy of the current set.
type Registry struct {
	mu    sync.RWMutex
	addrs []string
}

// NewRegistry creates a registry holding the normalized form of addrs.
func NewRegistry(addrs ...string) *Registry {
	r := &Registry{}
	r.SetBackends(addrs)
	return r
}

// SetBackends replaces the registered set and returns the normalized list.
// Surrounding whitespace and trailing slashes are trimmed, empty entries and
// duplicates are dropped, and registration order is preserved. An empty
// input leaves the registry with no backends.
func (r *Registry) SetBackends(addrs []string) []string {
	normalized := Normalize(addrs)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.addrs = normalized

	out := make([]string, len(normalized))
	copy(out, normalized)
	return out
}

// Backends returns the registered addresses in registration order.
func (r *Registry) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.addrs))
	copy(out, r.addrs)
	return out
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.addrs)
}

// Normalize applies the registry's address rules without storing the result.
func Normalize(addrs []string) []string {
	seen := make(map[string]bool, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimRight(strings.TrimSpace(a), "/")
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

// ParseList splits a comma or newline separated address list.
func ParseList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
}
