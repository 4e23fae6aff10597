// Package backend tracks the rendering backends a dispatch may use. It holds
// the registered address set, probes each address for liveness, and defines
// the error values shared by backend client implementations.
package backend
