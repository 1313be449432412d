// Package codec encodes exported command results in one of several wire
// formats, selected by short name ("json", "cbor", "proto") or content type.
package codec

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Codec marshals report records. Implementations are deterministic so the
// same Result always exports to the same bytes.
type Codec interface {
	Name() string
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps format names and content types to codecs.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Codec
	byType map[string]Codec
}

// NewRegistry returns a registry holding the JSON, CBOR and Protobuf codecs.
func NewRegistry() (*Registry, error) {
	r := &Registry{byName: make(map[string]Codec), byType: make(map[string]Codec)}
	r.Register(JSON())
	r.Register(Proto())
	c, err := CBOR()
	if err != nil {
		return nil, fmt.Errorf("codec: init cbor: %w", err)
	}
	r.Register(c)
	return r, nil
}

// Register adds or replaces a codec under its name and content type.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[c.Name()] = c
	r.byType[c.ContentType()] = c
}

// Lookup accepts a format name or a content type, case-insensitively.
func (r *Registry) Lookup(format string) (Codec, error) {
	key := strings.ToLower(strings.TrimSpace(format))
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byName[key]; ok {
		return c, nil
	}
	if c, ok := r.byType[key]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("codec: unknown format %q (have %s)", format, strings.Join(r.names(), ", "))
}

// Names lists the registered format names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
