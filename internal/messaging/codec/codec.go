// Package codec holds the wire formats used for task and result bodies.
package codec

import (
	"fmt"
	"mime"
	"strings"
)

// Codec marshals typed messages to and from a message body.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps content types to codecs. An empty content type resolves to
// the default codec, since most publishers never set one.
type Registry struct {
	byType map[string]Codec
	def    Codec
}

// NewRegistry returns a registry with JSON registered as the default.
// CBOR can be added explicitly via Register.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]Codec)}
	r.Register(JSON())
	r.def = JSON()
	return r
}

// NewDefaultRegistry registers both built-in codecs.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	c, err := CBOR()
	if err != nil {
		return nil, err
	}
	r.Register(c)
	return r, nil
}

// Register adds a codec.
func (r *Registry) Register(c Codec) { r.byType[c.ContentType()] = c }

// Get returns a codec by exact content type, or nil.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }

// Default returns the codec used when a message carries no content type.
func (r *Registry) Default() Codec { return r.def }

// Lookup resolves a content type header value, ignoring parameters such as
// charset.
func (r *Registry) Lookup(contentType string) (Codec, error) {
	if strings.TrimSpace(contentType) == "" {
		return r.def, nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("parse content type %q: %w", contentType, err)
	}
	c := r.byType[mt]
	if c == nil {
		return nil, fmt.Errorf("unsupported content type %q", mt)
	}
	return c, nil
}
