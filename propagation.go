// Copyright 2015 The Cockroach Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package jaeger

import (
	"net/url"
	"strings"
	"sync"
)

// Format identifies a carrier encoding in the propagation registry.
type Format int

const (
	// TextMap is the opaque key/value carrier format.
	TextMap Format = iota
	// HTTPHeaders is TextMap plus URL-encoding of baggage values.
	HTTPHeaders
)

// TextMapCarrier is the opaque key/value container consumed by the TextMap
// codec. Implementations just need to support set/iterate.
type TextMapCarrier interface {
	Set(key, value string)
	ForeachKey(handler func(key, value string) error) error
}

// TextMapReaderWriter is a trivial map-backed TextMapCarrier, handy for
// tests and for in-process propagation.
type TextMapReaderWriter map[string]string

func (c TextMapReaderWriter) Set(key, value string) { c[key] = value }

func (c TextMapReaderWriter) ForeachKey(handler func(key, value string) error) error {
	for k, v := range c {
		if err := handler(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Injector writes a SpanContext into a carrier.
type Injector interface {
	Inject(ctx SpanContext, carrier interface{}) error
}

// Extractor reads a SpanContext out of a carrier. Returns (SpanContext{},
// nil) when the carrier has no trace state and no debug id.
type Extractor interface {
	Extract(carrier interface{}) (SpanContext, error)
}

// PropagationRegistry maps carrier-format identifiers to injectors and
// extractors. Unknown formats fail with ErrUnsupportedFormat. Reads are
// the hot path; writes (registering new codecs) only need to be safe, not
// lock-free.
type PropagationRegistry struct {
	mu         sync.RWMutex
	injectors  map[Format]Injector
	extractors map[Format]Extractor
}

// NewPropagationRegistry builds a registry pre-populated with the TextMap
// and HTTPHeaders codecs using the given header/prefix configuration.
func NewPropagationRegistry(cfg HeaderConfig) *PropagationRegistry {
	r := &PropagationRegistry{
		injectors:  make(map[Format]Injector),
		extractors: make(map[Format]Extractor),
	}
	textMap := &TextMapCodec{Headers: cfg, URLEncode: false}
	httpHeaders := &TextMapCodec{Headers: cfg, URLEncode: true}
	r.Register(TextMap, textMap, textMap)
	r.Register(HTTPHeaders, httpHeaders, httpHeaders)
	return r
}

// Register installs an injector/extractor pair for a carrier format,
// overwriting any previous registration.
func (r *PropagationRegistry) Register(format Format, inj Injector, ext Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.injectors[format] = inj
	r.extractors[format] = ext
}

// Injector returns the injector for format, or nil if unregistered.
func (r *PropagationRegistry) Injector(format Format) Injector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.injectors[format]
}

// Extractor returns the extractor for format, or nil if unregistered.
func (r *PropagationRegistry) Extractor(format Format) Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.extractors[format]
}

// HeaderConfig names the wire keys used by TextMapCodec, all independently
// configurable.
type HeaderConfig struct {
	StateHeader   string
	DebugIDHeader string
	BaggagePrefix string
}

// DefaultHeaderConfig returns the uber-trace-id/jaeger-debug-id/uberctx-
// header defaults.
func DefaultHeaderConfig() HeaderConfig {
	return HeaderConfig{
		StateHeader:   "uber-trace-id",
		DebugIDHeader: "jaeger-debug-id",
		BaggagePrefix: "uberctx-",
	}
}

// TextMapCodec implements both the TextMap and HTTP-headers codecs;
// URLEncode toggles the header-specific URL-encoding of baggage values.
type TextMapCodec struct {
	Headers   HeaderConfig
	URLEncode bool
}

// Inject writes the state key, the debug-id key (when present), and one
// key per baggage item under the configured prefix.
func (c *TextMapCodec) Inject(ctx SpanContext, carrier interface{}) error {
	tm, ok := carrier.(TextMapCarrier)
	if !ok {
		return ErrUnsupportedFormat
	}
	if ctx.IsDebugIDContainerOnly() {
		tm.Set(c.Headers.DebugIDHeader, ctx.DebugID())
		return nil
	}
	tm.Set(c.Headers.StateHeader, ctx.String())
	ctx.ForeachBaggageItem(func(k, v string) bool {
		key := c.Headers.BaggagePrefix + NormalizeBaggageKey(k)
		if c.URLEncode {
			v = url.QueryEscape(v)
		}
		tm.Set(key, v)
		return true
	})
	return nil
}

// Extract reads the state key, baggage-prefixed keys, and the debug-id
// key. A malformed state value yields ErrMalformedState (an empty one,
// ErrEmptyState) but still returns
// whatever debug-id container applies: callers should treat a non-nil
// error paired with a zero-value SpanContext.debugID as "no-context", and
// a non-nil error paired with a set debugID as "debug-id container".
func (c *TextMapCodec) Extract(carrier interface{}) (SpanContext, error) {
	tm, ok := carrier.(TextMapCarrier)
	if !ok {
		return SpanContext{}, ErrUnsupportedFormat
	}

	var stateValue string
	var hasState bool
	var debugID string
	baggage := make(map[string]string)

	// HTTPHeaders compares keys case-insensitively (HTTP header names are
	// case-insensitive on the wire); TextMap is an opaque key/value carrier
	// and must match and extract keys exactly as given.
	err := tm.ForeachKey(func(key, value string) error {
		mk := key
		statePattern := c.Headers.StateHeader
		debugPattern := c.Headers.DebugIDHeader
		prefixPattern := c.Headers.BaggagePrefix
		if c.URLEncode {
			mk = strings.ToLower(mk)
			statePattern = strings.ToLower(statePattern)
			debugPattern = strings.ToLower(debugPattern)
			prefixPattern = strings.ToLower(prefixPattern)
		}
		switch {
		case mk == statePattern:
			stateValue = value
			hasState = true
		case mk == debugPattern:
			debugID = value
		case strings.HasPrefix(mk, prefixPattern):
			k := strings.TrimPrefix(mk, prefixPattern)
			if c.URLEncode {
				if decoded, err := url.QueryUnescape(value); err == nil {
					value = decoded
				}
			}
			baggage[k] = value
		}
		return nil
	})
	if err != nil {
		return SpanContext{}, err
	}

	if !hasState {
		if debugID != "" {
			return DebugIDContainer(debugID), nil
		}
		return SpanContext{}, nil
	}

	ctx, parseErr := ContextFromString(stateValue)
	if parseErr != nil {
		if debugID != "" {
			return DebugIDContainer(debugID), parseErr
		}
		return SpanContext{}, parseErr
	}
	if len(baggage) > 0 {
		ctx.baggage = baggage
	}
	return ctx, nil
}
