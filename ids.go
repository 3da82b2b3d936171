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
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TraceID is a 128-bit trace identifier, represented as two unsigned
// 64-bit halves. Legacy 64-bit-only traces carry a zero High half.
type TraceID struct {
	High uint64
	Low  uint64
}

// IsZero reports whether the trace id carries no identity, which is only
// valid for a debug-id-only SpanContext.
func (t TraceID) IsZero() bool {
	return t.High == 0 && t.Low == 0
}

// String renders the trace id as lowercase hex, high half omitted when zero.
func (t TraceID) String() string {
	if t.High == 0 {
		return strconv.FormatUint(t.Low, 16)
	}
	return fmt.Sprintf("%x%016x", t.High, t.Low)
}

// SpanID is a non-zero 64-bit span identifier.
type SpanID uint64

// String renders the span id as lowercase hex, no padding.
func (s SpanID) String() string {
	return strconv.FormatUint(uint64(s), 16)
}

// idGenerator produces random, non-zero 64-bit ids and seeds the high half
// of 128-bit trace ids once, at construction; each Tracer has its own.
type idGenerator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	traceHigh uint64
}

func newIDGenerator(seed int64) *idGenerator {
	g := &idGenerator{rng: rand.New(rand.NewSource(seed))}
	g.traceHigh = uint64(time.Now().Unix())<<32 | (uint64(g.rng.Uint32()) & 0xffffffff)
	return g
}

// randomID returns a uniformly random, non-zero 64-bit value.
func (g *idGenerator) randomID() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		if v := g.rng.Uint64(); v != 0 {
			return v
		}
	}
}

// newTraceID returns a fresh TraceID; the high half is the generator's seed
// when use128Bit is true, else zero (legacy 64-bit trace).
func (g *idGenerator) newTraceID(use128Bit bool) TraceID {
	low := g.randomID()
	if !use128Bit {
		return TraceID{Low: low}
	}
	return TraceID{High: g.traceHigh, Low: low}
}

func (g *idGenerator) newSpanID() SpanID {
	return SpanID(g.randomID())
}

// NewDebugID mints a process-independent token for the debug-id back
// channel: callers that want to force-sample a trace from outside any
// existing trace context (e.g. a load-testing harness or an
// incident-response curl command) need a token that is unique without a
// live idGenerator, which is exactly what a UUID gives them.
func NewDebugID() string {
	return uuid.New().String()
}
