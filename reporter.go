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

import "sync"

// Reporter is an asynchronous span sink.
type Reporter interface {
	Report(span *Span)
	Close()
}

// NoopReporter discards every span.
type NoopReporter struct{}

func (NoopReporter) Report(*Span) {}
func (NoopReporter) Close()       {}

// InMemoryReporter retains finished spans for inspection in tests.
type InMemoryReporter struct {
	mu    sync.Mutex
	spans []*Span
}

func NewInMemoryReporter() *InMemoryReporter {
	return &InMemoryReporter{}
}

func (r *InMemoryReporter) Report(span *Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, span)
}

func (r *InMemoryReporter) Close() {}

// Spans returns a snapshot of everything reported so far.
func (r *InMemoryReporter) Spans() []*Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Span, len(r.spans))
	copy(out, r.spans)
	return out
}

// LoggingReporter formats each finished span as a one-line summary and
// writes it through a caller-supplied sink function.
type LoggingReporter struct {
	Write func(line string)
}

func NewLoggingReporter(write func(string)) *LoggingReporter {
	return &LoggingReporter{Write: write}
}

func (r *LoggingReporter) Report(span *Span) {
	r.Write("reporting span " + span.Context().String() + " operation=" + span.OperationName())
}

func (r *LoggingReporter) Close() {}

// CompositeReporter fans out to an ordered list of reporters.
type CompositeReporter struct {
	reporters []Reporter
}

func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	return &CompositeReporter{reporters: reporters}
}

func (r *CompositeReporter) Report(span *Span) {
	for _, rep := range r.reporters {
		rep.Report(span)
	}
}

func (r *CompositeReporter) Close() {
	for _, rep := range r.reporters {
		rep.Close()
	}
}
