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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracerRejectsEmptyServiceName(t *testing.T) {
	_, err := NewTracer(TracerOptions{Reporter: NoopReporter{}, Sampler: &ConstSampler{}})
	assert.ErrorIs(t, err, ErrEmptyServiceName)
}

func TestBuildSpanRootHasNoParent(t *testing.T) {
	tracer := newTestTracer(NoopReporter{}, &ConstSampler{Decision: true})
	span := tracer.BuildSpan("root").Start()
	assert.Zero(t, span.Context().ParentSpanID)
	assert.True(t, span.Context().IsSampled())
}

func TestChildOfDerivesChildContext(t *testing.T) {
	tracer := newTestTracer(NoopReporter{}, &ConstSampler{Decision: true})
	root := tracer.BuildSpan("root").Start()
	child := tracer.BuildSpan("child").ChildOf(root.Context()).Start()

	assert.Equal(t, root.Context().TraceID, child.Context().TraceID)
	assert.Equal(t, root.Context().SpanID, child.Context().ParentSpanID)
	assert.NotEqual(t, root.Context().SpanID, child.Context().SpanID)
}

func TestDebugIDContainerForcesSampledRoot(t *testing.T) {
	tracer := newTestTracer(NoopReporter{}, &ConstSampler{Decision: false})
	parent := DebugIDContainer("debug-token")
	span := tracer.BuildSpan("op").ChildOf(parent).Start()

	assert.True(t, span.Context().IsSampled())
	assert.True(t, span.Context().Flags.Debug())

	found := false
	for _, tag := range span.Tags() {
		if tag.Key == DebugIDHeaderTagKey {
			found = true
			assert.Equal(t, "debug-token", tag.VString)
		}
	}
	assert.True(t, found)
}

func TestZipkinSharedRPCSpanReusesParentSpanID(t *testing.T) {
	tracer, err := NewTracer(TracerOptions{
		ServiceName:         "svc",
		Reporter:            NoopReporter{},
		Sampler:             &ConstSampler{Decision: true},
		ZipkinSharedRPCSpan:  true,
	})
	require.NoError(t, err)

	clientSpan := tracer.BuildSpan("call").Start()
	serverSpan := tracer.BuildSpan("call").
		ChildOf(clientSpan.Context()).
		WithTag(SpanKindTagKey, SpanKindServer).
		Start()

	assert.Equal(t, clientSpan.Context().SpanID, serverSpan.Context().SpanID)
}

func TestWithoutZipkinSharingChildGetsNewSpanID(t *testing.T) {
	tracer := newTestTracer(NoopReporter{}, &ConstSampler{Decision: true})
	clientSpan := tracer.BuildSpan("call").Start()
	serverSpan := tracer.BuildSpan("call").
		ChildOf(clientSpan.Context()).
		WithTag(SpanKindTagKey, SpanKindServer).
		Start()

	assert.NotEqual(t, clientSpan.Context().SpanID, serverSpan.Context().SpanID)
}

func TestPreferredParentPrefersChildOfOverFollowsFrom(t *testing.T) {
	tracer := newTestTracer(NoopReporter{}, &ConstSampler{Decision: true})
	follows := tracer.BuildSpan("a").Start()
	childOf := tracer.BuildSpan("b").Start()

	span := tracer.BuildSpan("c").FollowsFrom(follows.Context()).ChildOf(childOf.Context()).Start()
	assert.Equal(t, childOf.Context().SpanID, span.Context().ParentSpanID)
}

func TestStartRecordsSamplingMetrics(t *testing.T) {
	factory := NewInMemoryMetricsFactory()
	tracer, err := NewTracer(TracerOptions{
		ServiceName:    "svc",
		Reporter:       NoopReporter{},
		Sampler:        &ConstSampler{Decision: true},
		MetricsFactory: factory,
	})
	require.NoError(t, err)

	tracer.BuildSpan("op").Start()

	assert.Equal(t, int64(1), factory.CounterValue("traces", map[string]string{"state": "started", "sampled": "y"}))
	assert.Equal(t, int64(1), factory.CounterValue("spans", map[string]string{"state": "started", "group": "lifecycle"}))
}

func TestInjectExtractViaTracer(t *testing.T) {
	tracer := newTestTracer(NoopReporter{}, &ConstSampler{Decision: true})
	span := tracer.BuildSpan("op").Start()

	carrier := TextMapReaderWriter{}
	require.NoError(t, tracer.Inject(span.Context(), TextMap, carrier))

	extracted, err := tracer.Extract(TextMap, carrier)
	require.NoError(t, err)
	assert.Equal(t, span.Context().TraceID, extracted.TraceID)
}

func TestCloseClosesReporterThenSampler(t *testing.T) {
	var order []string
	reporter := &orderTrackingReporter{order: &order}
	sampler := &orderTrackingSampler{order: &order}
	tracer := newTestTracer(reporter, sampler)

	tracer.Close()
	assert.Equal(t, []string{"reporter", "sampler"}, order)
}

type orderTrackingReporter struct{ order *[]string }

func (r *orderTrackingReporter) Report(*Span) {}
func (r *orderTrackingReporter) Close()       { *r.order = append(*r.order, "reporter") }

type orderTrackingSampler struct{ order *[]string }

func (s *orderTrackingSampler) Sample(string, uint64) SamplingStatus {
	return SamplingStatus{Sampled: true}
}
func (s *orderTrackingSampler) Close()              { *s.order = append(*s.order, "sampler") }
func (s *orderTrackingSampler) Equal(Sampler) bool  { return false }
