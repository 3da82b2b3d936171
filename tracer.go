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
	"net"
	"os"
	"time"
)

// ClientVersion is reported as the jaeger.version process tag.
const ClientVersion = "Go-1.0"

// SpanKindTagKey and SpanKindServer implement the RPC-server shared-span
// rule without depending on an OpenTracing façade.
const (
	SpanKindTagKey = "span.kind"
	SpanKindServer = "server"
)

// DebugIDHeaderTagKey names the tag recorded on the first span of a
// debug-id-forced trace.
const DebugIDHeaderTagKey = "jaeger-debug-id"

// Tracer wires together a Sampler, Reporter, PropagationRegistry, Clock
// and MetricsFactory, and exposes span-builder semantics.
type Tracer struct {
	serviceName string
	reporter    Reporter
	sampler     Sampler
	registry    *PropagationRegistry
	clock       Clock
	metrics     *Metrics
	processTags []Tag
	ip          uint32

	zipkinSharedRPCSpan bool
	use128BitTraceID    bool

	baggageRestrictions *BaggageRestrictionManager

	ids *idGenerator
}

// TracerOptions configures NewTracer. Only ServiceName, Reporter and
// Sampler are mandatory.
type TracerOptions struct {
	ServiceName         string
	Reporter            Reporter
	Sampler             Sampler
	Registry            *PropagationRegistry
	Clock               Clock
	MetricsFactory      MetricsFactory
	Tags                map[string]interface{}
	ZipkinSharedRPCSpan bool
	UseTraceID128Bit    bool
	BaggageRestrictions *BaggageRestrictionManager
}

// NewTracer validates ServiceName is non-empty (the only application-
// visible construction-time error) and wires defaults for everything else.
func NewTracer(opts TracerOptions) (*Tracer, error) {
	if opts.ServiceName == "" {
		return nil, ErrEmptyServiceName
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Registry == nil {
		opts.Registry = NewPropagationRegistry(DefaultHeaderConfig())
	}
	factory := opts.MetricsFactory
	if factory == nil {
		factory = NullMetricsFactory{}
	}

	t := &Tracer{
		serviceName:         opts.ServiceName,
		reporter:            opts.Reporter,
		sampler:             opts.Sampler,
		registry:            opts.Registry,
		clock:               opts.Clock,
		metrics:             NewMetrics(factory),
		zipkinSharedRPCSpan: opts.ZipkinSharedRPCSpan,
		use128BitTraceID:    opts.UseTraceID128Bit,
		baggageRestrictions: opts.BaggageRestrictions,
		ids:                 newIDGenerator(time.Now().UnixNano()),
		ip:                  localIPv4(),
	}

	t.processTags = append(t.processTags,
		NewTag("jaeger.version", ClientVersion),
	)
	if hostname, err := os.Hostname(); err == nil {
		t.processTags = append(t.processTags, NewTag("jaeger.hostname", hostname))
	}
	t.processTags = append(t.processTags, NewTag("ip", ipv4ToString(t.ip)))
	for k, v := range opts.Tags {
		t.processTags = append(t.processTags, NewTag(k, v))
	}

	return t, nil
}

// ServiceName returns the tracer's configured service name.
func (t *Tracer) ServiceName() string { return t.serviceName }

// Metrics exposes the tracer's metrics struct, e.g. for tests.
func (t *Tracer) Metrics() *Metrics { return t.metrics }

// ProcessTags returns the process-level tags recorded at construction.
func (t *Tracer) ProcessTags() []Tag { return t.processTags }

func (t *Tracer) reportSpan(span *Span) {
	t.reporter.Report(span)
}

// Inject writes ctx into carrier using the codec registered for format.
// ErrUnsupportedFormat is the only error this surfaces to the caller.
func (t *Tracer) Inject(ctx SpanContext, format Format, carrier interface{}) error {
	injector := t.registry.Injector(format)
	if injector == nil {
		return ErrUnsupportedFormat
	}
	return injector.Inject(ctx, carrier)
}

// Extract reads a SpanContext out of carrier using the codec registered
// for format.
func (t *Tracer) Extract(format Format, carrier interface{}) (SpanContext, error) {
	extractor := t.registry.Extractor(format)
	if extractor == nil {
		return SpanContext{}, ErrUnsupportedFormat
	}
	return extractor.Extract(carrier)
}

// Close shuts down the Reporter and then the Sampler, in that order.
func (t *Tracer) Close() {
	t.reporter.Close()
	t.sampler.Close()
}

// SpanBuilder accumulates references, tags, baggage and a start
// timestamp before Start creates the Span.
type SpanBuilder struct {
	tracer        *Tracer
	operationName string
	references    []Reference
	tags          []Tag
	baggage       map[string]string
	startMicros   int64
}

// BuildSpan begins constructing a new span.
func (t *Tracer) BuildSpan(operationName string) *SpanBuilder {
	return &SpanBuilder{tracer: t, operationName: operationName}
}

// ChildOf adds a ChildOf reference.
func (b *SpanBuilder) ChildOf(parent SpanContext) *SpanBuilder {
	return b.addReference(Reference{Kind: ChildOf, Context: parent})
}

// FollowsFrom adds a FollowsFrom reference.
func (b *SpanBuilder) FollowsFrom(parent SpanContext) *SpanBuilder {
	return b.addReference(Reference{Kind: FollowsFrom, Context: parent})
}

func (b *SpanBuilder) addReference(ref Reference) *SpanBuilder {
	b.references = append(b.references, ref)
	b.baggage = mergeBaggage(b.baggage, ref.Context.baggage)
	return b
}

// WithTag stages a tag to be applied at Start.
func (b *SpanBuilder) WithTag(key string, value interface{}) *SpanBuilder {
	b.tags = append(b.tags, NewTag(key, value))
	return b
}

// WithStartTimestamp overrides the span's start time (wall microseconds).
func (b *SpanBuilder) WithStartTimestamp(micros int64) *SpanBuilder {
	b.startMicros = micros
	return b
}

// preferredParent picks the first ChildOf reference, or else the first
// FollowsFrom.
func (b *SpanBuilder) preferredParent() *Reference {
	if len(b.references) == 0 {
		return nil
	}
	for i := range b.references {
		if b.references[i].Kind == ChildOf {
			return &b.references[i]
		}
	}
	return &b.references[0]
}

func (b *SpanBuilder) isRPCServer() bool {
	for _, t := range b.tags {
		if t.Key == SpanKindTagKey && t.Kind == TagString && t.VString == SpanKindServer {
			return true
		}
	}
	return false
}

// Start creates the Span, running the context-derivation algorithm and
// recording the start-time and lifecycle/sampling metrics.
func (b *SpanBuilder) Start() *Span {
	t := b.tracer
	preferred := b.preferredParent()

	var ctx SpanContext
	var joined bool
	var decisionTags []Tag

	switch {
	case preferred == nil:
		ctx, decisionTags = t.newRootContext(b.operationName)
	case preferred.Context.IsDebugIDContainerOnly():
		ctx, decisionTags = t.newDebugRootContext(preferred.Context.DebugID())
	default:
		ctx, joined = t.newChildContext(preferred.Context, b)
	}
	if len(decisionTags) > 0 {
		b.tags = append(b.tags, decisionTags...)
	}

	if t.zipkinSharedRPCSpan && (preferred == nil || b.isRPCServer()) {
		b.tags = append(b.tags, t.processTags...)
	}

	if len(b.baggage) > 0 {
		merged := mergeBaggage(map[string]string{}, ctx.baggage)
		merged = mergeBaggage(merged, b.baggage)
		ctx.baggage = merged
	}

	switch {
	case joined:
		if ctx.IsSampled() {
			t.metrics.TracesJoinedSampled.Inc(1)
		} else {
			t.metrics.TracesJoinedNotSampled.Inc(1)
		}
	case preferred != nil && !preferred.Context.IsDebugIDContainerOnly():
		// Ordinary child span: newChildContext doesn't reuse the parent's
		// id, so this counts as started, not joined.
		if ctx.IsSampled() {
			t.metrics.TracesStartedSampled.Inc(1)
		} else {
			t.metrics.TracesStartedNotSampled.Inc(1)
		}
	}

	startMicros := b.startMicros
	var startNanos int64
	var useNanoDelta bool
	if startMicros == 0 {
		startMicros = t.clock.CurrentTimeMicros()
		if !t.clock.IsMicrosAccurate() {
			startNanos = t.clock.CurrentNanoTicks()
			useNanoDelta = true
		}
	}

	span := &Span{
		tracer:        t,
		context:       ctx,
		operationName: b.operationName,
		startMicros:   startMicros,
		startNanos:    startNanos,
		useNanoDelta:  useNanoDelta,
		tags:          b.tags,
		references:    b.references,
	}

	if ctx.IsSampled() {
		t.metrics.SpansSampled.Inc(1)
	} else {
		t.metrics.SpansNotSampled.Inc(1)
	}
	t.metrics.SpansStarted.Inc(1)

	return span
}

// newRootContext handles the "no preferred parent" branch: generate a
// trace id, consult the sampler, record its tags.
func (t *Tracer) newRootContext(operationName string) (SpanContext, []Tag) {
	traceID := t.ids.newTraceID(t.use128BitTraceID)
	status := t.sampler.Sample(operationName, traceID.Low)

	var flags Flags
	if status.Sampled {
		flags = FlagSampled
		t.metrics.TracesStartedSampled.Inc(1)
	} else {
		t.metrics.TracesStartedNotSampled.Inc(1)
	}
	return NewRootSpanContext(traceID, flags), status.Tags
}

// newDebugRootContext handles the debug-id-container branch of the
// debug-id back-channel: start a new root trace with sampled|debug flags
// and record the jaeger-debug-id tag.
func (t *Tracer) newDebugRootContext(debugID string) (SpanContext, []Tag) {
	traceID := t.ids.newTraceID(t.use128BitTraceID)
	t.metrics.TracesStartedSampled.Inc(1)
	return NewRootSpanContext(traceID, FlagSampled|FlagDebug), []Tag{NewTag(DebugIDHeaderTagKey, debugID)}
}

// newChildContext handles the child branch, including the
// zipkin-shared-rpc-span exception for span.kind=server spans. joined is
// true only for that exception, which reuses the parent's span id instead
// of minting a new one; an ordinary child span is never "joined".
func (t *Tracer) newChildContext(parent SpanContext, b *SpanBuilder) (SpanContext, bool) {
	if b.isRPCServer() && t.zipkinSharedRPCSpan {
		return parent, true
	}
	spanID := t.ids.newSpanID()
	return NewChildSpanContext(parent, spanID, nil), false
}

func localIPv4() uint32 {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return 0
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
		}
	}
	return 0
}

func ipv4ToString(ip uint32) string {
	return net.IPv4(byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip)).String()
}
