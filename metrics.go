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

import "sort"

// Counter is a monotonically increasing value.
type Counter interface {
	Inc(delta int64)
}

// Gauge is a point-in-time value.
type Gauge interface {
	Update(value int64)
}

// Timer records durations; the core never reads timers back, so callers of
// MetricsFactory get to pick any representation.
type Timer interface {
	Record(duration int64)
}

// MetricsFactory materializes named counters/gauges/timers, each qualified
// by a tag mapping, under the flat jaeger_tracer_<name> namespace.
type MetricsFactory interface {
	Counter(name string, tags map[string]string) Counter
	Gauge(name string, tags map[string]string) Gauge
	Timer(name string, tags map[string]string) Timer
}

// metricDescriptor is one row of the static table the Metrics struct is
// built from: construction walks this table and asks the factory to
// materialize each counter/gauge, rather than discovering fields via
// reflection.
type metricDescriptor struct {
	field string
	name  string
	tags  map[string]string
}

// Metrics is the fixed set of counters/gauges the core emits. Every Counter
// field here corresponds to a row in metricDescriptors; the ReporterQueue
// gauge has no row.
type Metrics struct {
	TracesStartedSampled    Counter
	TracesStartedNotSampled Counter
	TracesJoinedSampled     Counter
	TracesJoinedNotSampled  Counter
	SpansStarted            Counter
	SpansFinished           Counter
	SpansSampled            Counter
	SpansNotSampled         Counter
	DecodingErrors          Counter

	ReporterSuccess Counter
	ReporterFailure Counter
	ReporterDropped Counter
	ReporterQueue   Gauge

	SamplerRetrieved      Counter
	SamplerUpdated        Counter
	SamplerQueryFailure   Counter
	SamplerParsingFailure Counter

	BaggageUpdateSuccess Counter
	BaggageUpdateFailure Counter
	BaggageTruncate      Counter
}

func metricDescriptors() []metricDescriptor {
	return []metricDescriptor{
		{"TracesStartedSampled", "traces", map[string]string{"state": "started", "sampled": "y"}},
		{"TracesStartedNotSampled", "traces", map[string]string{"state": "started", "sampled": "n"}},
		{"TracesJoinedSampled", "traces", map[string]string{"state": "joined", "sampled": "y"}},
		{"TracesJoinedNotSampled", "traces", map[string]string{"state": "joined", "sampled": "n"}},
		{"SpansStarted", "spans", map[string]string{"state": "started", "group": "lifecycle"}},
		{"SpansFinished", "spans", map[string]string{"state": "finished", "group": "lifecycle"}},
		{"SpansSampled", "spans", map[string]string{"group": "sampling", "sampled": "y"}},
		{"SpansNotSampled", "spans", map[string]string{"group": "sampling", "sampled": "n"}},
		{"DecodingErrors", "decoding-errors", nil},
		{"ReporterSuccess", "reporter-spans", map[string]string{"result": "ok"}},
		{"ReporterFailure", "reporter-spans", map[string]string{"result": "err"}},
		{"ReporterDropped", "reporter-spans", map[string]string{"result": "dropped"}},
		{"SamplerRetrieved", "sampler", map[string]string{"state": "retrieved"}},
		{"SamplerUpdated", "sampler", map[string]string{"state": "updated"}},
		{"SamplerQueryFailure", "sampler", map[string]string{"state": "failure", "phase": "query"}},
		{"SamplerParsingFailure", "sampler", map[string]string{"state": "failure", "phase": "parsing"}},
		{"BaggageUpdateSuccess", "baggage-update", map[string]string{"result": "ok"}},
		{"BaggageUpdateFailure", "baggage-update", map[string]string{"result": "err"}},
		{"BaggageTruncate", "baggage-truncate", nil},
	}
}

// NewMetrics walks metricDescriptors and asks factory to materialize each
// field. The ReporterQueue gauge is materialized separately since it is the
// struct's only Gauge-typed field and is not in the table.
func NewMetrics(factory MetricsFactory) *Metrics {
	m := &Metrics{ReporterQueue: factory.Gauge("reporter-queue", nil)}
	for _, d := range metricDescriptors() {
		c := factory.Counter(d.name, d.tags)
		switch d.field {
		case "TracesStartedSampled":
			m.TracesStartedSampled = c
		case "TracesStartedNotSampled":
			m.TracesStartedNotSampled = c
		case "TracesJoinedSampled":
			m.TracesJoinedSampled = c
		case "TracesJoinedNotSampled":
			m.TracesJoinedNotSampled = c
		case "SpansStarted":
			m.SpansStarted = c
		case "SpansFinished":
			m.SpansFinished = c
		case "SpansSampled":
			m.SpansSampled = c
		case "SpansNotSampled":
			m.SpansNotSampled = c
		case "DecodingErrors":
			m.DecodingErrors = c
		case "ReporterSuccess":
			m.ReporterSuccess = c
		case "ReporterFailure":
			m.ReporterFailure = c
		case "ReporterDropped":
			m.ReporterDropped = c
		case "SamplerRetrieved":
			m.SamplerRetrieved = c
		case "SamplerUpdated":
			m.SamplerUpdated = c
		case "SamplerQueryFailure":
			m.SamplerQueryFailure = c
		case "SamplerParsingFailure":
			m.SamplerParsingFailure = c
		case "BaggageUpdateSuccess":
			m.BaggageUpdateSuccess = c
		case "BaggageUpdateFailure":
			m.BaggageUpdateFailure = c
		case "BaggageTruncate":
			m.BaggageTruncate = c
		}
	}
	return m
}

// nullCounter/nullGauge/nullTimer back NullMetricsFactory.
type nullCounter struct{}

func (nullCounter) Inc(int64) {}

type nullGauge struct{}

func (nullGauge) Update(int64) {}

type nullTimer struct{}

func (nullTimer) Record(int64) {}

// NullMetricsFactory discards everything; it is the default when no
// MetricsFactory is configured.
type NullMetricsFactory struct{}

func (NullMetricsFactory) Counter(string, map[string]string) Counter { return nullCounter{} }
func (NullMetricsFactory) Gauge(string, map[string]string) Gauge     { return nullGauge{} }
func (NullMetricsFactory) Timer(string, map[string]string) Timer     { return nullTimer{} }

// InMemoryMetricsFactory records every increment/update for tests.
type InMemoryMetricsFactory struct {
	counters map[string]*inMemoryCounter
	gauges   map[string]*inMemoryGauge
}

type inMemoryCounter struct {
	name string
	v    int64
}

func (c *inMemoryCounter) Inc(delta int64) { c.v += delta }

type inMemoryGauge struct {
	name string
	v    int64
}

func (g *inMemoryGauge) Update(value int64) { g.v = value }

// NewInMemoryMetricsFactory constructs an empty factory.
func NewInMemoryMetricsFactory() *InMemoryMetricsFactory {
	return &InMemoryMetricsFactory{
		counters: make(map[string]*inMemoryCounter),
		gauges:   make(map[string]*inMemoryGauge),
	}
}

func metricKey(name string, tags map[string]string) string {
	key := addTagsToMetricName(name, tags)
	return key
}

func (f *InMemoryMetricsFactory) Counter(name string, tags map[string]string) Counter {
	key := metricKey(name, tags)
	c, ok := f.counters[key]
	if !ok {
		c = &inMemoryCounter{name: key}
		f.counters[key] = c
	}
	return c
}

func (f *InMemoryMetricsFactory) Gauge(name string, tags map[string]string) Gauge {
	key := metricKey(name, tags)
	g, ok := f.gauges[key]
	if !ok {
		g = &inMemoryGauge{name: key}
		f.gauges[key] = g
	}
	return g
}

func (f *InMemoryMetricsFactory) Timer(string, map[string]string) Timer { return nullTimer{} }

// CounterValue returns the current value of a previously-created counter, or 0.
func (f *InMemoryMetricsFactory) CounterValue(name string, tags map[string]string) int64 {
	if c, ok := f.counters[metricKey(name, tags)]; ok {
		return c.v
	}
	return 0
}

// GaugeValue returns the current value of a previously-created gauge, or 0.
func (f *InMemoryMetricsFactory) GaugeValue(name string, tags map[string]string) int64 {
	if g, ok := f.gauges[metricKey(name, tags)]; ok {
		return g.v
	}
	return 0
}

// addTagsToMetricName renders "name.k1=v1.k2=v2" with keys sorted so the
// same tag set always yields the same rendered name.
func addTagsToMetricName(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := name
	for _, k := range keys {
		out += "." + k + "=" + tags[k]
	}
	return out
}
