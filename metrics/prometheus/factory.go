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

// Package prometheus is a concrete jaeger.MetricsFactory backing every
// jaeger_tracer_* counter/gauge with a github.com/prometheus/client_golang
// collector.
package prometheus

import (
	"strings"
	"sync"

	jaeger "github.com/jaegertracing/jaeger-go-core"
	"github.com/prometheus/client_golang/prometheus"
)

// Factory implements jaeger.MetricsFactory over a prometheus.Registerer.
// Counters/gauges are namespaced "jaeger_tracer_<name>" and lazily
// materialized per distinct tag set, since the core asks for a handle once
// per field at Tracer construction but the RemoteSampler/RemoteReporter
// may ask for the same name with varying tags at different call sites.
type Factory struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
}

// New wraps registerer (pass prometheus.DefaultRegisterer for the global
// registry).
func New(registerer prometheus.Registerer) *Factory {
	return &Factory{
		registerer: registerer,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

func metricName(name string) string {
	return "jaeger_tracer_" + strings.ReplaceAll(name, "-", "_")
}

func (f *Factory) Counter(name string, tags map[string]string) jaeger.Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	metric := metricName(name)
	vec, ok := f.counters[metric]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metric,
			Help: "jaeger tracer metric " + name,
		}, labelNames(tags))
		f.registerer.MustRegister(vec)
		f.counters[metric] = vec
	}
	return &counter{c: vec.With(tags)}
}

func (f *Factory) Gauge(name string, tags map[string]string) jaeger.Gauge {
	f.mu.Lock()
	defer f.mu.Unlock()

	metric := metricName(name)
	vec, ok := f.gauges[metric]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metric,
			Help: "jaeger tracer metric " + name,
		}, labelNames(tags))
		f.registerer.MustRegister(vec)
		f.gauges[metric] = vec
	}
	return &gauge{g: vec.With(tags)}
}

// Timer has no first-class Prometheus type in this client's scope (spec
// §4.3/§4.4 never read a timer back); a histogram would need bucket
// configuration the domain stack doesn't call for, so Timer is a no-op.
func (f *Factory) Timer(name string, tags map[string]string) jaeger.Timer {
	return noopTimer{}
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, k)
	}
	return names
}

type counter struct{ c prometheus.Counter }

func (c *counter) Inc(delta int64) { c.c.Add(float64(delta)) }

type gauge struct{ g prometheus.Gauge }

func (g *gauge) Update(value int64) { g.g.Set(float64(value)) }

type noopTimer struct{}

func (noopTimer) Record(int64) {}
