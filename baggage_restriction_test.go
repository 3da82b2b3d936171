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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaggageRestrictionManagerUnrestrictedByDefault(t *testing.T) {
	m := NewBaggageRestrictionManager(0)
	result, allowed, truncated := m.Apply("op", "key", "value")
	assert.Equal(t, "value", result)
	assert.True(t, allowed)
	assert.False(t, truncated)
}

func TestBaggageRestrictionManagerTruncatesLongValues(t *testing.T) {
	m := NewBaggageRestrictionManager(4)
	result, allowed, truncated := m.Apply("op", "key", "toolongvalue")
	assert.Equal(t, "tool", result)
	assert.True(t, allowed)
	assert.True(t, truncated)
}

func TestBaggageRestrictionManagerRestrictDisablesOperation(t *testing.T) {
	m := NewBaggageRestrictionManager(0)
	m.Restrict("forbidden-op")

	_, allowed, _ := m.Apply("forbidden-op", "key", "value")
	assert.False(t, allowed)

	_, allowed, _ = m.Apply("other-op", "key", "value")
	assert.True(t, allowed)
}

func TestSpanSetBaggageItemIncrementsRestrictionMetrics(t *testing.T) {
	factory := NewInMemoryMetricsFactory()
	rm := NewBaggageRestrictionManager(4)
	rm.Restrict("blocked")

	tracer, err := NewTracer(TracerOptions{
		ServiceName:         "svc",
		Reporter:            NoopReporter{},
		Sampler:             &ConstSampler{Decision: true},
		MetricsFactory:      factory,
		BaggageRestrictions: rm,
	})
	assert.NoError(t, err)

	allowedSpan := tracer.BuildSpan("allowed").Start()
	allowedSpan.SetBaggageItem("key", strings.Repeat("x", 10))
	assert.Equal(t, int64(1), factory.CounterValue("baggage-truncate", nil))
	assert.Equal(t, int64(1), factory.CounterValue("baggage-update", map[string]string{"result": "ok"}))

	blockedSpan := tracer.BuildSpan("blocked").Start()
	blockedSpan.SetBaggageItem("key", "value")
	assert.Equal(t, int64(1), factory.CounterValue("baggage-update", map[string]string{"result": "err"}))
}
