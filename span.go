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
	"sync"
	"time"
)

// Span is a mutable record of one traced operation. It is NOT safe for
// concurrent mutation (SetTag/Log/SetBaggageItem/Finish must be serialized
// by the owning goroutine); only the baggage-bearing context is published
// atomically so concurrent readers of Context() never observe a
// half-updated baggage snapshot.
type Span struct {
	tracer *Tracer

	mu      sync.Mutex
	context SpanContext

	operationName string
	startMicros   int64
	startNanos    int64
	useNanoDelta  bool
	durationMicro int64

	tags       []Tag
	logs       []LogEntry
	references []Reference

	finished bool
}

// Context returns the span's current SpanContext snapshot. Safe to call
// concurrently with SetBaggageItem on the same span.
func (s *Span) Context() SpanContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context
}

// SetOperationName renames the span; callers own serializing this with
// other mutators.
func (s *Span) SetOperationName(name string) *Span {
	s.operationName = name
	return s
}

// OperationName returns the current operation name.
func (s *Span) OperationName() string {
	return s.operationName
}

// SetTag attaches or overwrites a tag. Values are coerced via NewTag.
func (s *Span) SetTag(key string, value interface{}) *Span {
	tag := NewTag(key, value)
	for i := range s.tags {
		if s.tags[i].Key == key {
			s.tags[i] = tag
			return s
		}
	}
	s.tags = append(s.tags, tag)
	return s
}

// Tags returns the span's accumulated tag list.
func (s *Span) Tags() []Tag {
	return s.tags
}

// LogFields appends a timestamped log entry with the current wall time.
func (s *Span) LogFields(fields ...Tag) *Span {
	return s.LogFieldsAt(s.tracer.clock.CurrentTimeMicros(), fields...)
}

// LogFieldsAt appends a log entry with a caller-supplied timestamp.
func (s *Span) LogFieldsAt(timestampMicros int64, fields ...Tag) *Span {
	s.logs = append(s.logs, LogEntry{TimestampMicros: timestampMicros, Fields: fields})
	return s
}

// Logs returns the span's accumulated log sequence.
func (s *Span) Logs() []LogEntry {
	return s.logs
}

// References returns the span's immutable reference list.
func (s *Span) References() []Reference {
	return s.references
}

// BaggageItem reads a baggage value from the current context snapshot.
func (s *Span) BaggageItem(key string) string {
	return s.Context().BaggageItem(key)
}

// SetBaggageItem mutates baggage under the span's guard and publishes a new
// SpanContext snapshot atomically. Always succeeds unless a restriction
// manager vetoes the key/value, in which case the previous snapshot is
// retained and the failure metric fires.
func (s *Span) SetBaggageItem(key, value string) *Span {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rm := s.tracer.baggageRestrictions; rm != nil {
		result, ok, truncated := rm.Apply(s.operationName, key, value)
		if !ok {
			s.tracer.metrics.BaggageUpdateFailure.Inc(1)
			return s
		}
		if truncated {
			s.tracer.metrics.BaggageTruncate.Inc(1)
		}
		s.context = s.context.WithBaggageItem(key, result)
		s.tracer.metrics.BaggageUpdateSuccess.Inc(1)
		return s
	}

	s.context = s.context.WithBaggageItem(key, value)
	s.tracer.metrics.BaggageUpdateSuccess.Inc(1)
	return s
}

// Finish closes the span using the current time and hands it to the
// reporter if sampled. Unsampled spans are never handed to the reporter.
func (s *Span) Finish() {
	s.FinishWithOptions(s.tracer.clock.CurrentTimeMicros())
}

// FinishWithOptions closes the span with a caller-supplied finish
// timestamp (microseconds); if the span used a nanosecond start tick
// (clock lacks microsecond accuracy), duration is instead computed from
// the monotonic delta.
func (s *Span) FinishWithOptions(finishMicros int64) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	if s.useNanoDelta {
		delta := s.tracer.clock.CurrentNanoTicks() - s.startNanos
		s.durationMicro = delta / int64(time.Microsecond)
	} else {
		s.durationMicro = finishMicros - s.startMicros
	}
	sampled := s.context.IsSampled()
	s.mu.Unlock()

	s.tracer.metrics.SpansFinished.Inc(1)
	if sampled {
		s.tracer.reportSpan(s)
	}
}

// StartTimeMicros returns the span's start time in wall-clock microseconds.
func (s *Span) StartTimeMicros() int64 { return s.startMicros }

// DurationMicros returns the span's duration in microseconds; only valid
// after Finish.
func (s *Span) DurationMicros() int64 { return s.durationMicro }

// Tracer returns the owning Tracer.
func (s *Span) Tracer() *Tracer { return s.tracer }
