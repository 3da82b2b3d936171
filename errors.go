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

	"github.com/pkg/errors"
)

// Sentinel error kinds. Only programmer errors (unsupported
// carrier format, malformed carrier, empty service name) are ever surfaced
// across the application-visible API; sender and sampling-strategy errors
// stay internal to the reporter/sampler.
var (
	// ErrMalformedState is returned by an Extractor when the state header is
	// present but cannot be parsed.
	ErrMalformedState = errors.New("jaeger: malformed trace context header")
	// ErrEmptyState is returned by an Extractor when the state header is
	// present but empty.
	ErrEmptyState = errors.New("jaeger: empty trace context header")
	// ErrUnsupportedFormat is returned by Inject/Extract when no codec is
	// registered for the requested carrier format.
	ErrUnsupportedFormat = errors.New("jaeger: unsupported carrier format")
	// ErrInvalidTraceID is returned when a trace id string fails to parse.
	ErrInvalidTraceID = errors.New("jaeger: invalid trace id")
	// ErrInvalidSpanID is returned when a span id string fails to parse.
	ErrInvalidSpanID = errors.New("jaeger: invalid span id")
	// ErrEmptyServiceName is returned by the Tracer builder.
	ErrEmptyServiceName = errors.New("jaeger: service name must not be empty")
)

// SenderError is returned by a Sender when it could not hand spans off to
// the agent. Dropped reports how many spans were lost as a result; the
// reporter counts this but never surfaces it to the application.
type SenderError struct {
	Dropped int
	Cause   error
}

func (e *SenderError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("jaeger: sender dropped %d spans", e.Dropped)
	}
	return errors.Wrapf(e.Cause, "jaeger: sender dropped %d spans", e.Dropped).Error()
}

func (e *SenderError) Unwrap() error { return e.Cause }

// SamplingStrategyError records a RemoteSampler refresh failure: fetching,
// parsing, or building a sampler from the fetched strategy. The current
// inner sampler is retained regardless; RemoteSampler.LastError exposes
// the most recent one to callers that want to observe refresh health.
type SamplingStrategyError struct {
	Phase string // "query" or "parsing"
	Cause error
}

func (e *SamplingStrategyError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("jaeger: sampling strategy %s failed", e.Phase)
	}
	return errors.Wrapf(e.Cause, "jaeger: sampling strategy %s failed", e.Phase).Error()
}

func (e *SamplingStrategyError) Unwrap() error { return e.Cause }
