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

// Package log is a thin seam over go.uber.org/zap so the reporter and
// sampler packages can accept a Logger without importing zap directly in
// their public signatures.
package log

import "go.uber.org/zap"

// Field is a structured logging key/value; re-exported so callers don't
// need to import zap to build one.
type Field = zap.Field

// Err wraps an error as a structured field named "error".
func Err(err error) Field { return zap.Error(err) }

// Logger is the minimal structured-logging capability the core depends
// on.
type Logger interface {
	Error(msg string, fields ...Field)
	Info(msg string, fields ...Field)
}

type zapLogger struct {
	*zap.Logger
}

// NewZap wraps an existing *zap.Logger.
func NewZap(l *zap.Logger) Logger {
	return &zapLogger{l}
}

func (z *zapLogger) Error(msg string, fields ...Field) { z.Logger.Error(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...Field)  { z.Logger.Info(msg, fields...) }

type noopLogger struct{}

func (noopLogger) Error(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}

// NoOp returns a Logger that discards everything; the default of
// RemoteReporter and RemoteSampler.
func NoOp() Logger { return noopLogger{} }
