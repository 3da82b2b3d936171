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

// Package thriftgen holds the hand-maintained subset of the
// jaegertracing/jaeger agent Thrift IDL (Batch/Span/Tag/Log/Process) that
// the UDP sender needs to serialize, matching the real jaegertracing/jaeger
// agent.thrift/jaeger.thrift schemas. It is not generated by the thrift
// compiler; it is a minimal, hand-written encoder over
// github.com/apache/thrift's compact protocol, covering exactly the fields
// this client emits.
package thriftgen

import (
	"context"

	"github.com/apache/thrift/lib/go/thrift"
)

// TagType mirrors jaeger.thrift's TagType enum.
type TagType int32

const (
	TagTypeString TagType = 0
	TagTypeDouble TagType = 1
	TagTypeBool   TagType = 2
	TagTypeLong   TagType = 3
	TagTypeBinary TagType = 4
)

// Tag mirrors jaeger.thrift's Tag struct.
type Tag struct {
	Key    string
	VType  TagType
	VStr   string
	VDouble float64
	VBool  bool
	VLong  int64
}

func (t *Tag) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "Tag"); err != nil {
		return err
	}
	if err := writeStringField(ctx, p, 1, t.Key); err != nil {
		return err
	}
	if err := writeI32Field(ctx, p, 2, int32(t.VType)); err != nil {
		return err
	}
	switch t.VType {
	case TagTypeString:
		if err := writeStringField(ctx, p, 3, t.VStr); err != nil {
			return err
		}
	case TagTypeDouble:
		if err := writeDoubleField(ctx, p, 4, t.VDouble); err != nil {
			return err
		}
	case TagTypeBool:
		if err := writeBoolField(ctx, p, 5, t.VBool); err != nil {
			return err
		}
	case TagTypeLong:
		if err := writeI64Field(ctx, p, 6, t.VLong); err != nil {
			return err
		}
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

// Log mirrors jaeger.thrift's Log struct: a timestamp plus a list of Tag.
type Log struct {
	Timestamp int64
	Fields    []*Tag
}

func (l *Log) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "Log"); err != nil {
		return err
	}
	if err := writeI64Field(ctx, p, 1, l.Timestamp); err != nil {
		return err
	}
	if err := p.WriteFieldBegin(ctx, "fields", thrift.LIST, 2); err != nil {
		return err
	}
	if err := p.WriteListBegin(ctx, thrift.STRUCT, len(l.Fields)); err != nil {
		return err
	}
	for _, f := range l.Fields {
		if err := f.Write(ctx, p); err != nil {
			return err
		}
	}
	if err := p.WriteListEnd(ctx); err != nil {
		return err
	}
	if err := p.WriteFieldEnd(ctx); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

// SpanRef mirrors jaeger.thrift's SpanRef struct.
type SpanRef struct {
	RefType     int32 // 0 = CHILD_OF, 1 = FOLLOWS_FROM
	TraceIdLow  int64
	TraceIdHigh int64
	SpanId      int64
}

func (r *SpanRef) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "SpanRef"); err != nil {
		return err
	}
	if err := writeI32Field(ctx, p, 1, r.RefType); err != nil {
		return err
	}
	if err := writeI64Field(ctx, p, 2, r.TraceIdLow); err != nil {
		return err
	}
	if err := writeI64Field(ctx, p, 3, r.TraceIdHigh); err != nil {
		return err
	}
	if err := writeI64Field(ctx, p, 4, r.SpanId); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

// Span mirrors jaeger.thrift's Span struct, trimmed to the fields this
// client populates.
type Span struct {
	TraceIdLow    int64
	TraceIdHigh   int64
	SpanId        int64
	ParentSpanId  int64
	OperationName string
	References    []*SpanRef
	Flags         int32
	StartTime     int64
	Duration      int64
	Tags          []*Tag
	Logs          []*Log
}

func (s *Span) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "Span"); err != nil {
		return err
	}
	fields := []struct {
		id int16
		fn func() error
	}{
		{1, func() error { return writeI64Field(ctx, p, 1, s.TraceIdLow) }},
		{2, func() error { return writeI64Field(ctx, p, 2, s.TraceIdHigh) }},
		{3, func() error { return writeI64Field(ctx, p, 3, s.SpanId) }},
		{4, func() error { return writeI64Field(ctx, p, 4, s.ParentSpanId) }},
		{5, func() error { return writeStringField(ctx, p, 5, s.OperationName) }},
	}
	for _, f := range fields {
		if err := f.fn(); err != nil {
			return err
		}
	}
	if err := writeStructList(ctx, p, "references", 6, len(s.References), func(i int) thriftWriter { return s.References[i] }); err != nil {
		return err
	}
	if err := writeI32Field(ctx, p, 7, s.Flags); err != nil {
		return err
	}
	if err := writeI64Field(ctx, p, 8, s.StartTime); err != nil {
		return err
	}
	if err := writeI64Field(ctx, p, 9, s.Duration); err != nil {
		return err
	}
	if err := writeStructList(ctx, p, "tags", 10, len(s.Tags), func(i int) thriftWriter { return s.Tags[i] }); err != nil {
		return err
	}
	if err := writeStructList(ctx, p, "logs", 11, len(s.Logs), func(i int) thriftWriter { return s.Logs[i] }); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

// Process mirrors jaeger.thrift's Process struct: a service name plus
// process-level tags.
type Process struct {
	ServiceName string
	Tags        []*Tag
}

func (pr *Process) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "Process"); err != nil {
		return err
	}
	if err := writeStringField(ctx, p, 1, pr.ServiceName); err != nil {
		return err
	}
	if err := writeStructList(ctx, p, "tags", 2, len(pr.Tags), func(i int) thriftWriter { return pr.Tags[i] }); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

// Batch mirrors jaeger.thrift's Batch struct: the UDP wire unit.
type Batch struct {
	Process *Process
	Spans   []*Span
}

func (b *Batch) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteStructBegin(ctx, "Batch"); err != nil {
		return err
	}
	if err := p.WriteFieldBegin(ctx, "process", thrift.STRUCT, 1); err != nil {
		return err
	}
	if err := b.Process.Write(ctx, p); err != nil {
		return err
	}
	if err := p.WriteFieldEnd(ctx); err != nil {
		return err
	}
	if err := writeStructList(ctx, p, "spans", 2, len(b.Spans), func(i int) thriftWriter { return b.Spans[i] }); err != nil {
		return err
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

type thriftWriter interface {
	Write(ctx context.Context, p thrift.TProtocol) error
}

func writeStructList(ctx context.Context, p thrift.TProtocol, name string, id int16, n int, at func(int) thriftWriter) error {
	if err := p.WriteFieldBegin(ctx, name, thrift.LIST, id); err != nil {
		return err
	}
	if err := p.WriteListBegin(ctx, thrift.STRUCT, n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := at(i).Write(ctx, p); err != nil {
			return err
		}
	}
	if err := p.WriteListEnd(ctx); err != nil {
		return err
	}
	return p.WriteFieldEnd(ctx)
}

func writeStringField(ctx context.Context, p thrift.TProtocol, id int16, v string) error {
	if err := p.WriteFieldBegin(ctx, "", thrift.STRING, id); err != nil {
		return err
	}
	if err := p.WriteString(ctx, v); err != nil {
		return err
	}
	return p.WriteFieldEnd(ctx)
}

func writeI32Field(ctx context.Context, p thrift.TProtocol, id int16, v int32) error {
	if err := p.WriteFieldBegin(ctx, "", thrift.I32, id); err != nil {
		return err
	}
	if err := p.WriteI32(ctx, v); err != nil {
		return err
	}
	return p.WriteFieldEnd(ctx)
}

func writeI64Field(ctx context.Context, p thrift.TProtocol, id int16, v int64) error {
	if err := p.WriteFieldBegin(ctx, "", thrift.I64, id); err != nil {
		return err
	}
	if err := p.WriteI64(ctx, v); err != nil {
		return err
	}
	return p.WriteFieldEnd(ctx)
}

func writeDoubleField(ctx context.Context, p thrift.TProtocol, id int16, v float64) error {
	if err := p.WriteFieldBegin(ctx, "", thrift.DOUBLE, id); err != nil {
		return err
	}
	if err := p.WriteDouble(ctx, v); err != nil {
		return err
	}
	return p.WriteFieldEnd(ctx)
}

func writeBoolField(ctx context.Context, p thrift.TProtocol, id int16, v bool) error {
	if err := p.WriteFieldBegin(ctx, "", thrift.BOOL, id); err != nil {
		return err
	}
	if err := p.WriteBool(ctx, v); err != nil {
		return err
	}
	return p.WriteFieldEnd(ctx)
}
