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

// Package udp is a concrete jaeger.Sender: it batches spans as
// Thrift-encoded jaeger.thrift Batch messages and hands them to the agent
// over UDP. It is a swappable default, not a requirement of the core — the
// core consumes Sender purely as an interface.
package udp

import (
	"context"
	"net"
	"sync"

	"github.com/apache/thrift/lib/go/thrift"
	jaeger "github.com/jaegertracing/jaeger-go-core"
	"github.com/jaegertracing/jaeger-go-core/internal/thriftgen"
)

// DefaultAgentHost and DefaultAgentPort match the real agent's UDP
// compact-Thrift endpoint.
const (
	DefaultAgentHost = "localhost"
	DefaultAgentPort = 6831
	// MaxPacketSize is the default UDP datagram ceiling; a Batch that
	// would exceed this triggers an automatic Flush.
	MaxPacketSize = 65000
)

// Sender implements jaeger.Sender over UDP, batching Thrift-encoded spans
// per agent datagram.
type Sender struct {
	mu            sync.Mutex
	conn          *net.UDPConn
	maxPacketSize int
	process       *thriftgen.Process
	buffer        []*thriftgen.Span
	bufferedSize  int
}

// New dials the agent's UDP endpoint. maxPacketSize of 0 uses
// MaxPacketSize.
func New(host string, port int, maxPacketSize int, serviceName string, processTags []jaeger.Tag) (*Sender, error) {
	if host == "" {
		host = DefaultAgentHost
	}
	if port == 0 {
		port = DefaultAgentPort
	}
	if maxPacketSize <= 0 {
		maxPacketSize = MaxPacketSize
	}
	addr, err := net.ResolveUDPAddr("udp", host+":"+itoa(port))
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, err
	}
	return &Sender{
		conn:          conn,
		maxPacketSize: maxPacketSize,
		process:       &thriftgen.Process{ServiceName: serviceName, Tags: toThriftTags(processTags)},
	}, nil
}

// Append buffers one span, converting it to the wire representation, and
// auto-flushes if adding it would exceed the packet size budget. Returns
// the number of spans flushed as a side effect (0 if merely buffered).
func (s *Sender) Append(span *jaeger.Span) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wire := toThriftSpan(span)
	size := estimateSize(wire)

	if len(s.buffer) > 0 && s.bufferedSize+size > s.maxPacketSize {
		n, err := s.flushLocked()
		if err != nil {
			return 0, err
		}
		s.buffer = append(s.buffer, wire)
		s.bufferedSize = size
		return n, nil
	}

	s.buffer = append(s.buffer, wire)
	s.bufferedSize += size
	if s.bufferedSize > s.maxPacketSize {
		return s.flushLocked()
	}
	return 0, nil
}

// Flush encodes the buffered batch as jaeger.thrift and sends it as one
// UDP datagram.
func (s *Sender) Flush() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Sender) flushLocked() (int, error) {
	if len(s.buffer) == 0 {
		return 0, nil
	}
	n := len(s.buffer)
	batch := &thriftgen.Batch{Process: s.process, Spans: s.buffer}

	buf := thrift.NewTMemoryBuffer()
	proto := thrift.NewTCompactProtocolConf(buf, nil)
	ctx := context.Background()
	if err := batch.Write(ctx, proto); err != nil {
		s.buffer = nil
		s.bufferedSize = 0
		return 0, &jaeger.SenderError{Dropped: n, Cause: err}
	}

	if _, err := s.conn.Write(buf.Bytes()); err != nil {
		s.buffer = nil
		s.bufferedSize = 0
		return 0, &jaeger.SenderError{Dropped: n, Cause: err}
	}

	s.buffer = nil
	s.bufferedSize = 0
	return n, nil
}

// Close flushes any remaining spans and releases the UDP socket.
func (s *Sender) Close() (int, error) {
	n, err := s.Flush()
	if cerr := s.conn.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return n, err
}

func estimateSize(span *thriftgen.Span) int {
	size := len(span.OperationName) + 64
	for _, t := range span.Tags {
		size += len(t.Key) + len(t.VStr) + 16
	}
	for _, l := range span.Logs {
		size += 16
		for _, f := range l.Fields {
			size += len(f.Key) + len(f.VStr) + 16
		}
	}
	return size
}

func toThriftTags(tags []jaeger.Tag) []*thriftgen.Tag {
	out := make([]*thriftgen.Tag, 0, len(tags))
	for _, t := range tags {
		out = append(out, toThriftTag(t))
	}
	return out
}

func toThriftTag(t jaeger.Tag) *thriftgen.Tag {
	switch t.Kind {
	case jaeger.TagInt64:
		return &thriftgen.Tag{Key: t.Key, VType: thriftgen.TagTypeLong, VLong: t.VInt64}
	case jaeger.TagUint64:
		return &thriftgen.Tag{Key: t.Key, VType: thriftgen.TagTypeLong, VLong: int64(t.VUint64)}
	case jaeger.TagFloat64:
		return &thriftgen.Tag{Key: t.Key, VType: thriftgen.TagTypeDouble, VDouble: t.VFloat64}
	case jaeger.TagBool:
		return &thriftgen.Tag{Key: t.Key, VType: thriftgen.TagTypeBool, VBool: t.VBool}
	default:
		return &thriftgen.Tag{Key: t.Key, VType: thriftgen.TagTypeString, VStr: t.VString}
	}
}

func toThriftSpan(span *jaeger.Span) *thriftgen.Span {
	ctx := span.Context()
	refs := make([]*thriftgen.SpanRef, 0, len(span.References()))
	for _, r := range span.References() {
		refType := int32(0)
		if r.Kind == jaeger.FollowsFrom {
			refType = 1
		}
		refs = append(refs, &thriftgen.SpanRef{
			RefType:     refType,
			TraceIdLow:  int64(r.Context.TraceID.Low),
			TraceIdHigh: int64(r.Context.TraceID.High),
			SpanId:      int64(r.Context.SpanID),
		})
	}
	logs := make([]*thriftgen.Log, 0, len(span.Logs()))
	for _, l := range span.Logs() {
		fields := make([]*thriftgen.Tag, 0, len(l.Fields))
		for _, f := range l.Fields {
			fields = append(fields, toThriftTag(f))
		}
		logs = append(logs, &thriftgen.Log{Timestamp: l.TimestampMicros, Fields: fields})
	}
	return &thriftgen.Span{
		TraceIdLow:    int64(ctx.TraceID.Low),
		TraceIdHigh:   int64(ctx.TraceID.High),
		SpanId:        int64(ctx.SpanID),
		ParentSpanId:  int64(ctx.ParentSpanID),
		OperationName: span.OperationName(),
		References:    refs,
		Flags:         int32(ctx.Flags),
		StartTime:     span.StartTimeMicros(),
		Duration:      span.DurationMicros(),
		Tags:          toThriftTags(span.Tags()),
		Logs:          logs,
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
