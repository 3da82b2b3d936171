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

package thriftgen

import (
	"context"
	"testing"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/stretchr/testify/require"
)

func TestBatchWriteProducesNonEmptyBuffer(t *testing.T) {
	batch := &Batch{
		Process: &Process{
			ServiceName: "svc",
			Tags:        []*Tag{{Key: "jaeger.version", VType: TagTypeString, VStr: "Go-1.0"}},
		},
		Spans: []*Span{
			{
				TraceIdLow:    1,
				SpanId:        2,
				OperationName: "op",
				Tags: []*Tag{
					{Key: "http.status_code", VType: TagTypeLong, VLong: 200},
					{Key: "error", VType: TagTypeBool, VBool: true},
					{Key: "latency", VType: TagTypeDouble, VDouble: 1.5},
				},
				Logs: []*Log{
					{Timestamp: 100, Fields: []*Tag{{Key: "event", VType: TagTypeString, VStr: "cache-miss"}}},
				},
				References: []*SpanRef{{RefType: 0, TraceIdLow: 1, SpanId: 9}},
			},
		},
	}

	buf := thrift.NewTMemoryBuffer()
	proto := thrift.NewTCompactProtocolConf(buf, nil)

	require.NoError(t, batch.Write(context.Background(), proto))
	require.NotZero(t, buf.Len())
}

func TestEmptyBatchStillWrites(t *testing.T) {
	batch := &Batch{Process: &Process{ServiceName: "svc"}}
	buf := thrift.NewTMemoryBuffer()
	proto := thrift.NewTCompactProtocolConf(buf, nil)
	require.NoError(t, batch.Write(context.Background(), proto))
}
