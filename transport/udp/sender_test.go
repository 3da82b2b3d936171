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

package udp

import (
	"net"
	"strconv"
	"testing"
	"time"

	jaeger "github.com/jaegertracing/jaeger-go-core"
	"github.com/stretchr/testify/require"
)

func listenUDP(t *testing.T) (*net.UDPConn, int) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	return conn, conn.LocalAddr().(*net.UDPAddr).Port
}

func TestSenderAppendAndFlush(t *testing.T) {
	listener, port := listenUDP(t)
	defer listener.Close()

	sender, err := New("127.0.0.1", port, 0, "svc", nil)
	require.NoError(t, err)
	defer sender.Close()

	tracer, err := jaeger.NewTracer(jaeger.TracerOptions{
		ServiceName: "svc",
		Reporter:    jaeger.NoopReporter{},
		Sampler:     &jaeger.ConstSampler{Decision: true},
	})
	require.NoError(t, err)

	span := tracer.BuildSpan("op").Start()
	span.Finish()

	n, err := sender.Append(span)
	require.NoError(t, err)
	require.Equal(t, 0, n, "single span should be buffered, not auto-flushed")

	n, err = sender.Flush()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	buf := make([]byte, 65536)
	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	size, _, err := listener.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Greater(t, size, 0)
}

func TestSenderAutoFlushesWhenPacketSizeExceeded(t *testing.T) {
	listener, port := listenUDP(t)
	defer listener.Close()

	sender, err := New("127.0.0.1", port, 200, "svc", nil)
	require.NoError(t, err)
	defer sender.Close()

	tracer, err := jaeger.NewTracer(jaeger.TracerOptions{
		ServiceName: "svc",
		Reporter:    jaeger.NoopReporter{},
		Sampler:     &jaeger.ConstSampler{Decision: true},
	})
	require.NoError(t, err)

	flushed := 0
	for i := 0; i < 10; i++ {
		span := tracer.BuildSpan("operation-" + strconv.Itoa(i)).Start()
		span.Finish()
		n, err := sender.Append(span)
		require.NoError(t, err)
		flushed += n
	}

	require.Greater(t, flushed, 0, "small packet budget should have triggered at least one auto-flush")
}
