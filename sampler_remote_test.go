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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStrategyFetcher is the test double for SamplingStrategyFetcher: it
// hands back a queued body/error pair per call, recording how many times
// it was invoked.
type stubStrategyFetcher struct {
	mu      sync.Mutex
	bodies  [][]byte
	errs    []error
	calls   int
	fetched chan struct{}
}

func (f *stubStrategyFetcher) Fetch(string) ([]byte, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	var body []byte
	var err error
	if i < len(f.bodies) {
		body = f.bodies[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	f.mu.Unlock()
	if f.fetched != nil {
		f.fetched <- struct{}{}
	}
	return body, err
}

const probabilisticBody = `{"strategyType":"PROBABILISTIC","probabilisticSampling":{"samplingRate":0.5}}`

func newRemoteSamplerForTest(fetcher SamplingStrategyFetcher, factory *InMemoryMetricsFactory) *RemoteSampler {
	return NewRemoteSampler(RemoteSamplerOptions{
		ServiceName:     "svc",
		Fetcher:         fetcher,
		PollingInterval: time.Hour, // refresh is driven manually via the first immediate fetch
		Metrics:         NewMetrics(factory),
	})
}

func TestRemoteSamplerAppliesFetchedStrategy(t *testing.T) {
	fetched := make(chan struct{}, 1)
	fetcher := &stubStrategyFetcher{bodies: [][]byte{[]byte(probabilisticBody)}, fetched: fetched}
	factory := NewInMemoryMetricsFactory()
	rs := newRemoteSamplerForTest(fetcher, factory)
	defer rs.Close()

	<-fetched
	require.Eventually(t, func() bool {
		return rs.inner.load().Equal(NewProbabilisticSampler(0.5))
	}, time.Second, time.Millisecond)

	assert.NoError(t, rs.LastError())
	assert.Equal(t, int64(1), factory.CounterValue("sampler", map[string]string{"state": "retrieved"}))
	assert.Equal(t, int64(1), factory.CounterValue("sampler", map[string]string{"state": "updated"}))
}

func TestRemoteSamplerFetchFailureRecordsSamplingStrategyError(t *testing.T) {
	fetched := make(chan struct{}, 1)
	cause := errors.New("connection refused")
	fetcher := &stubStrategyFetcher{errs: []error{cause}, fetched: fetched}
	factory := NewInMemoryMetricsFactory()
	rs := newRemoteSamplerForTest(fetcher, factory)
	defer rs.Close()

	<-fetched
	require.Eventually(t, func() bool {
		return rs.LastError() != nil
	}, time.Second, time.Millisecond)

	var sErr *SamplingStrategyError
	require.ErrorAs(t, rs.LastError(), &sErr)
	assert.Equal(t, "query", sErr.Phase)
	assert.Equal(t, cause, sErr.Unwrap())
	assert.Equal(t, int64(1), factory.CounterValue("sampler", map[string]string{"state": "failure", "phase": "query"}))
}

func TestRemoteSamplerParseFailureRecordsSamplingStrategyError(t *testing.T) {
	fetched := make(chan struct{}, 1)
	fetcher := &stubStrategyFetcher{bodies: [][]byte{[]byte("not json")}, fetched: fetched}
	factory := NewInMemoryMetricsFactory()
	rs := newRemoteSamplerForTest(fetcher, factory)
	defer rs.Close()

	<-fetched
	require.Eventually(t, func() bool {
		return rs.LastError() != nil
	}, time.Second, time.Millisecond)

	var sErr *SamplingStrategyError
	require.ErrorAs(t, rs.LastError(), &sErr)
	assert.Equal(t, "parsing", sErr.Phase)
	assert.Equal(t, int64(1), factory.CounterValue("sampler", map[string]string{"state": "failure", "phase": "parsing"}))
}

func TestRemoteSamplerUnrecognizedStrategyTypeRecordsSamplingStrategyError(t *testing.T) {
	fetched := make(chan struct{}, 1)
	fetcher := &stubStrategyFetcher{bodies: [][]byte{[]byte(`{"strategyType":"BOGUS"}`)}, fetched: fetched}
	factory := NewInMemoryMetricsFactory()
	rs := newRemoteSamplerForTest(fetcher, factory)
	defer rs.Close()

	<-fetched
	require.Eventually(t, func() bool {
		return rs.LastError() != nil
	}, time.Second, time.Millisecond)

	var sErr *SamplingStrategyError
	require.ErrorAs(t, rs.LastError(), &sErr)
	assert.Equal(t, "parsing", sErr.Phase)
}

func TestRemoteSamplerSkipsUpdateWhenStrategyUnchanged(t *testing.T) {
	fetched := make(chan struct{}, 2)
	fetcher := &stubStrategyFetcher{
		bodies:  [][]byte{[]byte(probabilisticBody), []byte(probabilisticBody)},
		fetched: fetched,
	}
	factory := NewInMemoryMetricsFactory()
	rs := NewRemoteSampler(RemoteSamplerOptions{
		ServiceName:     "svc",
		Fetcher:         fetcher,
		PollingInterval: 10 * time.Millisecond,
		Metrics:         NewMetrics(factory),
	})
	defer rs.Close()

	<-fetched
	<-fetched
	require.Eventually(t, func() bool {
		return factory.CounterValue("sampler", map[string]string{"state": "retrieved"}) >= 2
	}, time.Second, time.Millisecond)

	assert.Equal(t, int64(1), factory.CounterValue("sampler", map[string]string{"state": "updated"}))
}

func TestRemoteSamplerSampleDelegatesToInitialSamplerBeforeFirstRefresh(t *testing.T) {
	fetcher := &stubStrategyFetcher{}
	rs := NewRemoteSampler(RemoteSamplerOptions{
		ServiceName:     "svc",
		Fetcher:         fetcher,
		PollingInterval: time.Hour,
		InitialRate:     1.0,
	})
	defer rs.Close()

	status := rs.Sample("op", 0)
	assert.True(t, status.Sampled)
}

func TestRemoteSamplerEqualAlwaysFalse(t *testing.T) {
	rs := NewRemoteSampler(RemoteSamplerOptions{ServiceName: "svc", Fetcher: &stubStrategyFetcher{}, PollingInterval: time.Hour})
	defer rs.Close()
	assert.False(t, rs.Equal(rs))
	assert.False(t, rs.Equal(&ConstSampler{Decision: true}))
}
