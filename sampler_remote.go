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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/atomic"

	"github.com/jaegertracing/jaeger-go-core/internal/log"
)

// SamplingStrategyFetcher retrieves the raw JSON strategy response for a
// service from a sampling strategy endpoint. The default implementation is
// httpSamplingStrategyFetcher; tests supply a stub.
type SamplingStrategyFetcher interface {
	Fetch(serviceName string) ([]byte, error)
}

type httpSamplingStrategyFetcher struct {
	serverURL string
	client    *http.Client
}

// NewHTTPSamplingStrategyFetcher targets a Jaeger agent's HTTP sampling
// endpoint at serverURL (e.g. "http://localhost:5778/sampling").
func NewHTTPSamplingStrategyFetcher(serverURL string) SamplingStrategyFetcher {
	return &httpSamplingStrategyFetcher{
		serverURL: serverURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *httpSamplingStrategyFetcher) Fetch(serviceName string) ([]byte, error) {
	u := f.serverURL + "?service=" + url.QueryEscape(serviceName)
	resp, err := f.client.Get(u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jaeger: sampling strategy endpoint returned %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

// samplingStrategyResponse mirrors the JSON contract of the sampling
// strategy endpoint.
type samplingStrategyResponse struct {
	StrategyType          string                       `json:"strategyType"`
	ProbabilisticSampling  *probabilisticSamplingJSON   `json:"probabilisticSampling,omitempty"`
	RateLimitingSampling   *rateLimitingSamplingJSON    `json:"rateLimitingSampling,omitempty"`
	OperationSampling      *operationSamplingJSON       `json:"operationSampling,omitempty"`
}

type probabilisticSamplingJSON struct {
	SamplingRate float64 `json:"samplingRate"`
}

type rateLimitingSamplingJSON struct {
	MaxTracesPerSecond float64 `json:"maxTracesPerSecond"`
}

type operationSamplingJSON struct {
	DefaultSamplingProbability       float64                    `json:"defaultSamplingProbability"`
	DefaultLowerBoundTracesPerSecond float64                    `json:"defaultLowerBoundTracesPerSecond"`
	PerOperationStrategies           []perOperationStrategyJSON `json:"perOperationStrategies"`
}

type perOperationStrategyJSON struct {
	Operation             string                     `json:"operation"`
	ProbabilisticSampling probabilisticSamplingJSON `json:"probabilisticSampling"`
}

// RemoteSampler wraps an inner sampler and periodically refreshes it from
// a SamplingStrategyFetcher. Before the first successful refresh, Sample
// delegates to the initial probabilistic sampler supplied at construction.
type RemoteSampler struct {
	serviceName           string
	fetcher               SamplingStrategyFetcher
	pollingInterval       time.Duration
	maxOperations         int
	inner                 *atomicSamplerBox
	metrics               *Metrics
	logger                log.Logger
	closeCh               chan struct{}
	doneCh                chan struct{}
	lastErr               atomic.Value
}

// strategyErrorHolder boxes a *SamplingStrategyError so it can sit inside
// atomic.Value, which requires every Store to carry the same concrete type.
type strategyErrorHolder struct{ err *SamplingStrategyError }

// RemoteSamplerOptions configures NewRemoteSampler; zero-value fields take
// defaults: PollingInterval 60s, MaxOperations 2000, no-op Metrics and
// Logger. InitialRate is used as given.
type RemoteSamplerOptions struct {
	ServiceName     string
	Fetcher         SamplingStrategyFetcher
	PollingInterval time.Duration
	MaxOperations   int
	InitialRate     float64
	Metrics         *Metrics
	Logger          log.Logger
}

// NewRemoteSampler starts the background polling task immediately.
func NewRemoteSampler(opts RemoteSamplerOptions) *RemoteSampler {
	if opts.PollingInterval <= 0 {
		opts.PollingInterval = 60 * time.Second
	}
	if opts.MaxOperations <= 0 {
		opts.MaxOperations = 2000
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(NullMetricsFactory{})
	}
	if opts.Logger == nil {
		opts.Logger = log.NoOp()
	}
	rs := &RemoteSampler{
		serviceName:     opts.ServiceName,
		fetcher:         opts.Fetcher,
		pollingInterval: opts.PollingInterval,
		maxOperations:   opts.MaxOperations,
		inner:           newAtomicSamplerBox(NewProbabilisticSampler(opts.InitialRate)),
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		closeCh:         make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
	rs.lastErr.Store(strategyErrorHolder{})
	go rs.pollLoop()
	return rs
}

// LastError returns the most recent SamplingStrategyError from refresh, or
// nil if the last refresh (or the first, if none has run yet) succeeded.
func (rs *RemoteSampler) LastError() error {
	if h, ok := rs.lastErr.Load().(strategyErrorHolder); ok && h.err != nil {
		return h.err
	}
	return nil
}

func (rs *RemoteSampler) setLastError(err *SamplingStrategyError) {
	rs.lastErr.Store(strategyErrorHolder{err: err})
}

func (rs *RemoteSampler) Sample(operationName string, traceIDLow uint64) SamplingStatus {
	return rs.inner.load().Sample(operationName, traceIDLow)
}

// Close stops the polling task and closes the inner sampler.
func (rs *RemoteSampler) Close() {
	close(rs.closeCh)
	<-rs.doneCh
	rs.inner.load().Close()
}

func (rs *RemoteSampler) Equal(Sampler) bool { return false }

func (rs *RemoteSampler) pollLoop() {
	defer close(rs.doneCh)
	ticker := time.NewTicker(rs.pollingInterval)
	defer ticker.Stop()
	rs.refresh()
	for {
		select {
		case <-rs.closeCh:
			return
		case <-ticker.C:
			rs.refresh()
		}
	}
}

func (rs *RemoteSampler) refresh() {
	body, err := rs.fetcher.Fetch(rs.serviceName)
	if err != nil {
		rs.metrics.SamplerQueryFailure.Inc(1)
		sErr := &SamplingStrategyError{Phase: "query", Cause: err}
		rs.setLastError(sErr)
		rs.logger.Error("jaeger: failed to fetch sampling strategy", log.Err(sErr))
		return
	}
	rs.metrics.SamplerRetrieved.Inc(1)

	var resp samplingStrategyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		rs.metrics.SamplerParsingFailure.Inc(1)
		sErr := &SamplingStrategyError{Phase: "parsing", Cause: err}
		rs.setLastError(sErr)
		rs.logger.Error("jaeger: failed to parse sampling strategy", log.Err(sErr))
		return
	}

	next, err := samplerFromStrategy(resp, rs.maxOperations)
	if err != nil {
		rs.metrics.SamplerParsingFailure.Inc(1)
		sErr := &SamplingStrategyError{Phase: "parsing", Cause: err}
		rs.setLastError(sErr)
		rs.logger.Error("jaeger: failed to build sampler from strategy", log.Err(sErr))
		return
	}

	rs.setLastError(nil)
	current := rs.inner.load()
	if !current.Equal(next) {
		rs.inner.store(next)
		rs.metrics.SamplerUpdated.Inc(1)
	}
}

func samplerFromStrategy(resp samplingStrategyResponse, maxOperations int) (Sampler, error) {
	switch resp.StrategyType {
	case "PROBABILISTIC":
		if resp.ProbabilisticSampling == nil {
			return nil, fmt.Errorf("jaeger: missing probabilisticSampling field")
		}
		return NewProbabilisticSampler(resp.ProbabilisticSampling.SamplingRate), nil
	case "RATE_LIMITING":
		if resp.RateLimitingSampling == nil {
			return nil, fmt.Errorf("jaeger: missing rateLimitingSampling field")
		}
		return NewRateLimitingSampler(resp.RateLimitingSampling.MaxTracesPerSecond), nil
	default:
		if resp.OperationSampling != nil {
			op := resp.OperationSampling
			sampler := NewPerOperationSampler(maxOperations, op.DefaultLowerBoundTracesPerSecond, op.DefaultSamplingProbability)
			strategies := make([]PerOperationStrategy, 0, len(op.PerOperationStrategies))
			for _, s := range op.PerOperationStrategies {
				strategies = append(strategies, PerOperationStrategy{
					Operation:    s.Operation,
					SamplingRate: s.ProbabilisticSampling.SamplingRate,
				})
			}
			sampler.Update(op.DefaultLowerBoundTracesPerSecond, op.DefaultSamplingProbability, strategies)
			return sampler, nil
		}
		return nil, fmt.Errorf("jaeger: unrecognized strategy type %q", resp.StrategyType)
	}
}
