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
	"math"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// SamplingStatus is the result of one call to Sampler.Sample.
type SamplingStatus struct {
	Sampled bool
	Tags    []Tag
}

// Sampler decides whether a trace should be sampled.
type Sampler interface {
	Sample(operationName string, traceIDLow uint64) SamplingStatus
	Close()
	// Equal drives the "did the strategy actually change?" check that
	// avoids swapping in an equivalent sampler on every poll.
	Equal(other Sampler) bool
}

// ConstSampler always returns the same decision.
type ConstSampler struct {
	Decision bool
}

func (s *ConstSampler) Sample(string, uint64) SamplingStatus {
	return SamplingStatus{
		Sampled: s.Decision,
		Tags: []Tag{
			NewTag("sampler.type", "const"),
			NewTag("sampler.param", s.Decision),
		},
	}
}

func (s *ConstSampler) Close() {}

func (s *ConstSampler) Equal(other Sampler) bool {
	o, ok := other.(*ConstSampler)
	return ok && o.Decision == s.Decision
}

// ProbabilisticSampler samples iff the low 63 bits of traceIDLow are below
// threshold, where threshold = rate * 2^63 rounded to integer.
type ProbabilisticSampler struct {
	Rate      float64
	threshold uint64
}

// NewProbabilisticSampler clamps rate into [0, 1] and precomputes the
// threshold.
func NewProbabilisticSampler(rate float64) *ProbabilisticSampler {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	return &ProbabilisticSampler{
		Rate:      rate,
		threshold: uint64(rate * float64(math.MaxInt64)),
	}
}

func (s *ProbabilisticSampler) Sample(_ string, traceIDLow uint64) SamplingStatus {
	sampled := (traceIDLow & 0x7fffffffffffffff) < s.threshold
	return SamplingStatus{
		Sampled: sampled,
		Tags: []Tag{
			NewTag("sampler.type", "probabilistic"),
			NewTag("sampler.param", s.Rate),
		},
	}
}

func (s *ProbabilisticSampler) Close() {}

func (s *ProbabilisticSampler) Equal(other Sampler) bool {
	o, ok := other.(*ProbabilisticSampler)
	return ok && o.Rate == s.Rate
}

// RateLimitingSampler admits at most maxTracesPerSecond per second via a
// token bucket whose capacity is max(1, maxTracesPerSecond) and whose
// refill carries fractional credits sub-second.
type RateLimitingSampler struct {
	MaxTracesPerSecond float64
	limiter            *creditLimiter
}

func NewRateLimitingSampler(maxTracesPerSecond float64) *RateLimitingSampler {
	capacity := maxTracesPerSecond
	if capacity < 1 {
		capacity = 1
	}
	return &RateLimitingSampler{
		MaxTracesPerSecond: maxTracesPerSecond,
		limiter:            newCreditLimiter(maxTracesPerSecond, capacity, SystemClock{}),
	}
}

func (s *RateLimitingSampler) Sample(string, uint64) SamplingStatus {
	sampled := s.limiter.checkCredit(1.0)
	return SamplingStatus{
		Sampled: sampled,
		Tags: []Tag{
			NewTag("sampler.type", "ratelimiting"),
			NewTag("sampler.param", s.MaxTracesPerSecond),
		},
	}
}

func (s *RateLimitingSampler) Close() {}

func (s *RateLimitingSampler) Equal(other Sampler) bool {
	o, ok := other.(*RateLimitingSampler)
	return ok && o.MaxTracesPerSecond == s.MaxTracesPerSecond
}

// creditLimiter is a fractional-credit token bucket: credits accrue
// continuously at creditsPerSecond and are spent in units, never going
// negative and never exceeding maxBalance.
type creditLimiter struct {
	mu               sync.Mutex
	creditsPerSecond float64
	maxBalance       float64
	balance          float64
	lastTick         int64
	clock            Clock
}

func newCreditLimiter(creditsPerSecond, maxBalance float64, clock Clock) *creditLimiter {
	return &creditLimiter{
		creditsPerSecond: creditsPerSecond,
		maxBalance:       maxBalance,
		balance:          maxBalance,
		lastTick:         clock.CurrentTimeMicros(),
		clock:            clock,
	}
}

func (l *creditLimiter) checkCredit(itemCost float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.CurrentTimeMicros()
	elapsedSeconds := float64(now-l.lastTick) / float64(time.Second/time.Microsecond)
	l.lastTick = now
	l.balance += elapsedSeconds * l.creditsPerSecond
	if l.balance > l.maxBalance {
		l.balance = l.maxBalance
	}
	if l.balance < itemCost {
		return false
	}
	l.balance -= itemCost
	return true
}

// GuaranteedThroughputProbabilisticSampler composes a ProbabilisticSampler
// and a RateLimitingSampler, sampling iff either votes yes; when the
// probabilistic vote is yes its tags are emitted, else the rate limiter's.
type GuaranteedThroughputProbabilisticSampler struct {
	probabilistic *ProbabilisticSampler
	lowerBound    *RateLimitingSampler
}

func NewGuaranteedThroughputProbabilisticSampler(lowerBound, samplingRate float64) *GuaranteedThroughputProbabilisticSampler {
	return &GuaranteedThroughputProbabilisticSampler{
		probabilistic: NewProbabilisticSampler(samplingRate),
		lowerBound:    NewRateLimitingSampler(lowerBound),
	}
}

func (s *GuaranteedThroughputProbabilisticSampler) Sample(op string, traceIDLow uint64) SamplingStatus {
	probStatus := s.probabilistic.Sample(op, traceIDLow)
	if probStatus.Sampled {
		s.lowerBound.Sample(op, traceIDLow)
		return probStatus
	}
	lowerStatus := s.lowerBound.Sample(op, traceIDLow)
	lowerStatus.Tags = []Tag{
		NewTag("sampler.type", "lowerbound"),
		NewTag("sampler.param", s.lowerBound.MaxTracesPerSecond),
	}
	return lowerStatus
}

func (s *GuaranteedThroughputProbabilisticSampler) Close() {}

func (s *GuaranteedThroughputProbabilisticSampler) Equal(other Sampler) bool {
	o, ok := other.(*GuaranteedThroughputProbabilisticSampler)
	return ok && o.probabilistic.Equal(s.probabilistic) && o.lowerBound.Equal(s.lowerBound)
}

// update replaces this sampler's inner probabilistic/rate-limiting
// parameters in place, used by PerOperationSampler when a refreshed
// strategy reuses an existing operation entry.
func (s *GuaranteedThroughputProbabilisticSampler) update(lowerBound, samplingRate float64) {
	s.probabilistic = NewProbabilisticSampler(samplingRate)
	if s.lowerBound.MaxTracesPerSecond != lowerBound {
		s.lowerBound = NewRateLimitingSampler(lowerBound)
	}
}

// PerOperationSampler is an adaptive sampler: a default lower-bound rate, a
// default probabilistic sampler, a per-operation cap on map size, and a
// mapping operationName -> GuaranteedThroughputProbabilisticSampler.
type PerOperationSampler struct {
	mu                sync.Mutex
	maxOperations     int
	lowerBound        float64
	defaultSampler    *ProbabilisticSampler
	operationSamplers map[string]*GuaranteedThroughputProbabilisticSampler
}

// PerOperationStrategy is one entry of a refreshed adaptive strategy.
type PerOperationStrategy struct {
	Operation      string
	SamplingRate   float64
}

// NewPerOperationSampler builds the adaptive sampler with an initial
// default sampling rate and per-operation lower bound.
func NewPerOperationSampler(maxOperations int, lowerBound, defaultSamplingRate float64) *PerOperationSampler {
	return &PerOperationSampler{
		maxOperations:     maxOperations,
		lowerBound:        lowerBound,
		defaultSampler:    NewProbabilisticSampler(defaultSamplingRate),
		operationSamplers: make(map[string]*GuaranteedThroughputProbabilisticSampler),
	}
}

func (s *PerOperationSampler) Sample(operationName string, traceIDLow uint64) SamplingStatus {
	s.mu.Lock()
	sampler, ok := s.operationSamplers[operationName]
	if !ok {
		if len(s.operationSamplers) >= s.maxOperations {
			defaultSampler := s.defaultSampler
			s.mu.Unlock()
			return defaultSampler.Sample(operationName, traceIDLow)
		}
		sampler = NewGuaranteedThroughputProbabilisticSampler(s.lowerBound, s.defaultSampler.Rate)
		s.operationSamplers[operationName] = sampler
	}
	s.mu.Unlock()
	return sampler.Sample(operationName, traceIDLow)
}

func (s *PerOperationSampler) Close() {}

func (s *PerOperationSampler) Equal(Sampler) bool {
	// The adaptive sampler's identity is its whole mapping; RemoteSampler
	// treats every refresh as an update rather than diffing strategies.
	return false
}

// Update applies a freshly fetched strategy: adjusts the default sampler
// and lower bound, and updates (or lazily creates, respecting the
// maxOperations cap) each named operation's sampler in place.
func (s *PerOperationSampler) Update(defaultLowerBound, defaultRate float64, strategies []PerOperationStrategy) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lowerBound = defaultLowerBound
	s.defaultSampler = NewProbabilisticSampler(defaultRate)

	for _, strat := range strategies {
		if sampler, ok := s.operationSamplers[strat.Operation]; ok {
			sampler.update(defaultLowerBound, strat.SamplingRate)
			continue
		}
		if len(s.operationSamplers) >= s.maxOperations {
			continue
		}
		s.operationSamplers[strat.Operation] = NewGuaranteedThroughputProbabilisticSampler(defaultLowerBound, strat.SamplingRate)
	}
}

// atomicSamplerBox lets RemoteSampler swap its inner sampler without a
// mutex on the hot Sample() path.
type atomicSamplerBox struct {
	v atomic.Value
}

func newAtomicSamplerBox(initial Sampler) *atomicSamplerBox {
	b := &atomicSamplerBox{}
	b.v.Store(samplerHolder{initial})
	return b
}

type samplerHolder struct{ Sampler }

func (b *atomicSamplerBox) load() Sampler {
	return b.v.Load().(samplerHolder).Sampler
}

func (b *atomicSamplerBox) store(s Sampler) {
	b.v.Store(samplerHolder{s})
}
