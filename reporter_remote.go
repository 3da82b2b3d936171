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
	"time"

	"github.com/jaegertracing/jaeger-go-core/internal/log"
)

// Sender is the external transport collaborator that turns finished spans
// into bytes on the wire. Append/Flush return the number of spans actually
// emitted (0 if merely buffered); failures carry a SenderError{Dropped}.
type Sender interface {
	Append(span *Span) (int, error)
	Flush() (int, error)
	Close() (int, error)
}

// command is the RemoteReporter's internal command model: two kinds
// sharing a single success/error path, observed by the worker in enqueue
// order over a bounded queue with one dedicated worker.
type command interface {
	execute(s Sender) (int, error)
}

type appendCommand struct{ span *Span }

func (c appendCommand) execute(s Sender) (int, error) { return s.Append(c.span) }

type flushCommand struct{}

func (flushCommand) execute(s Sender) (int, error) { return s.Flush() }

// closeSentinel is enqueued by Close to signal the worker to drain and
// exit; it carries no payload and is never handed to the Sender.
type closeSentinel struct{}

func (closeSentinel) execute(Sender) (int, error) { return 0, nil }

// RemoteReporterOptions configures NewRemoteReporter.
type RemoteReporterOptions struct {
	Sender                  Sender
	QueueSize               int
	FlushInterval           time.Duration
	CloseEnqueueTimeout     time.Duration
	Metrics                 *Metrics
	Logger                  log.Logger
}

// RemoteReporter is a bounded command queue plus one dedicated worker that
// batches, flushes on interval, and survives sender failure.
type RemoteReporter struct {
	sender  Sender
	queue   chan command
	metrics *Metrics
	logger  log.Logger

	closeEnqueueTimeout time.Duration

	flushTicker *time.Ticker
	flushDone   chan struct{}

	workerDone chan struct{}

	failing bool
}

// NewRemoteReporter constructs and starts the worker and the flush timer.
func NewRemoteReporter(opts RemoteReporterOptions) *RemoteReporter {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.CloseEnqueueTimeout <= 0 {
		opts.CloseEnqueueTimeout = time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(NullMetricsFactory{})
	}
	if opts.Logger == nil {
		opts.Logger = log.NoOp()
	}

	r := &RemoteReporter{
		sender:               opts.Sender,
		queue:                make(chan command, opts.QueueSize),
		metrics:              opts.Metrics,
		logger:               opts.Logger,
		closeEnqueueTimeout:  opts.CloseEnqueueTimeout,
		flushDone:            make(chan struct{}),
		workerDone:           make(chan struct{}),
	}

	go r.processQueue() // jaeger.RemoteReporter-QueueProcessor
	r.flushTicker = time.NewTicker(opts.FlushInterval)
	go r.runFlushTimer() // jaeger.RemoteReporter-FlushTimer

	return r
}

// Report offers a span onto the queue without blocking: a full queue
// drops the span and increments the dropped counter, never panics or
// blocks the caller.
func (r *RemoteReporter) Report(span *Span) {
	select {
	case r.queue <- appendCommand{span: span}:
	default:
		r.metrics.ReporterDropped.Inc(1)
	}
	r.metrics.ReporterQueue.Update(int64(len(r.queue)))
}

// Flush synchronously enqueues a Flush command, dropping it silently if
// the queue is full (the next timer tick will try again).
func (r *RemoteReporter) Flush() {
	select {
	case r.queue <- flushCommand{}:
	default:
	}
}

func (r *RemoteReporter) runFlushTimer() {
	defer close(r.flushDone)
	for {
		select {
		case <-r.workerDone:
			// The worker has exited; Close is stopping the timer.
			return
		case <-r.flushTicker.C:
			select {
			case r.queue <- flushCommand{}:
			default:
				// Queue full: drop this tick, the next one retries.
			}
		}
	}
}

// Close enqueues a sentinel (waiting up to CloseEnqueueTimeout for a free
// slot, then blocking until the worker frees one), waits for the worker to
// drain, stops the flush timer, and closes the Sender.
func (r *RemoteReporter) Close() {
	select {
	case r.queue <- closeSentinel{}:
	case <-time.After(r.closeEnqueueTimeout):
		// The queue stayed full for the whole timeout. The channel is never
		// closed, to avoid racing with in-flight Report calls, so fall back
		// to a blocking enqueue that completes once the worker frees a slot.
		r.queue <- closeSentinel{}
	}
	<-r.workerDone

	r.flushTicker.Stop()
	<-r.flushDone

	n, err := r.sender.Close()
	if err != nil {
		r.logger.Error("Remote reporter error on close", log.Err(err))
	}
	r.metrics.ReporterSuccess.Inc(int64(n))
}

func (r *RemoteReporter) processQueue() {
	defer close(r.workerDone)
	for cmd := range r.queue {
		if _, isClose := cmd.(closeSentinel); isClose {
			return
		}
		r.execute(cmd)
	}
}

// execute runs one command through the shared success/error path.
func (r *RemoteReporter) execute(cmd command) {
	n, err := cmd.execute(r.sender)
	if err == nil {
		r.metrics.ReporterSuccess.Inc(int64(n))
		if _, isFlush := cmd.(flushCommand); isFlush {
			r.metrics.ReporterQueue.Update(int64(len(r.queue)))
		}
		if r.failing {
			r.failing = false
			r.logger.Info("Flush command working again")
		}
		return
	}

	dropped := 0
	if se, ok := err.(*SenderError); ok {
		dropped = se.Dropped
	}
	r.metrics.ReporterFailure.Inc(int64(dropped))

	if !r.failing {
		r.failing = true
		r.logger.Error("Flush command execution failed! Repeated errors of this command will not be logged.", log.Err(err))
	}
}
