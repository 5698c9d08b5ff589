// Copyright 2026 The Workery Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/over55/workery/internal/observability/logger"
	"golang.org/x/sync/errgroup"
)

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("queue closed")

// MemoryQueue is a single-process queue. Jobs are lost on restart, so it suits
// development and tests; production deployments use the NATS queue.
type MemoryQueue struct {
	policy  RetryPolicy
	workers int

	mu       sync.RWMutex
	handlers map[string]Handler
	closed   bool

	jobs    chan Job
	startMu sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// NewMemoryQueue creates an in-memory queue with a bounded buffer.
func NewMemoryQueue(policy RetryPolicy, workers, buffer int) *MemoryQueue {
	if workers < 1 {
		workers = 1
	}
	return &MemoryQueue{
		policy:   policy,
		workers:  workers,
		handlers: make(map[string]Handler),
		jobs:     make(chan Job, buffer),
	}
}

// Enqueue implements Queue.
func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", job.Name, ctx.Err())
	}
}

// Subscribe implements Queue. Workers start on the first subscription.
func (q *MemoryQueue) Subscribe(ctx context.Context, name string, h Handler) (func(), error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	q.handlers[name] = h
	q.mu.Unlock()

	q.start(ctx)

	return func() {
		q.mu.Lock()
		delete(q.handlers, name)
		q.mu.Unlock()
	}, nil
}

func (q *MemoryQueue) start(ctx context.Context) {
	q.startMu.Lock()
	defer q.startMu.Unlock()
	if q.group != nil {
		return
	}
	ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))
	q.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < q.workers; i++ {
		q.group.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case job := <-q.jobs:
					q.run(ctx, job)
				}
			}
		})
	}
}

func (q *MemoryQueue) run(ctx context.Context, job Job) {
	q.mu.RLock()
	h, ok := q.handlers[job.Name]
	q.mu.RUnlock()
	if !ok {
		slog.WarnContext(ctx, "no handler for job, dropping", logger.Job(job.Name))
		return
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := h(ctx, Delivery{Job: job, Attempt: attempt, MaxAttempts: q.policy.MaxAttempts})
		if err != nil && IsPermanent(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(q.policy.BackOff()),
		backoff.WithMaxTries(uint(max(q.policy.MaxAttempts, 1))),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, d time.Duration) {
			slog.WarnContext(ctx, "job failed, retrying",
				logger.Job(job.Name), logger.Attempt(attempt), logger.Error(err), slog.Duration("delay", d))
		}),
	)
	if err != nil {
		slog.ErrorContext(ctx, "job dropped", logger.Job(job.Name), logger.Attempt(attempt), logger.Error(err))
	}
}

// Close stops the workers and waits for in-flight jobs.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.startMu.Lock()
	defer q.startMu.Unlock()
	if q.group == nil {
		return nil
	}
	q.cancel()
	return q.group.Wait()
}
