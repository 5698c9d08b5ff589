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

// Package natsqueue implements jobs.Queue on NATS JetStream.
package natsqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/over55/workery/internal/jobs"
	"github.com/over55/workery/internal/observability/logger"
)

const (
	streamName    = "WORKERY_JOBS"
	subjectPrefix = "workery.jobs."
)

// Queue implements jobs.Queue using JetStream work-queue retention.
type Queue struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	policy jobs.RetryPolicy
}

// Connect establishes a connection to NATS and ensures the job stream exists.
func Connect(ctx context.Context, url string, policy jobs.RetryPolicy) (*Queue, error) {
	nc, err := nats.Connect(url, nats.Name("workery"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ">"},
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", slog.String("url", url), slog.String("stream", streamName))
	return &Queue{nc: nc, js: js, policy: policy}, nil
}

// Enqueue publishes job. The job id doubles as the JetStream message id so a
// retried publish is deduplicated by the server.
func (q *Queue) Enqueue(ctx context.Context, job jobs.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.Name, err)
	}
	if _, err := q.js.Publish(ctx, subjectPrefix+job.Name, data, jetstream.WithMsgID(job.ID)); err != nil {
		return fmt.Errorf("nats publish %s: %w", job.Name, err)
	}
	return nil
}

// Subscribe registers a durable consumer for name.
func (q *Queue) Subscribe(ctx context.Context, name string, h jobs.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       durableName(name),
		FilterSubject: subjectPrefix + name,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    q.policy.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	handlerCtx := context.WithoutCancel(ctx)
	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		q.handle(handlerCtx, msg, h)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

func (q *Queue) handle(ctx context.Context, msg jetstream.Msg, h jobs.Handler) {
	var job jobs.Job
	if err := json.Unmarshal(msg.Data(), &job); err != nil {
		slog.ErrorContext(ctx, "malformed job message", slog.String("subject", msg.Subject()), logger.Error(err))
		if termErr := msg.Term(); termErr != nil {
			slog.ErrorContext(ctx, "nats term failed", logger.Error(termErr))
		}
		return
	}

	attempt := 1
	if meta, err := msg.Metadata(); err == nil {
		attempt = int(meta.NumDelivered)
	}
	d := jobs.Delivery{Job: job, Attempt: attempt, MaxAttempts: q.policy.MaxAttempts}

	if err := h(ctx, d); err != nil {
		if d.Final() || jobs.IsPermanent(err) {
			slog.ErrorContext(ctx, "job dropped", logger.Job(job.Name), logger.Attempt(attempt), logger.Error(err))
			if termErr := msg.Term(); termErr != nil {
				slog.ErrorContext(ctx, "nats term failed", logger.Error(termErr))
			}
			return
		}
		delay := q.policy.Delay(attempt)
		slog.WarnContext(ctx, "job failed, retrying",
			logger.Job(job.Name), logger.Attempt(attempt), logger.Error(err), slog.Duration("delay", delay))
		if nakErr := msg.NakWithDelay(delay); nakErr != nil {
			slog.ErrorContext(ctx, "nats nak failed", logger.Error(nakErr))
		}
		return
	}
	if ackErr := msg.Ack(); ackErr != nil {
		slog.ErrorContext(ctx, "nats ack failed", logger.Error(ackErr))
	}
}

// Close shuts down the NATS connection.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

func durableName(job string) string {
	return "workery_" + strings.NewReplacer(".", "_", "*", "_", ">", "_").Replace(job)
}
