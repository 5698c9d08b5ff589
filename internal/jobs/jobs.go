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

// Package jobs defines the background job queue used outside the request path.
//
// Delivery is at-least-once: a handler may see the same job more than once and
// must be idempotent. A handler error schedules a redelivery after the retry
// policy's delay until MaxAttempts deliveries have happened; after that the job
// is dropped. Handlers that need a terminal record should write it on the final
// delivery (Delivery.Final) and return nil.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/over55/workery/internal/id"
)

// Job is a named, typed unit of background work.
type Job struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// NewJob encodes payload into a job.
func NewJob(name string, payload any) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("failed to encode %s payload: %w", name, err)
	}
	return Job{ID: id.NewUUIDv7(), Name: name, Payload: raw}, nil
}

// Decode unmarshals the payload into v.
func (j Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", j.Name, err)
	}
	return nil
}

// Delivery is one attempt at running a job. Attempt starts at 1.
type Delivery struct {
	Job         Job
	Attempt     int
	MaxAttempts int
}

// Final reports whether no redelivery follows a failure of this attempt.
func (d Delivery) Final() bool {
	return d.Attempt >= d.MaxAttempts
}

// Handler processes a delivery.
type Handler func(ctx context.Context, d Delivery) error

// Queue accepts jobs and runs them on workers.
type Queue interface {
	// Enqueue hands job to the queue without waiting for it to run.
	Enqueue(ctx context.Context, job Job) error

	// Subscribe runs h for every job named name until stop is called.
	Subscribe(ctx context.Context, name string, h Handler) (stop func(), err error)

	// Close releases the queue.
	Close() error
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
