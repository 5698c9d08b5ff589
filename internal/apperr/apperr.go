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

// Package apperr defines the error taxonomy shared by every domain package.
//
// Domain code returns *Error values (or wraps them); the transport layer reads
// the Code to pick a status and never inspects messages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Code classifies an error.
type Code string

// Error codes
const (
	EValidation   Code = "validation"
	ENotFound     Code = "not_found"
	EConflict     Code = "conflict"
	EIsolation    Code = "isolation_violation"
	EProvisioning Code = "provisioning_failure"
	EUnauthorized Code = "unauthorized"
	EForbidden    Code = "forbidden"
	EInternal     Code = "internal"
)

// Error is a coded application error.
type Error struct {
	Code   Code
	Msg    string
	Op     string
	Fields map[string]string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		fmt.Fprintf(&b, "%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		fmt.Fprintf(&b, "<%s>", e.Code)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %s", k, e.Fields[k])
		}
		b.WriteString("]")
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the same sentinel. Two errors match when they
// share code and message, which lets callers wrap sentinels with an Op.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Msg == e.Msg && t.Op == "" && len(t.Fields) == 0
}

// New creates a coded error.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap attaches an operation name to err, keeping its code.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return &Error{Code: e.Code, Msg: e.Msg, Op: op, Fields: e.Fields, Err: err}
	}
	return &Error{Code: EInternal, Op: op, Err: err}
}

// Validation builds a validation error carrying field-level detail.
func Validation(op string, fields map[string]string) *Error {
	return &Error{Code: EValidation, Msg: "invalid input", Op: op, Fields: fields}
}

// NotFound builds a not-found error.
func NotFound(op, msg string) *Error {
	return &Error{Code: ENotFound, Msg: msg, Op: op}
}

// Conflict builds a conflict error.
func Conflict(op, msg string) *Error {
	return &Error{Code: EConflict, Msg: msg, Op: op}
}

// Isolation builds a tenant isolation violation.
func Isolation(op, msg string) *Error {
	return &Error{Code: EIsolation, Msg: msg, Op: op}
}

// Internal wraps an unexpected failure.
func Internal(op string, err error) *Error {
	return &Error{Code: EInternal, Msg: "internal error", Op: op, Err: err}
}

// ErrorCode returns the code of the first *Error in err's chain, EInternal for
// any other non-nil error and "" for nil.
func ErrorCode(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return EInternal
}

// ErrorMessage returns a message safe to show to a caller. Internal errors are
// never described.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) || e.Code == EInternal {
		return "internal error"
	}
	if e.Msg != "" {
		return e.Msg
	}
	return string(e.Code)
}

// ErrorFields collects field-level detail along err's chain.
func ErrorFields(err error) map[string]string {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if len(e.Fields) > 0 {
				return e.Fields
			}
			err = e.Err
			continue
		}
		return nil
	}
	return nil
}

// HTTPStatus maps a code to a response status.
func HTTPStatus(code Code) int {
	switch code {
	case EValidation:
		return http.StatusBadRequest
	case EUnauthorized:
		return http.StatusUnauthorized
	case EForbidden, EIsolation:
		return http.StatusForbidden
	case ENotFound:
		return http.StatusNotFound
	case EConflict, EProvisioning:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
