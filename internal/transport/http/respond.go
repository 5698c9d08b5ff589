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

package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/observability/logger"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string            `json:"error" example:"validation failed"`
	Code   string            `json:"code" example:"validation"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", logger.Error(err))
	}
}

// respondError writes err with the status its code maps to. Internal errors
// are logged and never leak their message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.ErrorCode(err)
	status := apperr.HTTPStatus(code)
	msg := apperr.ErrorMessage(err)
	if code == apperr.EInternal {
		slog.ErrorContext(r.Context(), "request failed",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
		msg = "internal error"
	}
	respondJSON(w, status, ErrorResponse{Error: msg, Code: string(code), Fields: apperr.ErrorFields(err)})
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, op string, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &apperr.Error{Code: apperr.EValidation, Msg: "request body is required", Op: op}
		}
		return &apperr.Error{Code: apperr.EValidation, Msg: "invalid request body", Op: op, Err: err}
	}
	return nil
}

// int64Param parses a positive integer URL parameter.
func int64Param(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, apperr.Validation("http.param", map[string]string{name: "must be a positive integer"})
	}
	return v, nil
}
