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

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = New(EConflict, "task already closed")

func TestErrorCode_WalksWrappedChain(t *testing.T) {
	wrapped := fmt.Errorf("complete order: %w", Wrap("workorder.Complete", errSentinel))

	assert.Equal(t, EConflict, ErrorCode(wrapped))
	assert.True(t, errors.Is(wrapped, errSentinel))
	assert.Equal(t, "task already closed", ErrorMessage(wrapped))
}

func TestErrorCode_PlainErrorIsInternal(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, EInternal, ErrorCode(err))
	assert.Equal(t, "internal error", ErrorMessage(err))
	assert.Equal(t, Code(""), ErrorCode(nil))
}

func TestValidation_CarriesFields(t *testing.T) {
	err := Wrap("op", Validation("workorder.Complete", map[string]string{"reason_other": "required"}))

	assert.Equal(t, EValidation, ErrorCode(err))
	assert.Equal(t, map[string]string{"reason_other": "required"}, ErrorFields(err))
	assert.Contains(t, err.Error(), "reason_other: required")
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		EValidation:   http.StatusBadRequest,
		EUnauthorized: http.StatusUnauthorized,
		EForbidden:    http.StatusForbidden,
		EIsolation:    http.StatusForbidden,
		ENotFound:     http.StatusNotFound,
		EConflict:     http.StatusConflict,
		EProvisioning: http.StatusConflict,
		EInternal:     http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, HTTPStatus(code), code)
	}
}
