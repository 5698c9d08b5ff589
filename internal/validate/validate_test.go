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

package validate

import (
	"testing"

	"github.com/over55/workery/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email  string  `json:"email" validate:"required,email"`
	Amount float64 `json:"amount" validate:"gte=0"`
	Schema string  `json:"schema_name" validate:"required,schema_name"`
}

func TestStruct_FieldLevelDetail(t *testing.T) {
	err := Struct("test.op", sample{Email: "nope", Amount: -1, Schema: "1bad"})
	require.Error(t, err)
	assert.Equal(t, apperr.EValidation, apperr.ErrorCode(err))

	fields := apperr.ErrorFields(err)
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must not be negative", fields["amount"])
	assert.Contains(t, fields["schema_name"], "lowercase")
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct("test.op", sample{Email: "bart@workery.ca", Amount: 0, Schema: "london"}))
}

func TestVar(t *testing.T) {
	err := Var("test.op", "email", "x", "email")
	require.Error(t, err)
	assert.Equal(t, map[string]string{"email": "must be a valid email address"}, apperr.ErrorFields(err))
	assert.NoError(t, Var("test.op", "email", "bart@workery.ca", "email"))
}

func TestSchemaName(t *testing.T) {
	assert.True(t, SchemaName("london"))
	assert.True(t, SchemaName("north_york2"))
	assert.False(t, SchemaName("London"))
	assert.False(t, SchemaName("a"))
	assert.False(t, SchemaName("drop table;"))
}
