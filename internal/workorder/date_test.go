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

package workorder

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that a completion payload carrying calendar dates decodes and validates.
// Scope: Unit Test
// Expected: completion_date=2024-01-01 and invoice_date=2024-01-02 are accepted as days; reason 4 with amounts >= 0 is valid.
// Test Case ID: WO-06
func TestCompletion_DecodesCalendarDates(t *testing.T) {
	payload := `{
		"task_item": 11,
		"was_completed": true,
		"reason": 4,
		"reason_other": "",
		"completion_date": "2024-01-01",
		"invoice_date": "2024-01-02",
		"invoice_quote_amount": "100.00",
		"invoice_labour_amount": "80",
		"invoice_material_amount": "20.5",
		"invoice_tax_amount": "0",
		"invoice_total_amount": "100.50",
		"invoice_service_fee_amount": "10",
		"comment": "All done"
	}`

	var c Completion
	require.NoError(t, json.Unmarshal([]byte(payload), &c))
	require.NoError(t, c.Validate())

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), c.CompletionDate.Time)
	require.NotNil(t, c.Invoice.Date)
	assert.Equal(t, "2024-01-02", c.Invoice.Date.String())
}

func TestDate_JSON(t *testing.T) {
	cases := map[string]string{
		`"2024-01-01"`:                "2024-01-01",
		`"2024-01-01T23:30:00Z"`:      "2024-01-01",
		`"2024-01-01T23:30:00-05:00"`: "2024-01-01",
	}
	for in, want := range cases {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(in), &d), in)
		assert.Equal(t, want, d.String(), in)
	}

	var d Date
	assert.Error(t, json.Unmarshal([]byte(`"March 1st"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`"2024-13-01"`), &d))

	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.True(t, d.IsZero())

	out, err := json.Marshal(struct {
		At  Date  `json:"at"`
		Opt *Date `json:"opt,omitempty"`
	}{At: NewDate(time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"2024-01-01"}`, string(out))
}

func TestDate_ScanAndValue(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-01-01", d.String())

	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, d.Time, v)

	require.NoError(t, d.Scan(nil))
	v, err = d.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	assert.Error(t, d.Scan(42))
}
