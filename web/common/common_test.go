package common

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOnlyJSON(t *testing.T) {
	var v struct {
		Date DateOnly `json:"date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2025-03-10"}`), &v))
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), v.Date.Time)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-03-10"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"date":"10/03/2025"}`), &v))

	require.NoError(t, json.Unmarshal([]byte(`{"date":""}`), &v))
	assert.True(t, v.Date.IsZero())

	fallback := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, fallback, v.Date.Or(fallback))
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), NewDateOnly(time.Date(2025, 3, 10, 15, 4, 0, 0, time.UTC)).Or(fallback))
}

func TestSearchResponseRange(t *testing.T) {
	from := NewDateOnly(time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC))
	to := NewDateOnly(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	out, err := json.Marshal(NewSearchResponse([]int{1, 2}, 2).WithRange(from, to))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[1,2],"range":{"from":"2025-03-04","to":"2025-03-10"},"pagination":{"total":2}}`, string(out))

	out, err = json.Marshal(NewSearchResponse(nil, 0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":null,"pagination":{"total":0}}`, string(out))
}

func TestFormatBindingError(t *testing.T) {
	type body struct {
		EmployeeID string  `json:"employeeId" binding:"required"`
		Confidence float64 `json:"confidence" binding:"gte=0,lte=1"`
	}

	err := binding.Validator.ValidateStruct(&body{Confidence: 2})
	msg := FormatBindingError(err)
	assert.Contains(t, msg, "Field 'employeeId' is required")
	assert.Contains(t, msg, "Field 'confidence' must be at most 1")

	assert.Equal(t, "Request body is empty", FormatBindingError(io.EOF))

	var ts struct {
		At time.Time `json:"at"`
	}
	err = json.Unmarshal([]byte(`{"at":"yesterday"}`), &ts)
	require.Error(t, err)
	msg = FormatBindingError(err)
	assert.Contains(t, msg, "yesterday")
	assert.Contains(t, msg, "is not an RFC 3339 timestamp")
	assert.Equal(t, "", FormatBindingError(nil))
}
