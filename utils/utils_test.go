package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-03-10T08:00:00Z", time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)},
		{"2025-03-10T08:00:00.5+07:00", time.Date(2025, 3, 10, 1, 0, 0, 500000000, time.UTC)},
		{"2025-03-10 08:00:00", time.Date(2025, 3, 10, 8, 0, 0, 0, jakarta)},
		{"2025-03-10T08:00:00", time.Date(2025, 3, 10, 8, 0, 0, 0, jakarta)},
		{"2025-03-10", time.Date(2025, 3, 10, 0, 0, 0, 0, jakarta)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in, jakarta)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}

	_, err = ParseTime("", jakarta)
	assert.Error(t, err)
	_, err = ParseTime("tomorrow", jakarta)
	assert.Error(t, err)
}

func TestGroupBy(t *testing.T) {
	got := GroupBy([]string{"apple", "avocado", "banana"}, func(s string) byte { return s[0] })
	assert.Equal(t, map[byte][]string{'a': {"apple", "avocado"}, 'b': {"banana"}}, got)
}

func TestFormatBoolean(t *testing.T) {
	assert.Equal(t, "Yes", FormatBoolean(true, "Yes", "No"))
	assert.Equal(t, "No", FormatBoolean(false, "Yes", "No"))
}
