package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	got, err := ParseCSV(strings.NewReader("name,age,city\nAlice, 30,New York\nBob,25"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"name", "age", "city"},
		{"Alice", "30", "New York"},
		{"Bob", "25"},
	}, got)
}

func TestReadTable(t *testing.T) {
	rows, err := ReadTable(strings.NewReader("\ufeffEmployee_ID, Date\nE1,2025-03-10\n\nE2\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "E1", rows[0].Get("employee_id"))
	assert.Equal(t, "2025-03-10", rows[0].Get("date"))

	assert.Equal(t, 4, rows[1].Line)
	assert.Equal(t, "E2", rows[1].Get("employee_id"))
	assert.Empty(t, rows[1].Get("date"))

	_, err = ReadTable(strings.NewReader(""))
	assert.ErrorContains(t, err, "no header")
}
