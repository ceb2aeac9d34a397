package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"axiapac.com/presence/presence/model"
	"axiapac.com/presence/presence/roster"
	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaFromKey(t *testing.T) {
	tests := []struct {
		key    string
		schema string
		ok     bool
	}{
		{"rosters/week11.csv", "", true},
		{"rosters/site_a/week11.CSV", "site_a", true},
		{"reports/daily/2025-03-10.xlsx", "", false},
		{"rosters/site_a/notes.txt", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			schema, ok := SchemaFromKey(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.schema, schema)
		})
	}
}

type memBucket map[string]string

func (m memBucket) ReadFile(_ context.Context, key string, w io.Writer) error {
	body, ok := m[key]
	if !ok {
		return errors.New("no such key")
	}
	_, err := io.WriteString(w, body)
	return err
}

type memStore struct {
	shifts []model.EmployeeShift
}

func (m *memStore) FindShifts(context.Context, string, time.Time, time.Time) ([]model.EmployeeShift, error) {
	return nil, nil
}

func (m *memStore) CreateShift(_ context.Context, shift *model.EmployeeShift) error {
	m.shifts = append(m.shifts, *shift)
	return nil
}

func s3Record(bucket, key string) events.S3EventRecord {
	var rec events.S3EventRecord
	rec.S3.Bucket.Name = bucket
	rec.S3.Object.Key = key
	return rec
}

func TestHandleRequest(t *testing.T) {
	stores := map[string]*memStore{"": {}, "site_a": {}}
	h := &handler{
		bucket: func(_ context.Context, name string) (Bucket, error) {
			require.Equal(t, "uploads", name)
			return memBucket{
				"rosters/week 11.csv":       "employee_id,date,start,end\nE1,2025-03-10,08:00,17:00\n",
				"rosters/site_a/week11.csv": "employee_id,date,start,end\nE2,2025-03-10,08:00,17:00\nE3,2025-03-10,08:00,17:00\n",
			}, nil
		},
		importer: func(schema string) *roster.Importer { return roster.NewImporter(stores[schema], slog.Default()) },
		location: time.UTC,
		logger:   slog.Default(),
	}

	results, err := h.HandleRequest(context.Background(), events.S3Event{Records: []events.S3EventRecord{
		s3Record("uploads", "rosters/week+11.csv"),
		s3Record("uploads", "rosters/site_a/week11.csv"),
		s3Record("uploads", "reports/daily/2025-03-10.xlsx"),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, results["rosters/week 11.csv"].Created)
	assert.Equal(t, 2, results["rosters/site_a/week11.csv"].Created)
	assert.Len(t, stores[""].shifts, 1)
	assert.Len(t, stores["site_a"].shifts, 2)
	assert.Len(t, results, 2)

	_, err = h.HandleRequest(context.Background(), events.S3Event{Records: []events.S3EventRecord{
		s3Record("uploads", "rosters/missing.csv"),
	}})
	assert.ErrorContains(t, err, "rosters/missing.csv")
}
