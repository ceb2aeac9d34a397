package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"axiapac.com/presence/presence/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeSource struct {
	shifts []model.EmployeeShift
	open   map[string]map[model.ViolationType]bool
	err    error
}

func (f *fakeSource) ListShiftsOn(context.Context, time.Time) ([]model.EmployeeShift, error) {
	return f.shifts, f.err
}

func (f *fakeSource) OpenViolations(context.Context, []string) (map[string]map[model.ViolationType]bool, error) {
	return f.open, nil
}

type memUploader struct {
	key         string
	contentType string
	body        []byte
}

func (m *memUploader) WriteFile(_ context.Context, key, contentType string, body io.Reader) error {
	m.key, m.contentType = key, contentType
	var err error
	m.body, err = io.ReadAll(body)
	return err
}

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func sampleSource() *fakeSource {
	in := time.Date(2025, 3, 10, 7, 50, 0, 0, time.UTC)
	out := time.Date(2025, 3, 10, 19, 0, 0, 0, time.UTC)
	return &fakeSource{
		shifts: []model.EmployeeShift{
			{ID: "S2", EmployeeID: "E2", ShiftDate: day, ShiftType: "REGULAR", ScheduledStart: "08:00", ScheduledEnd: "17:00", Status: model.ShiftAbsent, StatusReason: "NO_CHECK_IN", PresenceRoundsRequired: 3},
			{ID: "S1", EmployeeID: "E1", ShiftDate: day, ShiftType: "REGULAR", ScheduledStart: "08:00", ScheduledEnd: "17:00", Status: model.ShiftCompleted,
				CheckInTime: &in, CheckOutTime: &out, WorkHours: 9, OvertimeHours: 2, PresenceRoundsCompleted: 3, PresenceRoundsRequired: 3},
		},
		open: map[string]map[model.ViolationType]bool{"S2": {model.ViolationNoCheckIn: true}},
	}
}

func TestDailyBuild(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewDaily(sampleSource(), time.UTC).Write(context.Background(), day, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{shiftsSheet, summarySheet}, f.GetSheetList())

	rows, err := f.GetRows(shiftsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Employee", rows[0][0])
	assert.Equal(t, []string{"E1", "2025-03-10", "REGULAR", "08:00", "17:00", "COMPLETED", "", "2025-03-10 07:50", "2025-03-10 19:00", "0", "0", "9", "2", "3/3", "", "No"}, rows[1])
	assert.Equal(t, "E2", rows[2][0])
	assert.Equal(t, "NO_CHECK_IN", rows[2][14])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Shifts", "2"}, summary[1])
	assert.Contains(t, summary, []string{"ABSENT", "1"})
}

func TestDailyUpload(t *testing.T) {
	up := &memUploader{}
	key, err := NewDaily(sampleSource(), nil).Upload(context.Background(), day, up)
	require.NoError(t, err)
	assert.Equal(t, "reports/daily/2025-03-10.xlsx", key)
	assert.Equal(t, key, up.key)
	assert.Equal(t, ContentType, up.contentType)
	assert.NotEmpty(t, up.body)
}

func TestDailyEmptyDayAndErrors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewDaily(&fakeSource{}, nil).Write(context.Background(), day, &buf))

	err := NewDaily(&fakeSource{err: errors.New("db down")}, nil).Write(context.Background(), day, &buf)
	assert.ErrorContains(t, err, "db down")
}
