// Package report renders the daily attendance workbook.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"axiapac.com/presence/presence/model"
	"axiapac.com/presence/utils"
	"github.com/xuri/excelize/v2"
)

const (
	shiftsSheet  = "Shifts"
	summarySheet = "Summary"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var shiftHeader = []any{
	"Employee", "Date", "Type", "Start", "End", "Status", "Reason",
	"Check-in", "Check-out", "Late (min)", "Early leave (min)",
	"Work (h)", "Overtime (h)", "Rounds", "Open violations", "Manual",
}

type Source interface {
	ListShiftsOn(ctx context.Context, day time.Time) ([]model.EmployeeShift, error)
	OpenViolations(ctx context.Context, shiftIDs []string) (map[string]map[model.ViolationType]bool, error)
}

type Uploader interface {
	WriteFile(ctx context.Context, key, contentType string, body io.Reader) error
}

type Daily struct {
	source   Source
	location *time.Location
}

func NewDaily(source Source, location *time.Location) *Daily {
	if location == nil {
		location = time.UTC
	}
	return &Daily{source: source, location: location}
}

const KeyPrefix = "reports/daily/"

func Key(day time.Time) string {
	return fmt.Sprintf("%s%s.xlsx", KeyPrefix, day.Format(time.DateOnly))
}

// Build loads every shift dated day and writes it as one row.
func (d *Daily) Build(ctx context.Context, day time.Time) (*excelize.File, error) {
	shifts, err := d.source.ListShiftsOn(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	sort.Slice(shifts, func(i, j int) bool {
		if shifts[i].EmployeeID != shifts[j].EmployeeID {
			return shifts[i].EmployeeID < shifts[j].EmployeeID
		}
		return shifts[i].ScheduledStart < shifts[j].ScheduledStart
	})

	ids := make([]string, len(shifts))
	for i, s := range shifts {
		ids[i] = s.ID
	}
	open := map[string]map[model.ViolationType]bool{}
	if len(ids) > 0 {
		if open, err = d.source.OpenViolations(ctx, ids); err != nil {
			return nil, fmt.Errorf("failed to load violations: %w", err)
		}
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", shiftsSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := d.writeShifts(f, shifts, open); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, day, shifts); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (d *Daily) writeShifts(f *excelize.File, shifts []model.EmployeeShift, open map[string]map[model.ViolationType]bool) error {
	if err := f.SetSheetRow(shiftsSheet, "A1", &shiftHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(shiftsSheet, 1, 1, bold); err != nil {
		return err
	}

	for i, s := range shifts {
		row := []any{
			s.EmployeeID,
			s.ShiftDate.Format(time.DateOnly),
			s.ShiftType,
			s.ScheduledStart,
			s.ScheduledEnd,
			string(s.Status),
			s.StatusReason,
			d.clock(s.CheckInTime),
			d.clock(s.CheckOutTime),
			s.LateMinutes,
			s.EarlyLeaveMinutes,
			s.WorkHours,
			s.OvertimeHours,
			fmt.Sprintf("%d/%d", s.PresenceRoundsCompleted, s.PresenceRoundsRequired),
			violationList(open[s.ID]),
			utils.FormatBoolean(s.IsManuallyEdited, "Yes", "No"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(shiftsSheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetPanes(shiftsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeSummary(f *excelize.File, day time.Time, shifts []model.EmployeeShift) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	counts := map[model.ShiftStatus]int{}
	for _, s := range shifts {
		counts[s.Status]++
	}

	rows := [][]any{
		{"Date", day.Format(time.DateOnly)},
		{"Shifts", len(shifts)},
	}
	for _, st := range []model.ShiftStatus{model.ShiftScheduled, model.ShiftInProgress, model.ShiftCompleted, model.ShiftAbsent, model.ShiftOnLeave} {
		rows = append(rows, []any{string(st), counts[st]})
	}
	for i, row := range rows {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return err
		}
	}
	return nil
}

func (d *Daily) clock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(d.location).Format("2006-01-02 15:04")
}

func violationList(open map[model.ViolationType]bool) string {
	var out []string
	for vt, ok := range open {
		if ok {
			out = append(out, string(vt))
		}
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

func (d *Daily) Write(ctx context.Context, day time.Time, w io.Writer) error {
	f, err := d.Build(ctx, day)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// Upload writes the workbook for day to Key(day) and returns the key.
func (d *Daily) Upload(ctx context.Context, day time.Time, up Uploader) (string, error) {
	var buf bytes.Buffer
	if err := d.Write(ctx, day, &buf); err != nil {
		return "", err
	}
	key := Key(day)
	if err := up.WriteFile(ctx, key, ContentType, &buf); err != nil {
		return "", err
	}
	return key, nil
}
