package common

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateOnly binds a shift or report date given as yyyy-MM-dd in JSON bodies
// and query strings.
type DateOnly struct {
	time.Time
}

const dateLayout = "2006-01-02" // yyyy-MM-dd

func NewDateOnly(t time.Time) DateOnly {
	return DateOnly{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())}
}

func (d *DateOnly) UnmarshalJSON(b []byte) error {
	// b is a quoted string like `"2025-10-29"`
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.UnmarshalParam(s)
}

// UnmarshalParam lets gin bind query and form values.
func (d *DateOnly) UnmarshalParam(s string) error {
	if s == "" {
		// handle empty date gracefully
		d.Time = time.Time{}
		return nil
	}

	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date format: %v", err)
	}

	d.Time = t
	return nil
}

func (d DateOnly) MarshalJSON() ([]byte, error) {
	if d.Time.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(d.Format(dateLayout))
}

// Or returns the date, or def when none was given.
func (d DateOnly) Or(def time.Time) time.Time {
	if d.Time.IsZero() {
		return def
	}
	return d.Time
}

func (d DateOnly) String() string {
	if d.Time.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}
