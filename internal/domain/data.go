package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	layoutData    = "2006-01-02"
	secondsPerDay = 24 * 60 * 60
)

// FusoTribunal is the zone "today" is resolved in. The fixed -03:00 fallback
// covers hosts without tzdata.
var FusoTribunal = func() *time.Location {
	if loc, err := time.LoadLocation("America/Sao_Paulo"); err == nil {
		return loc
	}
	return time.FixedZone("BRT", -3*60*60)
}()

// Data is a calendar date with no time-of-day component.
// It is always stored at UTC midnight, so day differences are exact.
type Data struct {
	time.Time
}

// NovaData builds a Data from year, month and day.
func NovaData(ano int, mes time.Month, dia int) Data {
	return Data{time.Date(ano, mes, dia, 0, 0, 0, 0, time.UTC)}
}

// DataDe returns the calendar day of t in t's own location.
func DataDe(t time.Time) Data {
	return NovaData(t.Year(), t.Month(), t.Day())
}

// HojeNoTribunal returns the calendar day of t in FusoTribunal.
func HojeNoTribunal(t time.Time) Data {
	return DataDe(t.In(FusoTribunal))
}

// ParseData accepts YYYY-MM-DD or RFC3339.
func ParseData(s string) (Data, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(layoutData, s); err == nil {
		return DataDe(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Data{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD", s)
	}
	return DataDe(t), nil
}

// AddDias returns the date n calendar days later (n may be negative).
func (d Data) AddDias(n int) Data {
	return Data{d.Time.AddDate(0, 0, n)}
}

// DiasAte returns the number of days from d to o (negative if o is before d).
// Both sides sit at UTC midnight, so the Unix difference is a whole number of
// days for any span, including ones longer than a time.Duration can hold.
func (d Data) DiasAte(o Data) int {
	return int((o.Unix() - d.Unix()) / secondsPerDay)
}

func (d Data) Before(o Data) bool { return d.Time.Before(o.Time) }
func (d Data) After(o Data) bool  { return d.Time.After(o.Time) }
func (d Data) Equal(o Data) bool  { return d.Time.Equal(o.Time) }

func (d Data) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(layoutData)
}

func (d Data) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Data) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Data{}
		return nil
	}
	parsed, err := ParseData(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Ptr returns a pointer to a copy of d.
func (d Data) Ptr() *Data {
	return &d
}
