package shared

import (
	"errors"
	"fmt"
	"time"
)

// Period identifies a calendar month, formatted as "2006-01".
type Period struct {
	Year  int
	Month time.Month
}

// ErrInvalidPeriod indicates a malformed period string.
var ErrInvalidPeriod = errors.New("invalid period")

var dutchMonths = [...]string{
	"Januari", "Februari", "Maart", "April", "Mei", "Juni",
	"Juli", "Augustus", "September", "Oktober", "November", "December",
}

// ParsePeriod parses a "2006-01" formatted period string.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %s", ErrInvalidPeriod, s)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// PeriodOf returns the period containing the given instant.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// String formats the period as "2006-01".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Start returns midnight UTC on the first day of the month.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns midnight UTC on the last day of the month.
func (p Period) End() time.Time {
	return time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC)
}

// AddMonths shifts the period by n months, negative values go back in time.
func (p Period) AddMonths(n int) Period {
	t := p.Start().AddDate(0, n, 0)
	return Period{Year: t.Year(), Month: t.Month()}
}

// Previous returns the preceding month.
func (p Period) Previous() Period {
	return p.AddMonths(-1)
}

// Label renders the Dutch month name with year, e.g. "Juli 2025".
func (p Period) Label() string {
	return fmt.Sprintf("%s %d", dutchMonths[p.Month-1], p.Year)
}

// ShortLabel renders an abbreviated Dutch label, e.g. "Jul 2025".
func (p Period) ShortLabel() string {
	return fmt.Sprintf("%s %d", dutchMonths[p.Month-1][:3], p.Year)
}

// Quarter returns the calendar quarter (1-4) the period falls in.
func (p Period) Quarter() int {
	return (int(p.Month)-1)/3 + 1
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// VATWindow is the BTW reporting window derived from a close month. LAB
// entities file either monthly or quarterly.
type VATWindow struct {
	From    Period
	To      Period
	Label   string
	Monthly bool
}

// VATWindowFor derives the BTW window containing the close period.
func VATWindowFor(p Period, monthly bool) VATWindow {
	if monthly {
		return VATWindow{From: p, To: p, Label: p.Label(), Monthly: true}
	}
	q := p.Quarter()
	from := Period{Year: p.Year, Month: time.Month((q-1)*3 + 1)}
	to := Period{Year: p.Year, Month: time.Month(q * 3)}
	return VATWindow{
		From:  from,
		To:    to,
		Label: fmt.Sprintf("Q%d %d", q, p.Year),
	}
}

// Previous returns the preceding BTW window of the same cadence.
func (w VATWindow) Previous() VATWindow {
	if w.Monthly {
		return VATWindowFor(w.From.Previous(), true)
	}
	return VATWindowFor(w.From.AddMonths(-3), false)
}

// Periods enumerates every month inside the window, oldest first.
func (w VATWindow) Periods() []Period {
	var out []Period
	for p := w.From; !p.Start().After(w.To.Start()); p = p.AddMonths(1) {
		out = append(out, p)
	}
	return out
}
