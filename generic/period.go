package generic

import "fmt"

// =============================================================================
// PERIOD - Inclusive calendar-date range
// =============================================================================

// Period is an inclusive [Start, End] range of calendar days.
//
// Examples:
//   - First half of June: 2024-06-01 - 2024-06-15
//   - Single day:         2024-06-03 - 2024-06-03
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod builds a validated period.
func NewPeriod(start, end TimePoint) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// ParsePeriod builds a validated period from two YYYY-MM-DD strings.
func ParsePeriod(start, end string) (Period, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Period{}, fmt.Errorf("%w: period_start: %v", ErrInvalidPeriod, err)
	}
	e, err := ParseDate(end)
	if err != nil {
		return Period{}, fmt.Errorf("%w: period_end: %v", ErrInvalidPeriod, err)
	}
	return NewPeriod(s, e)
}

// Validate rejects zero dates and ranges that end before they start.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidPeriod)
	}
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Equal is exact range equality. Overlapping ranges are not equal.
func (p Period) Equal(other Period) bool {
	return p.Start.Equal(other.Start) && p.End.Equal(other.End)
}

// Days returns the number of calendar days in the period, both ends included.
func (p Period) Days() int {
	return DaysBetween(p.Start, p.End) + 1
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
