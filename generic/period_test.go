package generic

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TIME POINT
// =============================================================================

func TestTimePoint_DropsTimeOfDay(t *testing.T) {
	morning := DateOf(time.Date(2024, time.June, 3, 8, 15, 0, 0, time.UTC))
	night := DateOf(time.Date(2024, time.June, 3, 23, 59, 59, 0, time.UTC))

	assert.True(t, morning.Equal(night))
	assert.Equal(t, "2024-06-03", night.String())
	assert.True(t, night.StartOfDay().Equal(time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)))
	assert.True(t, night.EndOfDay().Before(time.Date(2024, time.June, 4, 0, 0, 0, 0, time.UTC)))
}

func TestParseDate(t *testing.T) {
	tp, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, NewTimePoint(2024, time.February, 29), tp)

	for _, bad := range []string{"", "2024-13-01", "03/06/2024", "2023-02-29"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

// =============================================================================
// PERIOD
// =============================================================================

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		wantErr    bool
	}{
		{"half month", "2024-06-01", "2024-06-15", false},
		{"single day", "2024-06-03", "2024-06-03", false},
		{"end before start", "2024-06-15", "2024-06-01", true},
		{"missing start", "", "2024-06-01", true},
		{"malformed end", "2024-06-01", "June 15", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePeriod(tt.start, tt.end)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidPeriod), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, p.Start.String())
			assert.Equal(t, tt.end, p.End.String())
		})
	}
}

func TestPeriod_ValidateZero(t *testing.T) {
	assert.ErrorIs(t, Period{}.Validate(), ErrInvalidPeriod)
	assert.ErrorIs(t, Period{Start: MustParseDate("2024-06-01")}.Validate(), ErrInvalidPeriod)
}

func TestPeriod_ContainsIsInclusive(t *testing.T) {
	// GIVEN: The first half of June
	p := Period{Start: MustParseDate("2024-06-01"), End: MustParseDate("2024-06-15")}

	// THEN: Both boundary days are inside, neighbours are not
	assert.True(t, p.Contains(MustParseDate("2024-06-01")))
	assert.True(t, p.Contains(MustParseDate("2024-06-15")))
	assert.True(t, p.Contains(DateOf(time.Date(2024, time.June, 15, 23, 30, 0, 0, time.UTC))))
	assert.False(t, p.Contains(MustParseDate("2024-05-31")))
	assert.False(t, p.Contains(MustParseDate("2024-06-16")))
	assert.Equal(t, 15, p.Days())
}

func TestPeriod_EqualIsExact(t *testing.T) {
	p := Period{Start: MustParseDate("2024-06-01"), End: MustParseDate("2024-06-15")}

	assert.True(t, p.Equal(Period{Start: NewTimePoint(2024, time.June, 1), End: NewTimePoint(2024, time.June, 15)}))
	assert.False(t, p.Equal(Period{Start: MustParseDate("2024-06-01"), End: MustParseDate("2024-06-16")}))
	assert.False(t, p.Equal(Period{Start: MustParseDate("2024-06-10"), End: MustParseDate("2024-06-20")}))
}
