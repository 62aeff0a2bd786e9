package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekdayOf(t *testing.T) {
	cases := map[string]string{
		"2025-01-06": "monday",
		"2025-01-12": "sunday",
		"2024-02-29": "thursday",
		"2000-01-01": "saturday",
	}
	for date, want := range cases {
		got, err := WeekdayOf(date)
		require.NoError(t, err, date)
		assert.Equal(t, want, got, date)
	}

	_, err := WeekdayOf("2025-02-30")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, m)

	m, err = ParseClock("9:05")
	require.NoError(t, err)
	assert.Equal(t, "09:05", FormatClock(m))

	for _, bad := range []string{"", "24:00", "12:60", "noon", "12:5", "123:00"} {
		_, err := ParseClock(bad)
		assert.ErrorIs(t, err, ErrInvalidClock, bad)
	}
}

func TestValidateTemplate(t *testing.T) {
	good := WeeklyTemplate{"monday": {
		IsAvailable: true,
		Sessions:    []Session{{Start: "09:00", End: "12:00", SlotDuration: 15, IsActive: true}},
		Breaks:      []Break{{Start: "10:00", End: "10:15", IsActive: true}},
	}}
	require.NoError(t, ValidateTemplate(good))

	assert.ErrorIs(t, ValidateTemplate(WeeklyTemplate{"funday": {}}), ErrInvalidTemplate)
	assert.ErrorIs(t, ValidateTemplate(WeeklyTemplate{"monday": {
		Sessions: []Session{{Start: "12:00", End: "09:00", SlotDuration: 15}},
	}}), ErrInvalidTemplate)
	assert.ErrorIs(t, ValidateTemplate(WeeklyTemplate{"monday": {
		Sessions: []Session{{Start: "09:00", End: "10:00"}},
	}}), ErrInvalidTemplate)
	assert.ErrorIs(t, ValidateTemplate(WeeklyTemplate{"monday": {
		Breaks: []Break{{Start: "9am", End: "10:00"}},
	}}), ErrInvalidClock)
}
