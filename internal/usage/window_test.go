package usage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDayOf(t *testing.T) {
	in := time.Date(2026, 3, 14, 15, 9, 26, 535, time.UTC)
	require.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), DayOf(in))
}

func TestDayOf_ConvertsToUTC(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	in := time.Date(2026, 3, 14, 23, 30, 0, 0, loc)
	require.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), DayOf(in))
}

func TestMonthStartOf(t *testing.T) {
	in := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), MonthStartOf(in))

	// First instant of a month maps to itself.
	first := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, first, MonthStartOf(first))
}
