package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWindowInWindowBoundaries(t *testing.T) {
	w := DefaultWindow
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"start inclusive 07:00:00", time.Date(2026, 3, 2, 7, 0, 0, 0, loc), true},
		{"mid-window 08:30", time.Date(2026, 3, 2, 8, 30, 0, 0, loc), true},
		{"end exclusive 10:00:00", time.Date(2026, 3, 2, 10, 0, 0, 0, loc), false},
		{"just before end 09:59:59", time.Date(2026, 3, 2, 9, 59, 59, 0, loc), true},
		{"before window 06:59:59", time.Date(2026, 3, 2, 6, 59, 59, 0, loc), false},
		{"after window 10:00:01", time.Date(2026, 3, 2, 10, 0, 1, 0, loc), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := w.InWindow(tc.at)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWindowRejectsInvertedBounds(t *testing.T) {
	w := Window{Timezone: "America/New_York", StartHour: 10, EndHour: 7}
	_, err := w.InWindow(time.Now())
	assert.Error(t, err)
}

func TestIsWeekend(t *testing.T) {
	w := DefaultWindow
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	saturday := time.Date(2026, 3, 7, 8, 0, 0, 0, loc)
	monday := time.Date(2026, 3, 9, 8, 0, 0, 0, loc)

	isWeekend, err := w.IsWeekend(saturday)
	require.NoError(t, err)
	assert.True(t, isWeekend)

	isWeekend, err = w.IsWeekend(monday)
	require.NoError(t, err)
	assert.False(t, isWeekend)
}
