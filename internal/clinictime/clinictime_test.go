package clinictime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2025, Month: time.June, Day: 10}, d)
	assert.Equal(t, time.Tuesday, d.Weekday())

	for _, raw := range []string{"", "2025-6-10", "10/06/2025", "2025-02-30", "tomorrow", "2025-06-10T09:00:00Z"} {
		_, err := ParseDate(raw)
		assert.ErrorIs(t, err, ErrInvalidDate, "input %q", raw)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		raw  string
		want Clock
	}{
		{"09:00:00", NewClock(9, 0, 0)},
		{"9:00", NewClock(9, 0, 0)},
		{"14:30", NewClock(14, 30, 0)},
		{"2:30 PM", NewClock(14, 30, 0)},
		{"02:30 pm", NewClock(14, 30, 0)},
		{"8:05AM", NewClock(8, 5, 0)},
		{"12:00 PM", NewClock(12, 0, 0)},
		{"12:15 AM", NewClock(0, 15, 0)},
		{"07:59:30", NewClock(7, 59, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseClock(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, raw := range []string{"", "noon", "25:00", "13:00 PM", "9", "9:7"} {
		_, err := ParseClock(raw)
		assert.ErrorIs(t, err, ErrInvalidClock, "input %q", raw)
	}
}

func TestClockFormatting(t *testing.T) {
	assert.Equal(t, "08:30 AM", NewClock(8, 30, 0).Label())
	assert.Equal(t, "12:00 PM", NewClock(12, 0, 0).Label())
	assert.Equal(t, "01:00 PM", NewClock(13, 0, 0).Label())
	assert.Equal(t, "12:00 AM", NewClock(0, 0, 0).Label())
	assert.Equal(t, "16:30:00", NewClock(16, 30, 0).String())
	assert.Equal(t, 30*time.Minute, NewClock(9, 30, 0).Sub(NewClock(9, 0, 0)))
	assert.Equal(t, NewClock(10, 0, 0), NewClock(9, 0, 0).Add(time.Hour))
}

func TestTodayUsesClinicZone(t *testing.T) {
	loc := FixedZone(8)
	// 20:00 UTC on the 9th is already the 10th at UTC+8.
	now := time.Date(2025, 6, 9, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, Date{Year: 2025, Month: time.June, Day: 10}, Today(now, loc))
	assert.Equal(t, "UTC+8", loc.String())
	assert.Equal(t, time.UTC, FixedZone(0))
}

func TestDateArithmetic(t *testing.T) {
	d := Date{Year: 2025, Month: time.December, Day: 31}
	assert.Equal(t, "2026-01-01", d.AddDays(1).String())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.False(t, d.Before(d))
	assert.True(t, Date{}.IsZero())

	loc := FixedZone(8)
	at := d.At(NewClock(9, 30, 0), loc)
	assert.Equal(t, 9, at.Hour())
	assert.Equal(t, 30, at.Minute())
}

func TestJSONRoundTripUsesCanonicalForms(t *testing.T) {
	type payload struct {
		Date Date  `json:"date"`
		Time Clock `json:"time"`
	}
	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2025-06-10","time":"9:30 AM"}`), &p))
	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-06-10","time":"09:30:00"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"date":"June 10"}`), &p))
}
