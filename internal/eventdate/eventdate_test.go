package eventdate

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jakartaClock(t *testing.T, now time.Time) *Clock {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	return NewClockAt(loc, func() time.Time { return now })
}

func TestToEventDate(t *testing.T) {
	// 2024-01-06 20:00 UTC is already Sunday 03:00 in Jakarta.
	now := time.Date(2024, 1, 6, 20, 0, 0, 0, time.UTC)
	clock := jakartaClock(t, now)

	tests := []struct {
		name    string
		strict  bool
		input   string
		want    string
		wantErr bool
	}{
		{name: "explicit date", strict: true, input: "2024-01-14", want: "2024-01-14"},
		{name: "empty uses reference today", strict: true, input: "", want: "2024-01-07"},
		{name: "malformed strict", strict: true, input: "14/01/2024", wantErr: true},
		{name: "out of range strict", strict: true, input: "2024-02-30", wantErr: true},
		{name: "malformed lenient falls back", strict: false, input: "not-a-date", want: "2024-01-07"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewNormalizer(clock, tt.strict).ToEventDate(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, Key(got))
			assert.Equal(t, time.UTC, got.Location())
			assert.Zero(t, got.Hour())
		})
	}
}

func TestWeekStart(t *testing.T) {
	wed := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-01-07", Key(WeekStart(wed, time.Sunday)))
	assert.Equal(t, "2024-01-13", Key(WeekEnd(wed, time.Sunday)))
	assert.Equal(t, "2024-01-08", Key(WeekStart(wed, time.Monday)))

	sunday := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, sunday, WeekStart(sunday, time.Sunday))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 7, DaysBetween(a, AddDays(a, 7)))
	assert.Equal(t, -14, DaysBetween(a, AddDays(a, -14)))
}

func TestKeyRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	base := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("Key(Parse(d)) == d for well-formed dates", prop.ForAll(
		func(offset int) bool {
			d := base.AddDate(0, 0, offset).Format(Layout)
			parsed, err := Parse(d)
			if err != nil {
				return false
			}
			return Key(parsed) == d
		},
		gen.IntRange(0, 60000),
	))

	properties.TestingRun(t)
}
