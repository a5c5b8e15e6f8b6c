package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTurnaroundSeconds(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("elapsed time in whole seconds", func(t *testing.T) {
		assert.Equal(t, int64(90), TurnaroundSeconds(base, base.Add(90*time.Second)))
		assert.Equal(t, int64(90), TurnaroundSeconds(base, base.Add(90*time.Second+500*time.Millisecond)))
	})

	t.Run("clock skew clamps to zero", func(t *testing.T) {
		assert.Equal(t, int64(0), TurnaroundSeconds(base, base.Add(-5*time.Minute)))
	})

	t.Run("monotone in now", func(t *testing.T) {
		prev := int64(-1)
		for i := 0; i < 100; i++ {
			got := TurnaroundSeconds(base, base.Add(time.Duration(i)*7*time.Minute))
			assert.GreaterOrEqual(t, got, prev)
			prev = got
		}
	})
}

func TestIsBreached(t *testing.T) {
	submitted := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("within window", func(t *testing.T) {
		assert.False(t, IsBreached(submitted, submitted.Add(47*time.Hour), 48, true))
	})

	t.Run("exactly at the window is not yet breached", func(t *testing.T) {
		assert.False(t, IsBreached(submitted, submitted.Add(48*time.Hour), 48, true))
	})

	t.Run("past the window while pending", func(t *testing.T) {
		assert.True(t, IsBreached(submitted, submitted.Add(48*time.Hour+time.Second), 48, true))
	})

	t.Run("24 hour window breaches sooner", func(t *testing.T) {
		now := submitted.Add(25 * time.Hour)
		assert.True(t, IsBreached(submitted, now, 24, true))
		assert.False(t, IsBreached(submitted, now, 48, true))
	})

	t.Run("decided cases never breach", func(t *testing.T) {
		assert.False(t, IsBreached(submitted, submitted.Add(1000*time.Hour), 48, false))
	})

	t.Run("unset window falls back to default", func(t *testing.T) {
		assert.False(t, IsBreached(submitted, submitted.Add(47*time.Hour), 0, true))
		assert.True(t, IsBreached(submitted, submitted.Add(49*time.Hour), 0, true))
	})
}

func TestFormatTurnaround(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{0, "<1m"},
		{59, "<1m"},
		{60, "1m"},
		{7 * 60, "7m"},
		{59*60 + 59, "59m"},
		{5*3600 + 6*60, "05h 06m"},
		{23*3600 + 59*60, "23h 59m"},
		{2*86400 + 3*3600 + 4*60, "2d 03h 04m"},
		{10 * 86400, "10d 00h 00m"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatTurnaround(tc.seconds), "seconds=%d", tc.seconds)
	}
}
