package quest

import (
	"testing"
	"time"

	"dulpton-point/services/catalog"

	"github.com/stretchr/testify/require"
)

func TestWindow_Daily(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	now := time.Date(2026, 3, 4, 23, 30, 0, 0, loc)

	start, end := Window(catalog.Daily, now, loc)
	require.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, loc), start)
	require.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, loc), end)

	// 17:30 UTC on the 4th is already the 5th in UTC+7.
	start, _ = Window(catalog.Daily, time.Date(2026, 3, 4, 17, 30, 0, 0, time.UTC), loc)
	require.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, loc), start)
}

func TestWindow_WeeklyStartsSunday(t *testing.T) {
	// 2026-03-04 is a Wednesday, 2026-03-01 a Sunday.
	wed := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	start, end := Window(catalog.Weekly, wed, time.UTC)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), end)

	sunday := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	start, _ = Window(catalog.Weekly, sunday, time.UTC)
	require.Equal(t, sunday, start)

	saturday := time.Date(2026, 3, 7, 23, 59, 59, 0, time.UTC)
	start, _ = Window(catalog.Weekly, saturday, time.UTC)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestProgressKey_RoundTrip(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	key := ProgressKey("daily_spin_wheel", start)
	require.Equal(t, "daily_spin_wheel@1772323200", key)

	id, at, ok := ParseProgressKey(key)
	require.True(t, ok)
	require.Equal(t, "daily_spin_wheel", id)
	require.True(t, at.Equal(start))

	_, _, ok = ParseProgressKey("garbage")
	require.False(t, ok)
	_, _, ok = ParseProgressKey("x@notanumber")
	require.False(t, ok)

	require.Equal(t, "quest:daily_spin_wheel:1772323200", ClaimReference("daily_spin_wheel", start))
}

func TestClaimKey_ParsesToQuest(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	key := ClaimKey("daily_spin_wheel", start)
	require.NotEqual(t, ProgressKey("daily_spin_wheel", start), key)

	id, at, ok := ParseProgressKey(key)
	require.True(t, ok)
	require.Equal(t, "daily_spin_wheel", id)
	require.True(t, at.Equal(start))
}
