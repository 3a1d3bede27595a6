package quest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dulpton-point/services/catalog"
)

// Window returns the [start, end) interval of period containing now, in loc.
// Weekly windows start on Sunday 00:00.
func Window(period catalog.QuestPeriod, now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()

	if period == catalog.Weekly {
		start := time.Date(y, m, d-int(local.Weekday()), 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 0, 7)
	}
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// ProgressKey binds a quest counter to one window.
func ProgressKey(questID string, windowStart time.Time) string {
	return questID + "@" + strconv.FormatInt(windowStart.Unix(), 10)
}

const claimSuffix = "#claimed"

// ClaimKey marks a quest claimed for one window in the progress map. It lives
// and is pruned alongside the counter of the same window.
func ClaimKey(questID string, windowStart time.Time) string {
	return ProgressKey(questID+claimSuffix, windowStart)
}

// ParseProgressKey splits a key produced by ProgressKey or ClaimKey.
func ParseProgressKey(key string) (string, time.Time, bool) {
	i := strings.LastIndexByte(key, '@')
	if i <= 0 {
		return "", time.Time{}, false
	}
	unix, err := strconv.ParseInt(key[i+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return strings.TrimSuffix(key[:i], claimSuffix), time.Unix(unix, 0), true
}

// ClaimReference is the ledger reference of a quest reward, unique per window.
func ClaimReference(questID string, windowStart time.Time) string {
	return fmt.Sprintf("quest:%s:%d", questID, windowStart.Unix())
}
