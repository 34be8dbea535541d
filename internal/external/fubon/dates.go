package fubon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateSepRe = regexp.MustCompile(`[/-]`)

// NormalizeDate converts the site's date formats to "2006-01-02".
//
// Three segments are year/month/day; years below 1911 are Republic-calendar
// and get 1911 added. Two segments are month/day with the year inferred from
// now: current year, unless the month is more than two months ahead of now,
// in which case the row is from the previous year (the site omits the year
// and wraps around at year end). Already-normalized ISO dates pass through
// unchanged.
func NormalizeDate(s string, now time.Time) (string, bool) {
	parts := dateSepRe.Split(strings.TrimSpace(s), -1)

	switch len(parts) {
	case 3:
		y, errY := strconv.Atoi(strings.TrimSpace(parts[0]))
		m, errM := strconv.Atoi(strings.TrimSpace(parts[1]))
		d, errD := strconv.Atoi(strings.TrimSpace(parts[2]))
		if errY != nil || errM != nil || errD != nil {
			return "", false
		}
		if y < 1911 {
			y += 1911
		}
		if m < 1 || m > 12 || d < 1 || d > 31 {
			return "", false
		}
		return fmt.Sprintf("%04d-%02d-%02d", y, m, d), true

	case 2:
		m, errM := strconv.Atoi(strings.TrimSpace(parts[0]))
		d, errD := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errM != nil || errD != nil {
			return "", false
		}
		if m < 1 || m > 12 || d < 1 || d > 31 {
			return "", false
		}
		y := now.Year()
		if m > int(now.Month())+2 {
			y--
		}
		return fmt.Sprintf("%04d-%02d-%02d", y, m, d), true
	}

	return "", false
}
