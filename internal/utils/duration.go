package utils

import (
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// HumanizeDuration renders d as "1 day, 2 hours, 3 minutes and 4 seconds",
// leaving out zero units. Anything under a second reads "0 seconds (about now)".
func HumanizeDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	units := []struct {
		size     time.Duration
		singular string
	}{
		{day, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
		{time.Second, "second"},
	}

	parts := make([]string, 0, len(units))
	for _, u := range units {
		n := int64(d / u.size)
		d -= time.Duration(n) * u.size
		if n == 0 {
			continue
		}
		name := u.singular
		if n > 1 {
			name += "s"
		}
		parts = append(parts, strconv.FormatInt(n, 10)+" "+name)
	}

	switch len(parts) {
	case 0:
		return "0 seconds (about now)"
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}

// ClockDuration renders d as HH:MM:SS, hours are not wrapped into days.
func ClockDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int64(d / time.Hour)
	m := int64(d/time.Minute) % 60
	s := int64(d/time.Second) % 60
	return pad2(h) + ":" + pad2(m) + ":" + pad2(s)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
