// Package calendar renders planned meals as an iCalendar document.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultDurationMin is assumed when a meal has no duration.
const DefaultDurationMin = 45

// Meal is one planned cooking slot.
type Meal struct {
	Title       string
	Start       time.Time
	DurationMin int
	URL         string
}

// BuildWeekICS renders the meals as a VCALENDAR document. Times are
// written in UTC.
func BuildWeekICS(meals []Meal) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//recipedex//meal plan//EN\r\n")

	now := time.Now().UTC()
	for _, m := range meals {
		duration := m.DurationMin
		if duration <= 0 {
			duration = DefaultDurationMin
		}
		start := m.Start.UTC()
		end := start.Add(time.Duration(duration) * time.Minute)

		b.WriteString("BEGIN:VEVENT\r\n")
		fmt.Fprintf(&b, "UID:%s\r\n", uuid.New())
		fmt.Fprintf(&b, "DTSTAMP:%s\r\n", now.Format("20060102T150405Z"))
		fmt.Fprintf(&b, "DTSTART:%s\r\n", start.Format("20060102T150405Z"))
		fmt.Fprintf(&b, "DTEND:%s\r\n", end.Format("20060102T150405Z"))
		fmt.Fprintf(&b, "SUMMARY:%s\r\n", escapeText(m.Title))
		if m.URL != "" {
			fmt.Fprintf(&b, "DESCRIPTION:%s\r\n", escapeText(m.URL))
		}
		b.WriteString("END:VEVENT\r\n")
	}

	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

// escapeText applies RFC 5545 text escaping.
func escapeText(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\n", "\\n",
	)
	return r.Replace(s)
}
