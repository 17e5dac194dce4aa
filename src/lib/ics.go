package lib

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const icsTimeFormat = "20060102T150405Z"

// BuildICS renders a minimal single-event iCalendar document for a booking
// confirmation email attachment.
func BuildICS(summary string, description string, start time.Time, end time.Time) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//qrshop//booking//EN\r\n")
	b.WriteString("METHOD:PUBLISH\r\n")
	b.WriteString("BEGIN:VEVENT\r\n")
	fmt.Fprintf(&b, "UID:%s\r\n", uuid.NewString())
	fmt.Fprintf(&b, "DTSTAMP:%s\r\n", time.Now().UTC().Format(icsTimeFormat))
	fmt.Fprintf(&b, "DTSTART:%s\r\n", start.UTC().Format(icsTimeFormat))
	fmt.Fprintf(&b, "DTEND:%s\r\n", end.UTC().Format(icsTimeFormat))
	fmt.Fprintf(&b, "SUMMARY:%s\r\n", icsEscape(summary))
	if description != "" {
		fmt.Fprintf(&b, "DESCRIPTION:%s\r\n", icsEscape(description))
	}
	b.WriteString("END:VEVENT\r\n")
	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

func icsEscape(s string) string {
	r := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")
	return r.Replace(s)
}
