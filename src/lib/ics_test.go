package lib

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildICS(t *testing.T) {
	start := time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	ics := BuildICS("Booking with demo-barber", "Haircut; bring cash, please", start, end)

	assert.True(t, strings.HasPrefix(ics, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(ics, "END:VCALENDAR\r\n"))
	assert.Contains(t, ics, "DTSTART:20260805T090000Z")
	assert.Contains(t, ics, "DTEND:20260805T100000Z")
	assert.Contains(t, ics, "SUMMARY:Booking with demo-barber")
	// reserved characters are escaped per RFC 5545
	assert.Contains(t, ics, "DESCRIPTION:Haircut\\; bring cash\\, please")
}
