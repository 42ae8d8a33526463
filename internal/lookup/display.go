package lookup

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/docbook-web/internal/apiclient"
)

// StatusDisplay is how an appointment status is presented to a patient.
type StatusDisplay struct {
	Class   string
	Label   string
	Message string
}

var statusDisplays = map[apiclient.Status]StatusDisplay{
	apiclient.StatusConfirmed: {Class: "status-confirmed", Label: "Confirmed", Message: "Your appointment is confirmed!"},
	apiclient.StatusPending:   {Class: "status-pending", Label: "Pending", Message: "Waiting for confirmation"},
	apiclient.StatusCancelled: {Class: "status-cancelled", Label: "Cancelled", Message: "This appointment has been cancelled"},
}

// DisplayFor returns the presentation of status. Unknown statuses get a
// neutral style labelled with the raw value.
func DisplayFor(status apiclient.Status) StatusDisplay {
	if d, ok := statusDisplays[status]; ok {
		return d
	}
	return StatusDisplay{Class: "status-neutral", Label: string(status)}
}

// FormatDate renders YYYY-MM-DD as "Monday, January 2, 2006". Unparseable
// input is returned unchanged.
func FormatDate(date string) string {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(date))
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2, 2006")
}

// FormatTime renders HH:MM[:SS] on a 12-hour clock, e.g. "2:30 PM".
func FormatTime(clock string) string {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) < 2 {
		return clock
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return clock
	}
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:%s %s", display, parts[1], suffix)
}

// startsAt combines an appointment's date and time in loc.
func startsAt(date, clock string, loc *time.Location) (time.Time, bool) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, date+" "+clock, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
