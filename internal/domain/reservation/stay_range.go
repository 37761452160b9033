package reservation

import (
	"fmt"
	"time"

	"github.com/ema-residences/service-reservation/internal/platform/domain"
)

const (
	dateLayout    = "2006-01-02"
	secondsPerDay = 24 * 60 * 60
)

// StayRange is a half-open interval [Start, End) in UTC.
type StayRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewStayRange validates end > start and normalizes both to UTC.
func NewStayRange(start, end time.Time) (StayRange, error) {
	start, end = start.UTC(), end.UTC()
	if !end.After(start) {
		return StayRange{}, domain.NewInvalidDateRangeError("stayEnd must be after stayStart")
	}
	return StayRange{Start: start, End: end}, nil
}

// ParseStayRange parses two ISO-8601 values (calendar date or RFC 3339) into a StayRange.
func ParseStayRange(start, end string) (StayRange, error) {
	s, err := ParseStayDate(start)
	if err != nil {
		return StayRange{}, err
	}
	e, err := ParseStayDate(end)
	if err != nil {
		return StayRange{}, err
	}
	return NewStayRange(s, e)
}

// ParseStayDate accepts "YYYY-MM-DD" (midnight UTC) or an RFC 3339 timestamp.
func ParseStayDate(v string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, domain.NewInvalidDateRangeError(fmt.Sprintf("unparseable date %q", v))
}

// Nights is ceil((End-Start)/24h). It counts in whole seconds since time.Duration saturates
// for stays longer than about 292 years.
func (r StayRange) Nights() int64 {
	secs := r.End.Unix() - r.Start.Unix()
	nanos := r.End.Nanosecond() - r.Start.Nanosecond()
	if nanos < 0 {
		secs--
		nanos += int(time.Second)
	}
	nights := secs / secondsPerDay
	if secs%secondsPerDay != 0 || nanos > 0 {
		nights++
	}
	return nights
}

// Overlaps reports whether the half-open ranges intersect. Touching ranges do not overlap.
func (r StayRange) Overlaps(other StayRange) bool {
	return r.Start.Before(other.End) && r.End.After(other.Start)
}

// FormatStayTime renders a stay boundary for the wire and for error details.
func FormatStayTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func (r StayRange) String() string {
	return fmt.Sprintf("[%s, %s)", FormatStayTime(r.Start), FormatStayTime(r.End))
}
