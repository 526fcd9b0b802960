package user

import (
	"strconv"
	"strings"
	"time"
)

// Offsets outside this range are clamped, matching what the wiki accepts.
const (
	minOffsetMinutes = -12 * 60
	maxOffsetMinutes = 14 * 60
)

// ParseTimeCorrection turns a timecorrection preference into a location.
// Accepted forms:
//
//	ZoneInfo|<minutes>|<Region/City>   named zone, fixed offset if the zone is unknown here
//	Offset|<minutes>                   fixed offset
//	System|<minutes>                   server default
//	[+-]hh[:mm]                        legacy hour offset
//
// Anything else, including the empty string, yields server.
// PRE: server is non-nil
// POST: Returns a non-nil location
func ParseTimeCorrection(pref string, server *time.Location) *time.Location {
	pref = strings.TrimSpace(pref)
	if pref == "" {
		return server
	}

	parts := strings.Split(pref, "|")
	switch parts[0] {
	case "System":
		return server
	case "ZoneInfo":
		if len(parts) >= 3 {
			if loc, err := time.LoadLocation(parts[2]); err == nil {
				return loc
			}
		}
		if len(parts) >= 2 {
			if m, err := strconv.Atoi(parts[1]); err == nil {
				return fixedZone(m)
			}
		}
		return server
	case "Offset":
		if len(parts) >= 2 {
			if m, err := strconv.Atoi(parts[1]); err == nil {
				return fixedZone(m)
			}
		}
		return server
	}

	if m, ok := parseLegacyOffset(pref); ok {
		return fixedZone(m)
	}
	return server
}

// LocalTime returns t in the user's preferred zone.
// PRE: server is non-nil
// POST: Returns the same instant, expressed in the user's zone
func (u User) LocalTime(t time.Time, server *time.Location) time.Time {
	return t.In(ParseTimeCorrection(u.TimeCorrection, server))
}

// parseLegacyOffset reads "hh", "hh:mm" or a signed variant into minutes.
func parseLegacyOffset(s string) (int, bool) {
	sign := 1
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	hh, mm, hasMinutes := strings.Cut(s, ":")
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, false
	}
	m := 0
	if hasMinutes {
		m, err = strconv.Atoi(mm)
		if err != nil || m < 0 || m >= 60 {
			return 0, false
		}
	}
	return sign * (h*60 + m), true
}

func fixedZone(minutes int) *time.Location {
	if minutes < minOffsetMinutes {
		minutes = minOffsetMinutes
	}
	if minutes > maxOffsetMinutes {
		minutes = maxOffsetMinutes
	}
	return time.FixedZone("", minutes*60)
}
