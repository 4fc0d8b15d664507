package model

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

var (
	digitsRe = regexp.MustCompile(`^\d+$`)
	minSecRe = regexp.MustCompile(`^(\d+):([0-5]?\d)$`)
)

// ParseCueTime parses a cue timestamp in any of the accepted spellings:
// bare seconds ("90") or minute:second ("1:30"). Anything unparseable
// yields zero rather than an error; a missing cue time is never fatal.
func ParseCueTime(value string) float64 {
	if value == "" {
		return 0
	}
	if digitsRe.MatchString(value) {
		n, _ := strconv.Atoi(value)
		return float64(n)
	}
	m := minSecRe.FindStringSubmatch(value)
	if m == nil {
		return 0
	}
	mins, _ := strconv.Atoi(m[1])
	secs, _ := strconv.Atoi(m[2])
	return float64(mins*60 + secs)
}

// CueSeconds extracts seconds from a heterogeneous raw cue time value:
// a number, a digit string, or an "m:ss" string.
func CueSeconds(value interface{}) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		return ParseCueTime(v)
	default:
		return 0
	}
}

// FormatTime renders seconds as "m:ss" for cue labels and transport UI.
// Negative and non-finite inputs clamp to zero.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
