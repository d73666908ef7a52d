package extract

import (
	"regexp"
	"strconv"
	"time"
)

// KST is the fixed zone every announcement date is expressed in.
var KST = time.FixedZone("KST", 9*60*60)

var (
	dateRe      = regexp.MustCompile(`(\d{4})\s*[-./년]\s*(\d{1,2})\s*[-./월]\s*(\d{1,2})`)
	dateRangeRe = regexp.MustCompile(
		`(\d{4}\s*[-./년]\s*\d{1,2}\s*[-./월]\s*\d{1,2})[^~\n]{0,24}~\s*(\d{4}\s*[-./년]\s*\d{1,2}\s*[-./월]\s*\d{1,2})`,
	)
)

// ParseDate returns the first date found in s at start of day, or nil.
func ParseDate(s string) *time.Time {
	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, KST)
	if t.Day() != day {
		return nil
	}
	return &t
}

// ParseDateRange extracts "start ~ end" from s. The start is normalized to 00:00:00 and the end to
// 23:59:59. Either side may be nil when absent or malformed.
func ParseDateRange(s string) (start, end *time.Time) {
	if m := dateRangeRe.FindStringSubmatch(s); m != nil {
		return ParseDate(m[1]), EndOfDay(ParseDate(m[2]))
	}
	return nil, nil
}

// EndOfDay moves t to 23:59:59 on the same calendar day.
func EndOfDay(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	y, m, d := t.Date()
	eod := time.Date(y, m, d, 23, 59, 59, 0, t.Location())
	return &eod
}

// ParseISODate parses a YYYY-MM-DD value as produced by the LLM; anything else yields nil.
func ParseISODate(s string) *time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, KST)
	if err != nil {
		return nil
	}
	return &t
}
