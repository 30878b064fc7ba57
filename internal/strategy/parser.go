package strategy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Web3Newcomer/polymarket-weather/pkg/types"
)

// Sentinel bounds for open-ended temperature buckets.
// "36°F or higher" parses as [36, 999]; "32°F or below" as [-999, 32].
const (
	BucketOpenLow  = -999
	BucketOpenHigh = 999
)

// weatherKeywords identify weather markets by substring match on the
// question text. Case-insensitive.
var weatherKeywords = []string{
	"temperature", "°f", "highest temp", "lowest temp",
	"high temp", "low temp", "weather",
}

// locationAliases maps city and airport names found in question text to
// canonical city codes. Aliases are chosen disjoint, so first match wins.
var locationAliases = []struct {
	alias    string
	location string
}{
	{"nyc", "NYC"}, {"new york", "NYC"}, {"laguardia", "NYC"}, {"la guardia", "NYC"},
	{"chicago", "Chicago"}, {"o'hare", "Chicago"}, {"ohare", "Chicago"},
	{"seattle", "Seattle"}, {"sea-tac", "Seattle"},
	{"atlanta", "Atlanta"}, {"hartsfield", "Atlanta"},
	{"dallas", "Dallas"}, {"dfw", "Dallas"},
	{"miami", "Miami"},
}

var monthsByName = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var (
	monthDayRe    = regexp.MustCompile(`(?i)on\s+([a-zA-Z]+)\s+(\d{1,2})`)
	bucketBelowRe = regexp.MustCompile(`(?i)(\d+)\s*°?[fF]?\s*(or below|or less)`)
	bucketAboveRe = regexp.MustCompile(`(?i)(\d+)\s*°?[fF]?\s*(or higher|or above|or more)`)
	bucketRangeRe = regexp.MustCompile(`(\d+)\s*(?:-|–|to)+\s*(\d+)`)
)

// EventInfo describes one weather event extracted from a market question:
// which city, which calendar day, and whether the market resolves against
// the daily high or low.
type EventInfo struct {
	Location string
	Date     string // "YYYY-MM-DD"
	Metric   types.TempMetric
}

// Bucket is a temperature range in °F, inclusive on both ends.
// Low <= High always holds after parsing.
type Bucket struct {
	Low  int
	High int
}

// Contains reports whether temp falls inside the bucket.
func (b Bucket) Contains(temp int) bool {
	return b.Low <= temp && temp <= b.High
}

// IsWeatherMarket reports whether a question looks like a weather market.
func IsWeatherMarket(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range weatherKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// ParseWeatherEvent extracts the city, resolution date, and metric from an
// event title like "Will the highest temperature at NYC on January 15 be ...".
//
// The title carries no year, so the date is resolved against now: the
// current year is assumed, rolling forward one year when the result would
// be more than 30 days in the past (events referenced across the December/
// January boundary). Returns false if the location or date cannot be
// confidently extracted, or if the date is not a valid calendar day.
func ParseWeatherEvent(title string, now time.Time) (EventInfo, bool) {
	if title == "" {
		return EventInfo{}, false
	}
	lower := strings.ToLower(title)

	metric := types.MetricHigh
	if strings.Contains(lower, "lowest") || strings.Contains(lower, "low temp") {
		metric = types.MetricLow
	}

	location := ""
	for _, a := range locationAliases {
		if strings.Contains(lower, a.alias) {
			location = a.location
			break
		}
	}
	if location == "" {
		return EventInfo{}, false
	}

	m := monthDayRe.FindStringSubmatch(title)
	if m == nil {
		return EventInfo{}, false
	}
	month, ok := monthsByName[strings.ToLower(m[1])]
	if !ok {
		return EventInfo{}, false
	}
	day, err := strconv.Atoi(m[2])
	if err != nil {
		return EventInfo{}, false
	}

	year := now.Year()
	target := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if target.Month() != month || target.Day() != day {
		// time.Date normalizes overflows (Feb 30 → Mar 2); reject those.
		return EventInfo{}, false
	}
	if target.Before(now.AddDate(0, 0, -30)) {
		year++
		target = time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		if target.Month() != month || target.Day() != day {
			return EventInfo{}, false
		}
	}

	return EventInfo{
		Location: location,
		Date:     target.Format("2006-01-02"),
		Metric:   metric,
	}, true
}

// ParseTemperatureBucket extracts the temperature range a market resolves
// against. Pattern attempts, first match wins:
//
//	"32°F or below"  → [-999, 32]
//	"36°F or higher" → [36, 999]
//	"45-55°F"        → [45, 55]   (reversed ranges are normalized ascending)
func ParseTemperatureBucket(text string) (Bucket, bool) {
	if text == "" {
		return Bucket{}, false
	}

	if m := bucketBelowRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Bucket{}, false
		}
		return Bucket{Low: BucketOpenLow, High: n}, true
	}

	if m := bucketAboveRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Bucket{}, false
		}
		return Bucket{Low: n, High: BucketOpenHigh}, true
	}

	if m := bucketRangeRe.FindStringSubmatch(text); m != nil {
		lo, err1 := strconv.Atoi(m[1])
		hi, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			return Bucket{}, false
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		return Bucket{Low: lo, High: hi}, true
	}

	return Bucket{}, false
}

// FormatBucketName renders a bucket the way market questions phrase it.
func FormatBucketName(b Bucket) string {
	switch {
	case b.Low == BucketOpenLow:
		return fmt.Sprintf("%d°F or below", b.High)
	case b.High == BucketOpenHigh:
		return fmt.Sprintf("%d°F or higher", b.Low)
	default:
		return fmt.Sprintf("%d-%d°F", b.Low, b.High)
	}
}
