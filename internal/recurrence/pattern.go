// Package recurrence validates the recurrence patterns stored on tasks and
// rewrites them into one canonical RRULE form. Patterns are recorded only;
// nothing expands them into occurrences.
package recurrence

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Freq int

const (
	Daily Freq = iota
	Weekly
	Monthly
	Yearly
)

var freqNames = []string{
	Daily:   "DAILY",
	Weekly:  "WEEKLY",
	Monthly: "MONTHLY",
	Yearly:  "YEARLY",
}

// shorthands are the plain words clients may send instead of an RRULE.
var shorthands = map[string]Rule{
	"DAILY":    {Freq: Daily, Interval: 1},
	"WEEKLY":   {Freq: Weekly, Interval: 1},
	"BIWEEKLY": {Freq: Weekly, Interval: 2},
	"MONTHLY":  {Freq: Monthly, Interval: 1},
	"YEARLY":   {Freq: Yearly, Interval: 1},
}

var weekdays = []string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

// Rule is the subset of RFC 5545 recurrence rules a task can carry. The end
// of a series lives on the task's schedule, so UNTIL is not accepted here.
type Rule struct {
	Freq       Freq
	Interval   int
	ByDay      []time.Weekday
	ByMonthDay int
	Count      int
}

// Parse accepts a shorthand word such as "weekly" or an RRULE such as
// "FREQ=WEEKLY;BYDAY=MO,TH", with or without the "RRULE:" prefix. Case and
// surrounding space are ignored.
func Parse(pattern string) (Rule, error) {
	pattern = strings.ToUpper(strings.TrimSpace(pattern))
	pattern = strings.TrimPrefix(pattern, "RRULE:")
	if pattern == "" {
		return Rule{}, fmt.Errorf("empty pattern")
	}
	if r, ok := shorthands[pattern]; ok {
		return r, nil
	}

	r := Rule{Interval: 1}
	seen := make(map[string]bool)
	for _, part := range strings.Split(pattern, ";") {
		key, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || val == "" {
			return Rule{}, fmt.Errorf("invalid rule part %q", part)
		}
		if seen[key] {
			return Rule{}, fmt.Errorf("duplicate %s", key)
		}
		seen[key] = true

		var err error
		switch key {
		case "FREQ":
			i := slices.Index(freqNames, val)
			if i < 0 {
				return Rule{}, fmt.Errorf("unknown frequency %q", val)
			}
			r.Freq = Freq(i)
		case "INTERVAL":
			r.Interval, err = positive(key, val, 0)
		case "COUNT":
			r.Count, err = positive(key, val, 0)
		case "BYMONTHDAY":
			r.ByMonthDay, err = positive(key, val, 31)
		case "BYDAY":
			for _, day := range strings.Split(val, ",") {
				i := slices.Index(weekdays, strings.TrimSpace(day))
				if i < 0 {
					return Rule{}, fmt.Errorf("unknown day %q", day)
				}
				if !slices.Contains(r.ByDay, time.Weekday(i)) {
					r.ByDay = append(r.ByDay, time.Weekday(i))
				}
			}
		default:
			return Rule{}, fmt.Errorf("unsupported rule key %q", key)
		}
		if err != nil {
			return Rule{}, err
		}
	}

	if !seen["FREQ"] {
		return Rule{}, fmt.Errorf("FREQ is required")
	}
	if len(r.ByDay) > 0 && r.Freq != Weekly {
		return Rule{}, fmt.Errorf("BYDAY needs FREQ=WEEKLY")
	}
	if r.ByMonthDay > 0 && r.Freq != Monthly {
		return Rule{}, fmt.Errorf("BYMONTHDAY needs FREQ=MONTHLY")
	}
	return r, nil
}

func positive(key, val string, max int) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil || n < 1 || (max > 0 && n > max) {
		return 0, fmt.Errorf("invalid %s %q", key, val)
	}
	return n, nil
}

// String renders the canonical RRULE. Days are listed in week order.
func (r Rule) String() string {
	parts := []string{"FREQ=" + freqNames[r.Freq]}
	if r.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if len(r.ByDay) > 0 {
		days := slices.Clone(r.ByDay)
		slices.Sort(days)
		names := make([]string, len(days))
		for i, d := range days {
			names[i] = weekdays[d]
		}
		parts = append(parts, "BYDAY="+strings.Join(names, ","))
	}
	if r.ByMonthDay > 0 {
		parts = append(parts, "BYMONTHDAY="+strconv.Itoa(r.ByMonthDay))
	}
	if r.Count > 0 {
		parts = append(parts, "COUNT="+strconv.Itoa(r.Count))
	}
	return strings.Join(parts, ";")
}

// Normalize parses pattern and returns its canonical form.
func Normalize(pattern string) (string, error) {
	r, err := Parse(pattern)
	if err != nil {
		return "", err
	}
	return r.String(), nil
}
