package calendar

import (
	"fmt"
	"sort"
	"time"
)

const dateKeyLayout = "2006-01-02"

// DateKey is a calendar date in the display timezone.
type DateKey struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the date t falls on in loc. A nil loc means UTC.
func DateOf(t time.Time, loc *time.Location) DateKey {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return DateKey{Year: y, Month: m, Day: d}
}

// ParseDateKey parses a YYYY-MM-DD date.
func ParseDateKey(s string) (DateKey, error) {
	t, err := time.Parse(dateKeyLayout, s)
	if err != nil {
		return DateKey{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return DateOf(t, time.UTC), nil
}

func (k DateKey) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", k.Year, int(k.Month), k.Day)
}

// MarshalText encodes the key as YYYY-MM-DD.
func (k DateKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a YYYY-MM-DD key.
func (k *DateKey) UnmarshalText(text []byte) error {
	parsed, err := ParseDateKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Before reports whether k is an earlier date than other.
func (k DateKey) Before(other DateKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	if k.Month != other.Month {
		return k.Month < other.Month
	}
	return k.Day < other.Day
}

// DateIndex groups calendar items by the date they start on.
// It is rebuilt from scratch on every load.
type DateIndex struct {
	loc     *time.Location
	buckets map[DateKey][]CalendarItem
}

// BuildIndex groups items by start date in loc, keeping input order within a date.
func BuildIndex(items []CalendarItem, loc *time.Location) DateIndex {
	if loc == nil {
		loc = time.UTC
	}

	buckets := make(map[DateKey][]CalendarItem)
	for _, item := range items {
		key := DateOf(item.Start, loc)
		buckets[key] = append(buckets[key], item)
	}

	return DateIndex{loc: loc, buckets: buckets}
}

// Location returns the timezone the index was bucketed in.
func (ix DateIndex) Location() *time.Location {
	if ix.loc == nil {
		return time.UTC
	}
	return ix.loc
}

// ItemsOnDate returns the items starting on date; empty when there are none.
func (ix DateIndex) ItemsOnDate(date DateKey) []CalendarItem {
	bucket := ix.buckets[date]
	out := make([]CalendarItem, len(bucket))
	copy(out, bucket)
	return out
}

// DatesWithItems returns every date that has at least one item, earliest first.
func (ix DateIndex) DatesWithItems() []DateKey {
	dates := make([]DateKey, 0, len(ix.buckets))
	for key := range ix.buckets {
		dates = append(dates, key)
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
	return dates
}

// Len returns the number of dates with items.
func (ix DateIndex) Len() int {
	return len(ix.buckets)
}
