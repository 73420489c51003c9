package calendar

import (
	"sort"
	"time"
)

// Conflict is a calendar item that overlaps a queried interval.
type Conflict struct {
	Item         CalendarItem `json:"item"`
	OverlapStart time.Time    `json:"overlap_start"`
	OverlapEnd   time.Time    `json:"overlap_end"`
}

// ConflictPair is two items of the same calendar that overlap each other.
type ConflictPair struct {
	First        CalendarItem `json:"first"`
	Second       CalendarItem `json:"second"`
	OverlapStart time.Time    `json:"overlap_start"`
	OverlapEnd   time.Time    `json:"overlap_end"`
}

// overlaps applies the half-open rule: intervals that only touch do not overlap.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Overlaps returns the items that overlap [queryStart, queryEnd). A nil
// queryEnd means queryStart plus DefaultDuration; items without an end are
// treated the same way.
func Overlaps(items []CalendarItem, queryStart time.Time, queryEnd *time.Time) []CalendarItem {
	qEnd := effectiveEnd(queryStart, queryEnd)

	var out []CalendarItem
	for _, item := range items {
		if overlaps(item.Start, item.EffectiveEnd(), queryStart, qEnd) {
			out = append(out, item)
		}
	}
	return out
}

// HasConflict returns true if any item overlaps [start, end).
func HasConflict(items []CalendarItem, start time.Time, end *time.Time) bool {
	return len(Overlaps(items, start, end)) > 0
}

// FindConflicts is Overlaps with the overlapping window of each item.
func FindConflicts(items []CalendarItem, start time.Time, end *time.Time) []Conflict {
	qEnd := effectiveEnd(start, end)

	var conflicts []Conflict
	for _, item := range Overlaps(items, start, end) {
		overlapStart := start
		if item.Start.After(overlapStart) {
			overlapStart = item.Start
		}

		overlapEnd := qEnd
		if itemEnd := item.EffectiveEnd(); itemEnd.Before(overlapEnd) {
			overlapEnd = itemEnd
		}

		conflicts = append(conflicts, Conflict{
			Item:         item,
			OverlapStart: overlapStart,
			OverlapEnd:   overlapEnd,
		})
	}
	return conflicts
}

// ConflictPairs returns every pair of items in the list that overlap.
// Pairs are ordered by the start of their earlier item.
func ConflictPairs(items []CalendarItem) []ConflictPair {
	sorted := make([]CalendarItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var pairs []ConflictPair
	var active []CalendarItem
	for _, item := range sorted {
		itemEnd := item.EffectiveEnd()

		// Nothing that ends at or before this start can overlap a later item.
		kept := active[:0]
		for _, a := range active {
			if a.EffectiveEnd().After(item.Start) {
				kept = append(kept, a)
			}
		}
		active = kept

		for _, a := range active {
			aEnd := a.EffectiveEnd()
			if !overlaps(a.Start, aEnd, item.Start, itemEnd) {
				continue
			}

			overlapEnd := aEnd
			if itemEnd.Before(overlapEnd) {
				overlapEnd = itemEnd
			}
			pairs = append(pairs, ConflictPair{
				First:        a,
				Second:       item,
				OverlapStart: item.Start,
				OverlapEnd:   overlapEnd,
			})
		}

		active = append(active, item)
	}

	return pairs
}
