package calendar

import (
	"testing"
	"time"
)

func TestOverlaps_TouchingBoundaries(t *testing.T) {
	item := CalendarItem{ID: "a", Start: monday(t, "09:00"), End: timePtr(monday(t, "10:00"))}

	if got := Overlaps([]CalendarItem{item}, monday(t, "10:00"), timePtr(monday(t, "11:00"))); len(got) != 0 {
		t.Errorf("Expected query starting at item end to not overlap, got %d", len(got))
	}
	if got := Overlaps([]CalendarItem{item}, monday(t, "08:00"), timePtr(monday(t, "09:00"))); len(got) != 0 {
		t.Errorf("Expected query ending at item start to not overlap, got %d", len(got))
	}
	if !HasConflict([]CalendarItem{item}, monday(t, "09:59"), nil) {
		t.Error("Expected one-minute overlap to conflict")
	}
}

func TestOverlaps_DefaultDurations(t *testing.T) {
	// No end: 09:00 to 10:00.
	item := CalendarItem{ID: "a", Start: monday(t, "09:00")}

	tests := []struct {
		name  string
		start string
		end   string
		want  bool
	}{
		{"open query inside default hour", "09:30", "", true},
		{"open query right after default hour", "10:00", "", false},
		{"open query ending at item start", "08:00", "", false},
		{"open query overlapping item start", "08:01", "", true},
		{"backwards query clamps to a point inside the item", "09:30", "09:00", true},
		{"backwards query clamps to a point after the item", "10:30", "09:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var end *time.Time
			if tt.end != "" {
				end = timePtr(monday(t, tt.end))
			}
			if got := HasConflict([]CalendarItem{item}, monday(t, tt.start), end); got != tt.want {
				t.Errorf("HasConflict = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOverlaps_Symmetric(t *testing.T) {
	intervals := []struct{ start, end string }{
		{"08:00", "09:00"},
		{"08:30", "09:30"},
		{"09:00", "10:00"},
		{"07:00", "12:00"},
		{"09:15", ""},
		{"10:00", "10:00"},
	}

	for _, a := range intervals {
		for _, b := range intervals {
			aItem := CalendarItem{Start: monday(t, a.start)}
			if a.end != "" {
				aItem.End = timePtr(monday(t, a.end))
			}
			bItem := CalendarItem{Start: monday(t, b.start)}
			if b.end != "" {
				bItem.End = timePtr(monday(t, b.end))
			}

			ab := HasConflict([]CalendarItem{aItem}, bItem.Start, bItem.End)
			ba := HasConflict([]CalendarItem{bItem}, aItem.Start, aItem.End)
			if ab != ba {
				t.Errorf("Asymmetric result for %v and %v: %v vs %v", a, b, ab, ba)
			}
		}
	}
}

func TestOverlaps_GymAndLecture(t *testing.T) {
	items := []CalendarItem{
		{Kind: KindPersonal, ID: "gym", Title: "Gym", Start: monday(t, "07:00"), End: timePtr(monday(t, "08:00"))},
		{Kind: KindImported, ID: "lec", Title: "Lecture", Start: monday(t, "09:00"), ExternalID: "ext1"},
	}

	got := Overlaps(items, monday(t, "08:30"), timePtr(monday(t, "09:30")))
	if len(got) != 1 || got[0].ID != "lec" {
		t.Fatalf("Expected only the lecture, got %+v", got)
	}
}

func TestFindConflicts_OverlapWindow(t *testing.T) {
	items := []CalendarItem{
		{ID: "a", Start: monday(t, "09:00"), End: timePtr(monday(t, "11:00"))},
		{ID: "b", Start: monday(t, "10:30")},
		{ID: "c", Start: monday(t, "12:00")},
	}

	conflicts := FindConflicts(items, monday(t, "10:00"), timePtr(monday(t, "11:00")))
	if len(conflicts) != 2 {
		t.Fatalf("Expected 2 conflicts, got %d", len(conflicts))
	}

	if c := conflicts[0]; c.Item.ID != "a" || !c.OverlapStart.Equal(monday(t, "10:00")) || !c.OverlapEnd.Equal(monday(t, "11:00")) {
		t.Errorf("Unexpected first conflict %+v", c)
	}
	if c := conflicts[1]; c.Item.ID != "b" || !c.OverlapStart.Equal(monday(t, "10:30")) || !c.OverlapEnd.Equal(monday(t, "11:00")) {
		t.Errorf("Unexpected second conflict %+v", c)
	}
}

func TestConflictPairs(t *testing.T) {
	items := []CalendarItem{
		{ID: "late", Start: monday(t, "13:00"), End: timePtr(monday(t, "14:00"))},
		{ID: "long", Start: monday(t, "09:00"), End: timePtr(monday(t, "12:00"))},
		{ID: "mid", Start: monday(t, "10:00"), End: timePtr(monday(t, "10:30"))},
		{ID: "touch", Start: monday(t, "12:00"), End: timePtr(monday(t, "13:00"))},
		{ID: "open", Start: monday(t, "11:30")},
	}

	pairs := ConflictPairs(items)

	want := []struct{ first, second, start, end string }{
		{"long", "mid", "10:00", "10:30"},
		{"long", "open", "11:30", "12:00"},
		{"open", "touch", "12:00", "12:30"},
	}
	if len(pairs) != len(want) {
		t.Fatalf("Expected %d pairs, got %d: %+v", len(want), len(pairs), pairs)
	}
	for i, w := range want {
		p := pairs[i]
		if p.First.ID != w.first || p.Second.ID != w.second {
			t.Errorf("pair %d: expected %s/%s, got %s/%s", i, w.first, w.second, p.First.ID, p.Second.ID)
		}
		if !p.OverlapStart.Equal(monday(t, w.start)) || !p.OverlapEnd.Equal(monday(t, w.end)) {
			t.Errorf("pair %d: expected window %s-%s, got %s-%s", i, w.start, w.end, p.OverlapStart, p.OverlapEnd)
		}
	}
}

func TestConflictPairs_MatchesPairwiseCheck(t *testing.T) {
	var items []CalendarItem
	for i, clock := range []string{"08:00", "08:20", "08:40", "09:00", "09:10", "11:00"} {
		items = append(items, CalendarItem{ID: string(rune('a' + i)), Start: monday(t, clock)})
	}

	want := 0
	for i := range items {
		for j := i + 1; j < len(items); j++ {
			if HasConflict(items[i:i+1], items[j].Start, items[j].End) {
				want++
			}
		}
	}

	if got := len(ConflictPairs(items)); got != want {
		t.Errorf("Expected %d pairs from the sweep, got %d", want, got)
	}
}
