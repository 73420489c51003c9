package calendar

import (
	"io"
	"time"

	goical "github.com/emersion/go-ical"
)

const exportProductID = "-//campuslink//Calendar Export//EN"

// exportUID returns a stable UID for an item. Imported items keep their
// external identifier so exporting and re-importing does not duplicate them.
func exportUID(item CalendarItem) string {
	if item.Kind == KindImported && item.ExternalID != "" {
		return item.ExternalID
	}
	return item.Kind.String() + "-" + item.ID + "@campuslink"
}

// EncodeICS writes items as an iCalendar stream. now stamps DTSTAMP.
func EncodeICS(w io.Writer, items []CalendarItem, now time.Time) error {
	if len(items) == 0 {
		return ErrNothingToExport
	}

	cal := goical.NewCalendar()
	cal.Props.SetText(goical.PropVersion, "2.0")
	cal.Props.SetText(goical.PropProductID, exportProductID)

	stamp := now.UTC().Truncate(time.Second)
	for _, item := range items {
		vevent := goical.NewComponent(goical.CompEvent)
		vevent.Props.SetText(goical.PropUID, exportUID(item))
		vevent.Props.SetDateTime(goical.PropDateTimeStamp, stamp)
		vevent.Props.SetDateTime(goical.PropDateTimeStart, item.Start.UTC())
		vevent.Props.SetDateTime(goical.PropDateTimeEnd, item.EffectiveEnd().UTC())

		if item.Title != "" {
			vevent.Props.SetText(goical.PropSummary, item.Title)
		}
		if item.Location != nil && *item.Location != "" {
			vevent.Props.SetText(goical.PropLocation, *item.Location)
		}
		if item.ColorHint != "" {
			vevent.Props.SetText("COLOR", item.ColorHint)
		}
		vevent.Props.SetText("X-CAMPUSLINK-KIND", item.Kind.String())

		cal.Children = append(cal.Children, vevent)
	}

	return goical.NewEncoder(w).Encode(cal)
}
