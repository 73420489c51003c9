package calendar

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/campuslink/backend/internal/storage/models"
)

const (
	icsDateLayout     = "20060102"
	icsDateTimeLayout = "20060102T150405"
)

// ICSParser parses iCalendar (.ics) payloads into personal records.
// It implements ImportParser.
type ICSParser struct {
	loc *time.Location
}

// NewICSParser creates a new iCal parser. All-day dates and floating times
// (no TZID, no trailing Z) are read in loc; nil means time.Local.
func NewICSParser(loc *time.Location) *ICSParser {
	if loc == nil {
		loc = time.Local
	}
	return &ICSParser{loc: loc}
}

// Parse reads every VEVENT in raw. A VEVENT without UID or DTSTART is logged
// and skipped; the rest of the payload is still imported.
//
// The external identifier is the event UID. An overridden occurrence
// (RECURRENCE-ID) shares its series UID, so its identifier also carries the
// recurrence value to stay unique within the user's records.
func (p *ICSParser) Parse(raw []byte, userID, sourceTag string) ([]models.PersonalCalendarRecord, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyImport
	}
	if sourceTag == "" {
		sourceTag = models.SourceTagImported
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing calendar: %w", err)
	}

	var records []models.PersonalCalendarRecord
	for _, ve := range cal.Events() {
		rec, err := p.parseEvent(ve)
		if err != nil {
			log.Printf("Warning: skipping event in import for user %s: %v", userID, err)
			continue
		}
		rec.UserID = userID
		rec.SourceTag = sourceTag
		records = append(records, rec)
	}

	return records, nil
}

func (p *ICSParser) parseEvent(ve *ical.VEvent) (models.PersonalCalendarRecord, error) {
	var rec models.PersonalCalendarRecord

	uid := propertyText(ve, ical.ComponentPropertyUniqueId)
	if uid == "" {
		return rec, errors.New("missing UID")
	}
	externalID := uid
	if rid := ve.GetProperty("RECURRENCE-ID"); rid != nil && rid.Value != "" {
		externalID = uid + "#" + rid.Value
	}
	rec.ExternalID = &externalID

	if ve.GetProperty(ical.ComponentPropertyDtStart) == nil {
		return rec, fmt.Errorf("event %s: missing DTSTART", uid)
	}
	start, err := p.eventTime(ve, ical.ComponentPropertyDtStart)
	if err != nil {
		return rec, fmt.Errorf("event %s: parsing DTSTART: %w", uid, err)
	}
	rec.Start = start.Truncate(time.Second)

	if ve.GetProperty(ical.ComponentPropertyDtEnd) != nil {
		end, err := p.eventTime(ve, ical.ComponentPropertyDtEnd)
		if err != nil {
			log.Printf("Warning: event %s has an unreadable DTEND, using default duration: %v", uid, err)
		} else {
			end = end.Truncate(time.Second)
			rec.End = &end
		}
	}

	rec.Title = propertyText(ve, ical.ComponentPropertySummary)
	if rec.Title == "" {
		rec.Title = "(untitled)"
	}
	if loc := propertyText(ve, ical.ComponentPropertyLocation); loc != "" {
		rec.Location = &loc
	}
	if color := propertyText(ve, "COLOR"); color != "" {
		rec.ColorHint = &color
	}

	return rec, nil
}

// eventTime reads DTSTART or DTEND. Values pinned to UTC or to a TZID are
// left to golang-ical; local values are anchored in the parser's location.
func (p *ICSParser) eventTime(ve *ical.VEvent, prop ical.ComponentProperty) (time.Time, error) {
	pr := ve.GetProperty(prop)
	value := strings.TrimSpace(pr.Value)

	if _, pinned := pr.ICalParameters["TZID"]; !pinned {
		switch {
		case len(value) == len(icsDateLayout):
			return time.ParseInLocation(icsDateLayout, value, p.loc)
		case len(value) == len(icsDateTimeLayout):
			return time.ParseInLocation(icsDateTimeLayout, value, p.loc)
		}
	}

	if prop == ical.ComponentPropertyDtEnd {
		return ve.GetEndAt()
	}
	return ve.GetStartAt()
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

// propertyText returns the unescaped text value of a property, or "".
func propertyText(ve *ical.VEvent, prop ical.ComponentProperty) string {
	p := ve.GetProperty(prop)
	if p == nil {
		return ""
	}
	return strings.TrimSpace(textUnescaper.Replace(p.Value))
}
