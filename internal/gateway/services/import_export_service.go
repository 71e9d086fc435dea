package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/gatherpoint/api/internal/gateway/helpers"
	"github.com/gatherpoint/api/internal/gateway/types"
)

// csvExportHeader is the full internal field set, in export order.
var csvExportHeader = []string{
	"title", "description", "date", "location", "category",
	"imageUrl", "image", "tags", "status", "registrationRequired",
	"organizerId", "createdAt", "updatedAt",
}

// ImportCSV parses tabular text with a header row and appends every
// surviving row to the collection as a new event. Rows missing title
// or date are silently dropped (validation policy, not an error).
// Only malformed CSV framing rejects the whole import; the count of
// imported events is returned on success.
func (s *EventStore) ImportCSV(ctx context.Context, csvText string) (int, error) {
	reader := csv.NewReader(strings.NewReader(csvText))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("failed to parse CSV: missing header row")
	}

	columns := make(map[string]int)
	for i, name := range records[0] {
		columns[strings.TrimSpace(name)] = i
	}

	cell := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC().Format(time.RFC3339)
	imported := make([]types.Event, 0, len(records)-1)
	for _, row := range records[1:] {
		title := cell(row, "title")
		date := cell(row, "date")
		if title == "" || date == "" {
			continue
		}
		category := cell(row, "category")
		if category == "" {
			category = "Uncategorized"
		}
		imported = append(imported, types.Event{
			Id:                   s.newId(),
			Title:                title,
			Description:          cell(row, "description"),
			Date:                 date,
			Location:             cell(row, "location"),
			Category:             category,
			ImageUrl:             cell(row, "imageUrl"),
			Image:                cell(row, "image"),
			Tags:                 types.SplitTags(cell(row, "tags")),
			Status:               types.EventStatusUpcoming,
			RegistrationRequired: cell(row, "registrationRequired") == "true",
			OrganizerId:          "1",
			CreatedAt:            now,
			UpdatedAt:            now,
		})
	}

	if len(imported) > 0 {
		next := append(append([]types.Event(nil), s.events...), imported...)
		s.commit(ctx, next)
	}
	return len(imported), nil
}

// ExportCSV serializes the full collection. Every field is quoted and
// inner quotes are doubled, which is stricter than encoding/csv's
// quote-when-needed policy, so rows are formatted by hand.
func (s *EventStore) ExportCSV() string {
	events := s.Events()

	var b strings.Builder
	b.WriteString(strings.Join(csvExportHeader, ","))
	b.WriteString("\n")
	for _, event := range events {
		fields := []string{
			event.Title,
			event.Description,
			event.Date,
			event.Location,
			event.Category,
			event.ImageUrl,
			event.Image,
			strings.Join(event.Tags, ", "),
			string(event.Status),
			strconv.FormatBool(event.RegistrationRequired),
			event.OrganizerId,
			event.CreatedAt,
			event.UpdatedAt,
		}
		quoted := make([]string, len(fields))
		for i, field := range fields {
			quoted[i] = `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
		}
		b.WriteString(strings.Join(quoted, ","))
		b.WriteString("\n")
	}
	return b.String()
}

// ExportCalendar serializes each event as a VEVENT with a fixed
// two-hour duration: start is the event date truncated to the minute,
// end is start + 2h. Events with unparseable dates are skipped with a
// diagnostic.
func (s *EventStore) ExportCalendar() (string, error) {
	events := s.Events()

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//gatherpoint//events//EN")

	for _, event := range events {
		date, err := ParseEventDate(event.Date)
		if err != nil {
			log.Printf("skipping event %s in calendar export: %v", event.Id, err)
			continue
		}
		start := date.Truncate(time.Minute)
		end := start.Add(helpers.CalendarEventDurationHours * time.Hour)

		ve := cal.AddEvent(event.Id)
		ve.SetDtStampTime(start)
		ve.SetStartAt(start)
		ve.SetEndAt(end)
		ve.SetSummary(event.Title)
		if event.Description != "" {
			ve.SetDescription(event.Description)
		}
		if event.Location != "" {
			ve.SetLocation(event.Location)
		}
		if event.Category != "" {
			ve.SetProperty(ics.ComponentProperty(ics.PropertyCategories), event.Category)
		}
		if event.HasCoordinates() {
			if tz := TimezoneFor(*event.Latitude, *event.Longitude); tz != "" {
				ve.SetProperty(ics.ComponentProperty("X-TIMEZONE"), tz)
			}
		}
	}

	return cal.Serialize(), nil
}
