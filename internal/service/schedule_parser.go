package service

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/noah-isme/room-booker/internal/models"
	appErrors "github.com/noah-isme/room-booker/pkg/errors"
	"github.com/noah-isme/room-booker/pkg/htmldoc"
)

const (
	scheduleTableClass = "bgTabell"
	durationLabelClass = "mini"
	bookingErrorClass  = "errorMessage"
	categoryQueryParam = "lokalkategori"
)

var scheduleDatePattern = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)

func parseError(format string, args ...interface{}) error {
	return appErrors.Wrap(fmt.Errorf(format, args...), appErrors.ErrScheduleParse.Code, appErrors.ErrScheduleParse.Status, appErrors.ErrScheduleParse.Message)
}

// ParseSchedule converts a room category day page into per-room busy hours.
// Cells covered by an earlier rowspan are absent from the markup, so each column
// keeps a counter of rows still owned by the event that started above it.
func ParseSchedule(r io.Reader) (*models.Schedule, error) {
	doc, err := htmldoc.Parse(r)
	if err != nil {
		return nil, parseError("read document: %w", err)
	}

	table := htmldoc.Find(doc, htmldoc.ElementWithClass(atom.Table, scheduleTableClass))
	if table == nil {
		return nil, parseError("schedule table not found")
	}
	rows := htmldoc.FindAll(table, htmldoc.Element(atom.Tr))
	if len(rows) < 2 {
		return nil, parseError("schedule table has %d rows, need at least 2", len(rows))
	}

	schedule, err := parseScheduleHeader(rows[0])
	if err != nil {
		return nil, err
	}

	headerCells := htmldoc.Children(rows[1], atom.Td)
	if len(headerCells) < 2 {
		return nil, parseError("room header row has no rooms")
	}
	rooms := make([]string, 0, len(headerCells)-1)
	for _, cell := range headerCells[1:] {
		rooms = append(rooms, strings.TrimSpace(htmldoc.Text(cell)))
	}

	busy := make([][]models.BusyInterval, len(rooms))
	remaining := make([]int, len(rooms))
	dataRows := rows[2:]
	var previousEnd models.Hour

	for rowIdx, row := range dataRows {
		cells := htmldoc.Children(row, atom.Td)
		if len(cells) == 0 {
			return nil, parseError("row %d has no cells", rowIdx+2)
		}
		slotStart, slotEnd, err := parseHourRange(htmldoc.Text(cells[0]))
		if err != nil {
			return nil, parseError("row %d hour slot: %w", rowIdx+2, err)
		}
		if slotStart < previousEnd {
			return nil, parseError("row %d hour slot %s-%s overlaps the previous row", rowIdx+2, slotStart, slotEnd)
		}
		previousEnd = slotEnd

		physical := 1
		for col := range rooms {
			if remaining[col] > 0 {
				last := busy[col][len(busy[col])-1]
				busy[col] = append(busy[col], models.BusyInterval{Start: slotStart, End: slotEnd, Label: last.Label})
				remaining[col]--
				continue
			}
			if physical >= len(cells) {
				return nil, parseError("row %d has %d cells, expected a cell for room %q", rowIdx+2, len(cells), rooms[col])
			}
			cell := cells[physical]
			physical++

			event, ok, err := parseEventCell(cell)
			if err != nil {
				return nil, parseError("row %d room %q: %w", rowIdx+2, rooms[col], err)
			}
			if !ok {
				continue
			}
			span, err := event.span(slotStart, len(dataRows)-rowIdx)
			if err != nil {
				return nil, parseError("row %d room %q: %w", rowIdx+2, rooms[col], err)
			}
			busy[col] = append(busy[col], models.BusyInterval{Start: slotStart, End: slotEnd, Label: event.label})
			remaining[col] = span - 1
		}
		if physical != len(cells) {
			return nil, parseError("row %d has %d cells, expected %d", rowIdx+2, len(cells), physical)
		}
	}

	schedule.Rooms = rooms
	schedule.Busy = make(map[string][]models.BusyInterval, len(rooms))
	for i, name := range rooms {
		schedule.Busy[name] = append(schedule.Busy[name], busy[i]...)
	}
	return schedule, nil
}

func parseScheduleHeader(row *html.Node) (*models.Schedule, error) {
	cells := htmldoc.Children(row, atom.Td)
	if len(cells) < 2 {
		return nil, parseError("header row missing category cell")
	}
	cell := cells[1]

	title := htmldoc.Find(cell, htmldoc.Element(atom.B))
	if title == nil {
		return nil, parseError("category title missing")
	}

	link := htmldoc.Find(cell, htmldoc.Element(atom.A))
	href, _ := htmldoc.Attr(link, "href")
	categoryID, err := categoryFromHref(href)
	if err != nil {
		return nil, parseError("category id: %w", err)
	}

	match := scheduleDatePattern.FindString(htmldoc.Text(cell))
	if match == "" {
		return nil, parseError("schedule date missing")
	}
	date, err := time.Parse("2006-01-02", match)
	if err != nil {
		return nil, parseError("schedule date %q: %w", match, err)
	}

	return &models.Schedule{
		Date:          date,
		CategoryTitle: strings.TrimSpace(htmldoc.Text(title)),
		CategoryID:    categoryID,
		Category:      models.RoomCategory(categoryID),
	}, nil
}

func categoryFromHref(href string) (int, error) {
	if href == "" {
		return 0, fmt.Errorf("category link missing")
	}
	u, err := url.Parse(html.UnescapeString(href))
	if err != nil {
		return 0, err
	}
	raw := u.Query().Get(categoryQueryParam)
	if raw == "" {
		// Older pages carry the id as the second query parameter under a different key.
		params := strings.Split(u.RawQuery, "&")
		if len(params) < 2 {
			return 0, fmt.Errorf("no category parameter in %q", href)
		}
		parts := strings.SplitN(params[1], "=", 2)
		if len(parts) != 2 {
			return 0, fmt.Errorf("no category parameter in %q", href)
		}
		raw = parts[1]
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("category %q: %w", raw, err)
	}
	return id, nil
}

type eventCell struct {
	label   string
	start   models.Hour
	end     models.Hour
	rowspan int
}

// span is the number of table rows the event occupies from the row at slot,
// bounded by rowsLeft. A declared rowspan must agree with it.
func (e eventCell) span(slot models.Hour, rowsLeft int) (int, error) {
	if e.end <= slot {
		return 0, fmt.Errorf("event %q ends at %s before its row %s", e.label, e.end, slot)
	}
	span := int(e.end - slot)
	if span > rowsLeft {
		span = rowsLeft
	}
	if e.rowspan > 0 && min(e.rowspan, rowsLeft) != span {
		return 0, fmt.Errorf("event %q: rowspan %d disagrees with %s-%s", e.label, e.rowspan, e.start, e.end)
	}
	return span, nil
}

// parseEventCell extracts the event of an anchor cell. ok is false for empty cells.
func parseEventCell(cell *html.Node) (eventCell, bool, error) {
	anchor := htmldoc.Find(cell, htmldoc.Element(atom.A))
	rawRowspan, hasRowspan := htmldoc.Attr(cell, "rowspan")
	if anchor == nil || (!hasRowspan && strings.TrimSpace(htmldoc.Text(cell)) == "") {
		return eventCell{}, false, nil
	}

	event := eventCell{label: htmldoc.FirstText(anchor)}
	durationNode := htmldoc.Find(cell, htmldoc.ElementWithClass(atom.Span, durationLabelClass))
	if durationNode == nil {
		return eventCell{}, false, fmt.Errorf("event %q has no time label", event.label)
	}
	text := htmldoc.Text(durationNode)
	if idx := strings.Index(text, ": "); idx >= 0 {
		text = text[idx+2:]
	}
	start, end, err := parseHourRange(text)
	if err != nil {
		return eventCell{}, false, fmt.Errorf("event %q: %w", event.label, err)
	}
	event.start, event.end = start, end

	if hasRowspan {
		rows, convErr := strconv.Atoi(strings.TrimSpace(rawRowspan))
		if convErr != nil || rows < 1 {
			return eventCell{}, false, fmt.Errorf("event %q: invalid rowspan %q", event.label, rawRowspan)
		}
		event.rowspan = rows
	}
	return event, true, nil
}

// parseHourRange reads "HH-HH" with an exclusive end.
func parseHourRange(raw string) (models.Hour, models.Hour, error) {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed hour range %q", raw)
	}
	start, err := models.ParseHour(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := models.ParseHour(parts[1])
	if err != nil {
		return 0, 0, err
	}
	if end <= start {
		return 0, 0, fmt.Errorf("hour range %q ends before it starts", raw)
	}
	return start, end, nil
}

// ParseBookingOutcome returns the rejection message of a booking response, or "" when accepted.
func ParseBookingOutcome(r io.Reader) (string, error) {
	doc, err := htmldoc.Parse(r)
	if err != nil {
		return "", parseError("read booking response: %w", err)
	}
	list := htmldoc.Find(doc, htmldoc.ElementWithClass(atom.Ul, bookingErrorClass))
	if list == nil {
		return "", nil
	}
	if span := htmldoc.Find(list, htmldoc.Element(atom.Span)); span != nil {
		return strings.TrimSpace(htmldoc.Text(span)), nil
	}
	msg := strings.TrimSpace(htmldoc.Text(list))
	if msg == "" {
		msg = "booking rejected"
	}
	return msg, nil
}
