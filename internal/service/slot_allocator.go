package service

import (
	"fmt"
	"sort"

	"github.com/noah-isme/room-booker/internal/models"
	appErrors "github.com/noah-isme/room-booker/pkg/errors"
)

func invalidRequest(format string, args ...interface{}) error {
	return appErrors.Clone(appErrors.ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// ValidateAllocation rejects requests that cannot be split into segments.
func ValidateAllocation(start models.Hour, duration int, breaks []models.Break) error {
	if duration <= 0 {
		return invalidRequest("duration must be positive, got %d", duration)
	}
	if !start.Valid() {
		return invalidRequest("start %d outside %d..%d", int(start), models.FirstHour, models.LastHour)
	}

	windowEnd := start.Add(duration)
	sorted := sortedBreaks(breaks)
	var previousEnd models.Hour
	for i, b := range sorted {
		if !b.Start.Valid() {
			return invalidRequest("break start %d outside %d..%d", int(b.Start), models.FirstHour, models.LastHour)
		}
		if b.Duration < 1 {
			return invalidRequest("break at %s must last at least one hour", b.Start)
		}
		end := b.Start.Add(b.Duration)
		if b.Start < start || end > windowEnd {
			return invalidRequest("break %s-%s outside requested window %s-%s", b.Start, end, start, windowEnd)
		}
		if i > 0 && b.Start < previousEnd {
			return invalidRequest("break at %s overlaps the previous break", b.Start)
		}
		previousEnd = end
	}
	return nil
}

// SplitBreaks carves each break out of the requested window [start, start+duration).
// Breaks are applied in start order against the remaining tail; empty segments are dropped.
func SplitBreaks(start models.Hour, duration int, breaks []models.Break) []models.Segment {
	segments := make([]models.Segment, 0, len(breaks)+1)
	current := models.Segment{Start: start, Duration: duration}

	for _, b := range sortedBreaks(breaks) {
		end := current.Start.Add(current.Duration)
		if b.Start < current.Start || b.Start >= end {
			continue
		}
		if head := int(b.Start - current.Start); head > 0 {
			segments = append(segments, models.Segment{Start: current.Start, Duration: head})
		}
		resume := b.Start.Add(b.Duration)
		current = models.Segment{Start: resume, Duration: int(end - resume)}
		if current.Duration <= 0 {
			return segments
		}
	}
	if current.Duration > 0 {
		segments = append(segments, current)
	}
	return segments
}

func sortedBreaks(breaks []models.Break) []models.Break {
	sorted := make([]models.Break, len(breaks))
	copy(sorted, breaks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	return sorted
}

// AllocateSlots greedily covers hours from start using the ranked rooms.
// Each step picks the room with the longest free run from the current start,
// earliest ranked room on ties. When no room is free the start moves one hour
// later in shift mode; otherwise a one hour slot is forced in the first ranked room.
// Allocation never extends past LastHour and partial coverage is returned as is.
func AllocateSlots(rooms []models.RoomAvailability, start models.Hour, hours int, shift bool) []models.BookingSlot {
	var slots []models.BookingSlot
	if len(rooms) == 0 {
		return slots
	}

	for hours > 0 && start < models.LastHour {
		best, covered := 0, 0
		for i, room := range rooms {
			if run := freeRun(room, start, hours); run > covered {
				best, covered = i, run
			}
		}

		if covered == 0 {
			if shift {
				start = start.Add(1)
				continue
			}
			covered = 1
		}

		slots = append(slots, models.BookingSlot{Room: rooms[best].Room, From: start, To: start.Add(covered)})
		start = start.Add(covered)
		hours -= covered
	}
	return slots
}

// freeRun counts consecutive free hours from start, at most limit and never reaching LastHour.
func freeRun(room models.RoomAvailability, start models.Hour, limit int) int {
	run := 0
	for h := start; run < limit && h < models.LastHour; h++ {
		if room.IsBusy(h) {
			break
		}
		run++
	}
	return run
}

// PlanSlots validates the request, splits it around breaks and allocates every segment in order.
func PlanSlots(rooms []models.RoomAvailability, start models.Hour, duration int, breaks []models.Break, shift bool) ([]models.BookingSlot, error) {
	if err := ValidateAllocation(start, duration, breaks); err != nil {
		return nil, err
	}
	var slots []models.BookingSlot
	for _, segment := range SplitBreaks(start, duration, breaks) {
		slots = append(slots, AllocateSlots(rooms, segment.Start, segment.Duration, shift)...)
	}
	return slots, nil
}

// Coverage sums the hours booked by slots.
func Coverage(slots []models.BookingSlot) int {
	total := 0
	for _, slot := range slots {
		total += slot.Hours()
	}
	return total
}
