package models

import "time"

// BusyInterval is a half-open period [Start, End) during which a room is reserved.
type BusyInterval struct {
	Start Hour   `json:"start"`
	End   Hour   `json:"end"`
	Label string `json:"label"`
}

// Contains reports whether h falls inside the interval.
func (b BusyInterval) Contains(h Hour) bool {
	return b.Start <= h && h < b.End
}

// RoomAvailability pairs a room with its reservations for one day.
type RoomAvailability struct {
	Room RoomID         `json:"room"`
	Busy []BusyInterval `json:"busy"`
}

// IsBusy reports whether any reservation covers hour h.
func (r RoomAvailability) IsBusy(h Hour) bool {
	for _, b := range r.Busy {
		if b.Contains(h) {
			return true
		}
	}
	return false
}

// Schedule is one parsed day page of a room category.
type Schedule struct {
	Date          time.Time                 `json:"date"`
	CategoryTitle string                    `json:"category_title"`
	CategoryID    int                       `json:"category_id"`
	Category      RoomCategory              `json:"category"`
	Rooms         []string                  `json:"rooms"`
	Busy          map[string][]BusyInterval `json:"busy"`
}

// Availability converts the schedule columns into catalog rooms, keeping column order.
// Column names missing from the catalog are returned separately.
func (s *Schedule) Availability() ([]RoomAvailability, []string) {
	if s == nil {
		return nil, nil
	}
	rooms := make([]RoomAvailability, 0, len(s.Rooms))
	var unknown []string
	for _, name := range s.Rooms {
		id, ok := RoomByName(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		busy := make([]BusyInterval, len(s.Busy[name]))
		copy(busy, s.Busy[name])
		rooms = append(rooms, RoomAvailability{Room: id, Busy: busy})
	}
	return rooms, unknown
}
