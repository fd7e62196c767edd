package models

import "fmt"

// RoomRestriction is a named predicate over rooms. Several restrictions combine with AND.
type RoomRestriction int

const (
	RestrictionG10Room   RoomRestriction = 0
	RestrictionG5Room    RoomRestriction = 1
	RestrictionGreenArea RoomRestriction = 2
	RestrictionRedArea   RoomRestriction = 3
)

var restrictionNames = map[RoomRestriction]string{
	RestrictionG10Room:   "G10_ROOM",
	RestrictionG5Room:    "G5_ROOM",
	RestrictionGreenArea: "GREEN_AREA",
	RestrictionRedArea:   "RED_AREA",
}

// Restrictions lists every known restriction.
func Restrictions() []RoomRestriction {
	return []RoomRestriction{RestrictionG10Room, RestrictionG5Room, RestrictionGreenArea, RestrictionRedArea}
}

// NewRoomRestriction validates v.
func NewRoomRestriction(v int) (RoomRestriction, error) {
	r := RoomRestriction(v)
	if _, ok := restrictionNames[r]; !ok {
		return 0, fmt.Errorf("unknown room restriction %d", v)
	}
	return r, nil
}

func (r RoomRestriction) String() string {
	if name, ok := restrictionNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RESTRICTION_%d", int(r))
}

// ExclusiveRestrictionPairs are advisory: a request should not combine both members of a pair.
// Nothing enforces this; it is passed to the request extractor as guidance.
var ExclusiveRestrictionPairs = [][2]RoomRestriction{
	{RestrictionG10Room, RestrictionG5Room},
	{RestrictionGreenArea, RestrictionRedArea},
}

// PreferenceTable is the static room configuration handed to the ranker.
type PreferenceTable struct {
	// Order lists rooms from most to least preferred. Rooms missing from it rank last.
	Order []RoomID
	// Areas maps each restriction to the rooms satisfying it.
	Areas map[RoomRestriction][]RoomID
}

// Rank returns the position of room in Order, or len(Order) when absent.
func (t PreferenceTable) Rank(room RoomID) int {
	for i, candidate := range t.Order {
		if candidate == room {
			return i
		}
	}
	return len(t.Order)
}

// Allows reports whether room satisfies restriction. Unknown restrictions match nothing.
func (t PreferenceTable) Allows(restriction RoomRestriction, room RoomID) bool {
	for _, member := range t.Areas[restriction] {
		if member == room {
			return true
		}
	}
	return false
}

// DefaultPreferenceTable returns the built-in ordering and area membership.
func DefaultPreferenceTable() PreferenceTable {
	return PreferenceTable{
		Order: []RoomID{
			RoomG10_2, RoomG10_7, RoomG10_6, RoomG10_3, RoomG10_4, RoomG10_5, RoomG10_1,
			RoomG5_1, RoomG5_2, RoomG5_3, RoomG5_4, RoomG5_5, RoomG5_6, RoomG5_7, RoomG5_8,
			RoomG5_9, RoomG5_10, RoomG5_11, RoomG5_13, RoomG5_15, RoomG5_16, RoomG5_17,
			// visitors
			RoomF1, RoomF3,
			// unbookable group rooms
			RoomG10_8,
			// project meeting rooms
			RoomProjectZone5, RoomProjectZone2,
			// staff meeting rooms
			RoomM6_5, RoomM6_6,
			// seminar rooms
			RoomS2, RoomS1, RoomS3,
			// teaching rooms
			RoomAuditoriumNOD, RoomSmallAuditorium, RoomL70, RoomL50, RoomL30,
		},
		Areas: map[RoomRestriction][]RoomID{
			RestrictionG10Room: {
				RoomG10_1, RoomG10_2, RoomG10_3, RoomG10_4, RoomG10_5, RoomG10_6, RoomG10_7, RoomG10_8,
			},
			RestrictionG5Room: {
				RoomG5_1, RoomG5_10, RoomG5_11, RoomG5_12, RoomG5_13, RoomG5_15, RoomG5_16, RoomG5_17,
				RoomG5_2, RoomG5_3, RoomG5_4, RoomG5_5, RoomG5_6, RoomG5_7, RoomG5_8, RoomG5_9,
				RoomG5_14, RoomG5_19, RoomG5_20, RoomG5_21,
			},
			RestrictionGreenArea: {
				RoomG10_1, RoomG10_2, RoomG10_3, RoomG10_4, RoomG10_5,
				RoomG5_1, RoomG5_10, RoomG5_11, RoomG5_12, RoomG5_2, RoomG5_3, RoomG5_4,
				RoomG5_5, RoomG5_6, RoomG5_7, RoomG5_8, RoomG5_9,
			},
			RestrictionRedArea: {
				RoomG10_6, RoomG10_7, RoomG5_13, RoomG5_15, RoomG5_16, RoomG5_17,
				RoomG10_8, RoomG5_14, RoomG5_18, RoomG5_19, RoomG5_20, RoomG5_21,
			},
		},
	}
}
