package service

import (
	"sort"

	"github.com/noah-isme/room-booker/internal/models"
)

// RankRooms keeps the rooms satisfying every restriction and orders them by preference.
// Rooms absent from the preference order share the lowest rank and keep their input order.
func RankRooms(rooms []models.RoomAvailability, restrictions []models.RoomRestriction, table models.PreferenceTable) []models.RoomAvailability {
	ranked := make([]models.RoomAvailability, 0, len(rooms))
	for _, room := range rooms {
		if allowedByAll(table, restrictions, room.Room) {
			ranked = append(ranked, room)
		}
	}

	rank := make(map[models.RoomID]int, len(ranked))
	for _, room := range ranked {
		rank[room.Room] = table.Rank(room.Room)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return rank[ranked[i].Room] < rank[ranked[j].Room]
	})
	return ranked
}

func allowedByAll(table models.PreferenceTable, restrictions []models.RoomRestriction, room models.RoomID) bool {
	for _, restriction := range restrictions {
		if !table.Allows(restriction, room) {
			return false
		}
	}
	return true
}
