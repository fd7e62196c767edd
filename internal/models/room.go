package models

import (
	"fmt"
	"strconv"
	"strings"
)

// RoomCategory is the portal's identifier for a group of rooms listed on one schedule page.
type RoomCategory int

const (
	CategoryTeachingRooms               RoomCategory = 64
	CategoryStudentLab                  RoomCategory = 65
	CategoryComputerLabs                RoomCategory = 66
	CategorySeminarRooms                RoomCategory = 67
	CategoryBookableGroupRooms          RoomCategory = 68
	CategoryStaffMeetingRooms           RoomCategory = 71
	CategoryMediaProduction             RoomCategory = 76
	CategoryNonBookableGroupRooms       RoomCategory = 77
	CategoryVisitorsMeetingRooms        RoomCategory = 81
	CategoryProjectMeetingRooms         RoomCategory = 82
	CategoryDistanceAndRecordingStudios RoomCategory = 95
)

var categoryNames = map[RoomCategory]string{
	CategoryTeachingRooms:               "TEACHING_ROOMS",
	CategoryStudentLab:                  "STUDENT_LAB",
	CategoryComputerLabs:                "COMPUTER_LABS",
	CategorySeminarRooms:                "SEMINAR_ROOMS",
	CategoryBookableGroupRooms:          "BOOKABLE_GROUP_ROOMS",
	CategoryStaffMeetingRooms:           "STAFF_MEETING_ROOMS",
	CategoryMediaProduction:             "MEDIA_PRODUCTION",
	CategoryNonBookableGroupRooms:       "NON_BOOKABLE_GROUP_ROOMS",
	CategoryVisitorsMeetingRooms:        "VISITORS_MEETING_ROOMS",
	CategoryProjectMeetingRooms:         "PROJECT_MEETING_ROOMS",
	CategoryDistanceAndRecordingStudios: "DISTANCE_AND_RECORDING_STUDIOS",
}

// Categories lists every known category in ascending id order.
func Categories() []RoomCategory {
	return []RoomCategory{
		CategoryTeachingRooms,
		CategoryStudentLab,
		CategoryComputerLabs,
		CategorySeminarRooms,
		CategoryBookableGroupRooms,
		CategoryStaffMeetingRooms,
		CategoryMediaProduction,
		CategoryNonBookableGroupRooms,
		CategoryVisitorsMeetingRooms,
		CategoryProjectMeetingRooms,
		CategoryDistanceAndRecordingStudios,
	}
}

// Valid reports whether c is a known category.
func (c RoomCategory) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// RequiresStaff reports whether booking in c needs a staff session.
func (c RoomCategory) RequiresStaff() bool {
	return c != CategoryBookableGroupRooms
}

func (c RoomCategory) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "CATEGORY_" + strconv.Itoa(int(c))
}

// RoomID is the portal's numeric identifier for a bookable room.
type RoomID int

const (
	RoomG10_1 RoomID = 633
	RoomG10_2 RoomID = 634
	RoomG10_3 RoomID = 635
	RoomG10_4 RoomID = 636
	RoomG10_5 RoomID = 637
	RoomG10_6 RoomID = 638
	RoomG10_7 RoomID = 639
	RoomG5_1  RoomID = 815
	RoomG5_2  RoomID = 796
	RoomG5_3  RoomID = 797
	RoomG5_4  RoomID = 798
	RoomG5_5  RoomID = 799
	RoomG5_6  RoomID = 800
	RoomG5_7  RoomID = 801
	RoomG5_8  RoomID = 802
	RoomG5_9  RoomID = 803
	RoomG5_10 RoomID = 804
	RoomG5_11 RoomID = 805
	RoomG5_12 RoomID = 795
	RoomG5_13 RoomID = 814
	RoomG5_15 RoomID = 812
	RoomG5_16 RoomID = 811
	RoomG5_17 RoomID = 810

	RoomF1 RoomID = 840
	RoomF2 RoomID = 839
	RoomF3 RoomID = 838

	RoomD1 RoomID = 625
	RoomD2 RoomID = 626
	RoomD3 RoomID = 627
	RoomD4 RoomID = 628

	RoomIdealStudio RoomID = 790
	RoomSmallStudio RoomID = 1275

	RoomG10_8 RoomID = 640
	RoomG5_14 RoomID = 813
	RoomG5_18 RoomID = 809
	RoomG5_19 RoomID = 808
	RoomG5_20 RoomID = 807
	RoomG5_21 RoomID = 806

	RoomP1               RoomID = 652
	RoomP2               RoomID = 653
	RoomP3               RoomID = 654
	RoomStudentlabMedia  RoomID = 651
	RoomStudio           RoomID = 655
	RoomProjectZone2     RoomID = 1257
	RoomProjectZone5     RoomID = 1258
	RoomM10              RoomID = 817
	RoomM20              RoomID = 820
	RoomM6_1             RoomID = 823
	RoomM6_2             RoomID = 822
	RoomM6_3             RoomID = 821
	RoomM6_4             RoomID = 824
	RoomM6_5             RoomID = 825
	RoomM6_6             RoomID = 819
	RoomM8               RoomID = 818
	RoomS1               RoomID = 629
	RoomS2               RoomID = 630
	RoomS3               RoomID = 631
	RoomLabIDRight       RoomID = 648
	RoomLabIDLeft        RoomID = 1378
	RoomLabIDFix         RoomID = 1382
	RoomLabGame          RoomID = 1394
	RoomLabGame2022      RoomID = 649
	RoomLabGameExtra2022 RoomID = 869
	RoomLabSecurity      RoomID = 650
	RoomAuditoriumNOD    RoomID = 620
	RoomDL40             RoomID = 632
	RoomL30              RoomID = 622
	RoomL50              RoomID = 623
	RoomL70              RoomID = 624
	RoomSmallAuditorium  RoomID = 621
)

// RoomInfo is one catalog entry.
type RoomInfo struct {
	ID       RoomID
	Name     string
	Category RoomCategory
}

// roomCatalog holds the portal display name of every room. Names match the schedule column headers.
var roomCatalog = []RoomInfo{
	{RoomG10_1, "G10:1", CategoryBookableGroupRooms},
	{RoomG10_2, "G10:2", CategoryBookableGroupRooms},
	{RoomG10_3, "G10:3", CategoryBookableGroupRooms},
	{RoomG10_4, "G10:4", CategoryBookableGroupRooms},
	{RoomG10_5, "G10:5", CategoryBookableGroupRooms},
	{RoomG10_6, "G10:6", CategoryBookableGroupRooms},
	{RoomG10_7, "G10:7", CategoryBookableGroupRooms},
	{RoomG5_1, "G5:1", CategoryBookableGroupRooms},
	{RoomG5_2, "G5:2", CategoryBookableGroupRooms},
	{RoomG5_3, "G5:3", CategoryBookableGroupRooms},
	{RoomG5_4, "G5:4", CategoryBookableGroupRooms},
	{RoomG5_5, "G5:5", CategoryBookableGroupRooms},
	{RoomG5_6, "G5:6", CategoryBookableGroupRooms},
	{RoomG5_7, "G5:7", CategoryBookableGroupRooms},
	{RoomG5_8, "G5:8", CategoryBookableGroupRooms},
	{RoomG5_9, "G5:9", CategoryBookableGroupRooms},
	{RoomG5_10, "G5:10", CategoryBookableGroupRooms},
	{RoomG5_11, "G5:11", CategoryBookableGroupRooms},
	{RoomG5_12, "G5:12", CategoryBookableGroupRooms},
	{RoomG5_13, "G5:13", CategoryBookableGroupRooms},
	{RoomG5_15, "G5:15", CategoryBookableGroupRooms},
	{RoomG5_16, "G5:16", CategoryBookableGroupRooms},
	{RoomG5_17, "G5:17", CategoryBookableGroupRooms},
	{RoomF1, "Foaje F1", CategoryVisitorsMeetingRooms},
	{RoomF2, "Foaje F2", CategoryVisitorsMeetingRooms},
	{RoomF3, "Foaje F3", CategoryVisitorsMeetingRooms},
	{RoomD1, "D1", CategoryComputerLabs},
	{RoomD2, "D2", CategoryComputerLabs},
	{RoomD3, "D3", CategoryComputerLabs},
	{RoomD4, "D4", CategoryComputerLabs},
	{RoomIdealStudio, "IDEAL-studion", CategoryDistanceAndRecordingStudios},
	{RoomSmallStudio, "Lilla studion", CategoryDistanceAndRecordingStudios},
	{RoomG10_8, "G10:8", CategoryNonBookableGroupRooms},
	{RoomG5_14, "G5:14", CategoryNonBookableGroupRooms},
	{RoomG5_18, "G5:18", CategoryNonBookableGroupRooms},
	{RoomG5_19, "G5:19", CategoryNonBookableGroupRooms},
	{RoomG5_20, "G5:20", CategoryNonBookableGroupRooms},
	{RoomG5_21, "G5:21", CategoryNonBookableGroupRooms},
	{RoomP1, "Produktion 1", CategoryMediaProduction},
	{RoomP2, "Produktion 2", CategoryMediaProduction},
	{RoomP3, "Produktion 3", CategoryMediaProduction},
	{RoomStudentlabMedia, "Studentlabb Media", CategoryMediaProduction},
	{RoomStudio, "Studio", CategoryMediaProduction},
	{RoomProjectZone2, "Projektmöte Zon 2", CategoryProjectMeetingRooms},
	{RoomProjectZone5, "Projektmöte Zon 5", CategoryProjectMeetingRooms},
	{RoomM10, "M10", CategoryStaffMeetingRooms},
	{RoomM20, "M20", CategoryStaffMeetingRooms},
	{RoomM6_1, "M6:1", CategoryStaffMeetingRooms},
	{RoomM6_2, "M6:2", CategoryStaffMeetingRooms},
	{RoomM6_3, "M6:3", CategoryStaffMeetingRooms},
	{RoomM6_4, "M6:4", CategoryStaffMeetingRooms},
	{RoomM6_5, "M6:5", CategoryStaffMeetingRooms},
	{RoomM6_6, "M6:6", CategoryStaffMeetingRooms},
	{RoomM8, "M8", CategoryStaffMeetingRooms},
	{RoomS1, "S1", CategorySeminarRooms},
	{RoomS2, "S2", CategorySeminarRooms},
	{RoomS3, "S3", CategorySeminarRooms},
	{RoomLabIDRight, "Studentlabb ID Höger", CategoryStudentLab},
	{RoomLabIDLeft, "Studentlabb ID Vänster", CategoryStudentLab},
	{RoomLabIDFix, "Studentlabb ID:fix", CategoryStudentLab},
	{RoomLabGame, "Studentlabb Spel", CategoryStudentLab},
	{RoomLabGame2022, "Studentlabb Spel (-2022)", CategoryStudentLab},
	{RoomLabGameExtra2022, "Studentlabb Spel extra (-2022)", CategoryStudentLab},
	{RoomLabSecurity, "Studentlabb Säkerhet", CategoryStudentLab},
	{RoomAuditoriumNOD, "Aula NOD", CategoryTeachingRooms},
	{RoomDL40, "DL40", CategoryTeachingRooms},
	{RoomL30, "L30", CategoryTeachingRooms},
	{RoomL50, "L50", CategoryTeachingRooms},
	{RoomL70, "L70", CategoryTeachingRooms},
	{RoomSmallAuditorium, "Lilla Hörsalen", CategoryTeachingRooms},
}

var (
	roomsByID   = make(map[RoomID]RoomInfo, len(roomCatalog))
	roomsByName = make(map[string]RoomID, len(roomCatalog))
)

func init() {
	for _, info := range roomCatalog {
		roomsByID[info.ID] = info
		roomsByName[info.Name] = info.ID
	}
}

// RoomByName resolves a schedule column header into a RoomID.
func RoomByName(name string) (RoomID, bool) {
	id, ok := roomsByName[strings.TrimSpace(name)]
	return id, ok
}

// Rooms returns a copy of the catalog.
func Rooms() []RoomInfo {
	out := make([]RoomInfo, len(roomCatalog))
	copy(out, roomCatalog)
	return out
}

// Valid reports whether r is in the catalog.
func (r RoomID) Valid() bool {
	_, ok := roomsByID[r]
	return ok
}

// Name returns the portal display name of r.
func (r RoomID) Name() string {
	if info, ok := roomsByID[r]; ok {
		return info.Name
	}
	return fmt.Sprintf("room-%d", int(r))
}

// Category returns the category r is listed under.
func (r RoomID) Category() RoomCategory {
	return roomsByID[r].Category
}

func (r RoomID) String() string {
	return r.Name()
}
