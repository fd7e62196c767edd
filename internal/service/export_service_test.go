package service

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/room-booker/internal/models"
	appErrors "github.com/noah-isme/room-booker/pkg/errors"
)

func exportProposal() *models.Proposal {
	return &models.Proposal{
		ID: "proposal-1",
		Request: models.RoomRequest{
			Title:    "Thesis group",
			Date:     time.Date(2024, time.April, 8, 0, 0, 0, 0, time.UTC),
			Category: models.CategoryBookableGroupRooms,
		},
		Slots: []models.BookingSlot{
			{Room: models.RoomG10_2, From: 9, To: 11},
			{Room: models.RoomG10_3, From: 11, To: 12},
		},
		RequestedHours: 4,
		CoveredHours:   3,
		Status:         models.ProposalStatusFailed,
		ErrorMessage:   "G10:3 11:00-12:00: rejected",
	}
}

func TestExportServiceRenderCSV(t *testing.T) {
	svc := NewExportService(zap.NewNop(), nil, nil)
	msg := "Room already booked"
	records := []models.BookingRecord{
		{RoomID: int(models.RoomG10_2), FromHour: 9, Status: models.BookingStatusSubmitted},
		{RoomID: int(models.RoomG10_3), FromHour: 11, Status: models.BookingStatusRejected, ErrorMessage: &msg},
	}

	file, err := svc.Render(exportProposal(), records, ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "booking_20240408_Thesis_group.csv", file.Filename)

	rows, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, proposalHeaders, rows[0])
	assert.Equal(t, []string{"G10:2", "634", "09:00", "11:00", "2", "submitted", ""}, rows[1])
	assert.Equal(t, []string{"G10:3", "635", "11:00", "12:00", "1", "rejected", msg}, rows[2])
	assert.Equal(t, "3/4", rows[3][4])
	assert.Equal(t, "failed", rows[3][5])
}

func TestExportServiceRenderPDF(t *testing.T) {
	svc := NewExportService(nil, nil, nil)

	file, err := svc.Render(exportProposal(), nil, ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(nil, nil, nil)

	_, err := svc.Render(exportProposal(), nil, ExportFormat("xlsx"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Render(nil, nil, ExportFormatCSV)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
