package service

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/room-booker/internal/models"
	appErrors "github.com/noah-isme/room-booker/pkg/errors"
	"github.com/noah-isme/room-booker/pkg/export"
)

// ExportFormat names a rendered proposal format.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportFile is a rendered proposal ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders proposals as CSV or PDF tables.
type ExportService struct {
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{csv: csv, pdf: pdf, logger: logger}
}

var proposalHeaders = []string{"Room", "Room ID", "From", "To", "Hours", "Status", "Message"}

// Render builds the slot table of proposal, annotated with submission outcomes when records exist.
func (s *ExportService) Render(proposal *models.Proposal, records []models.BookingRecord, format ExportFormat) (*ExportFile, error) {
	if proposal == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
	}
	dataset := proposalDataset(proposal, records)
	title := fmt.Sprintf("%s %s %s", proposal.Request.Title, proposal.Request.Date.Format("2006-01-02"), proposal.Request.Category)

	var (
		payload     []byte
		err         error
		contentType string
	)
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		s.logger.Error("failed to render proposal export", zap.String("proposal_id", proposal.ID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &ExportFile{
		Filename:    fmt.Sprintf("booking_%s_%s.%s", proposal.Request.Date.Format("20060102"), sanitizeFilename(proposal.Request.Title), format),
		ContentType: contentType,
		Data:        payload,
	}, nil
}

func proposalDataset(proposal *models.Proposal, records []models.BookingRecord) export.Dataset {
	outcomes := make(map[string]models.BookingRecord, len(records))
	for _, record := range records {
		// a retried slot keeps its latest outcome
		outcomes[slotKey(record.RoomID, record.FromHour)] = record
	}

	rows := make([]map[string]string, 0, len(proposal.Slots)+1)
	for _, slot := range proposal.Slots {
		row := map[string]string{
			"Room":    slot.Room.Name(),
			"Room ID": strconv.Itoa(int(slot.Room)),
			"From":    slot.From.String(),
			"To":      slot.To.String(),
			"Hours":   strconv.Itoa(slot.Hours()),
			"Status":  "planned",
		}
		if record, ok := outcomes[slotKey(int(slot.Room), int(slot.From))]; ok {
			row["Status"] = string(record.Status)
			if record.ErrorMessage != nil {
				row["Message"] = *record.ErrorMessage
			}
		}
		rows = append(rows, row)
	}
	rows = append(rows, map[string]string{
		"Room":    "Total",
		"Hours":   fmt.Sprintf("%d/%d", proposal.CoveredHours, proposal.RequestedHours),
		"Status":  strings.ToLower(string(proposal.Status)),
		"Message": proposal.ErrorMessage,
	})
	return export.Dataset{Headers: proposalHeaders, Rows: rows}
}

func slotKey(room, from int) string {
	return fmt.Sprintf("%d@%d", room, from)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_", "\"", "")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
