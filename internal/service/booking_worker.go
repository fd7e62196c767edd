package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/room-booker/internal/models"
	appErrors "github.com/noah-isme/room-booker/pkg/errors"
	"github.com/noah-isme/room-booker/pkg/jobs"
	"github.com/noah-isme/room-booker/pkg/portal"
)

type bookingSubmitter interface {
	SubmitBooking(ctx context.Context, booking portal.BookingForm) error
}

type bookingRecordWriter interface {
	Create(ctx context.Context, record *models.BookingRecord) error
}

type scheduleInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// BookingWorker bridges queue jobs to the booking portal.
type BookingWorker struct {
	store      *ProposalStore
	submitter  bookingSubmitter
	records    bookingRecordWriter
	cache      scheduleInvalidator
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
	now        func() time.Time
}

// NewBookingWorker constructs a worker.
func NewBookingWorker(store *ProposalStore, submitter bookingSubmitter, records bookingRecordWriter, cache scheduleInvalidator, metrics *MetricsService, maxRetries int, logger *zap.Logger) *BookingWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &BookingWorker{
		store:      store,
		submitter:  submitter,
		records:    records,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Handle submits the remaining slots of a queued proposal in chronological order.
// A portal rejection stops the run; slots booked before it stay booked.
func (w *BookingWorker) Handle(ctx context.Context, job jobs.Job) error {
	proposal, ok := w.store.Update(job.ID, func(p *models.Proposal) {
		if !p.Settled() {
			p.Status = models.ProposalStatusProcessing
		}
	})
	if !ok {
		return jobs.Permanent(appErrors.Clone(appErrors.ErrNotFound, "proposal expired before submission"))
	}
	if proposal.Settled() {
		return nil
	}
	actor, _ := job.Payload.(string)
	if actor == "" {
		actor = proposal.CreatedBy
	}

	for i := proposal.SubmittedSlots; i < len(proposal.Slots); i++ {
		slot := proposal.Slots[i]
		err := w.submitter.SubmitBooking(ctx, portal.BookingForm{
			Date:     proposal.Request.Date,
			From:     int(slot.From),
			To:       int(slot.To),
			Category: int(proposal.Request.Category),
			RoomID:   int(slot.Room),
			Title:    proposal.Request.Title,
		})
		status := bookingStatusFor(err)
		w.record(ctx, proposal, slot, status, err, actor)
		w.metrics.RecordSlotOutcome(string(status))

		if err == nil {
			next := i + 1
			w.store.Update(job.ID, func(p *models.Proposal) { p.SubmittedSlots = next })
			continue
		}

		permanent := status == models.BookingStatusRejected || errors.Is(err, portal.ErrStaffRequired)
		if permanent || job.Attempt >= w.maxRetries {
			w.finish(ctx, proposal, models.ProposalStatusFailed, fmt.Sprintf("%s %s-%s: %v", slot.Room.Name(), slot.From, slot.To, err))
			if permanent {
				return jobs.Permanent(err)
			}
			return err
		}

		msg := err.Error()
		w.store.Update(job.ID, func(p *models.Proposal) {
			p.Status = models.ProposalStatusQueued
			p.ErrorMessage = msg
		})
		w.logger.Warn("booking slot failed, will retry",
			zap.String("proposal_id", job.ID),
			zap.Int("attempt", job.Attempt),
			zap.Error(err))
		return err
	}

	w.finish(ctx, proposal, models.ProposalStatusBooked, "")
	return nil
}

// DeadLetter marks a proposal failed once the queue gives up on it.
func (w *BookingWorker) DeadLetter(job jobs.Job, err error) {
	w.store.Update(job.ID, func(p *models.Proposal) {
		if p.Settled() {
			return
		}
		p.Status = models.ProposalStatusFailed
		p.ErrorMessage = err.Error()
	})
	w.logger.Error("booking job abandoned", zap.String("proposal_id", job.ID), zap.Error(err))
}

func (w *BookingWorker) finish(ctx context.Context, proposal models.Proposal, status models.ProposalStatus, msg string) {
	w.store.Update(proposal.ID, func(p *models.Proposal) {
		p.Status = status
		p.ErrorMessage = msg
	})
	if w.cache != nil {
		key := ScheduleCacheKey(proposal.Request.Category, proposal.Request.Date)
		if err := w.cache.Invalidate(ctx, key); err != nil {
			w.logger.Warn("failed to invalidate schedule cache", zap.String("key", key), zap.Error(err))
		}
	}
	w.logger.Info("booking finished",
		zap.String("proposal_id", proposal.ID),
		zap.String("status", string(status)),
		zap.String("error", msg))
}

func (w *BookingWorker) record(ctx context.Context, proposal models.Proposal, slot models.BookingSlot, status models.BookingStatus, cause error, actor string) {
	if w.records == nil {
		return
	}
	record := &models.BookingRecord{
		ProposalID:  proposal.ID,
		RoomID:      int(slot.Room),
		RoomName:    slot.Room.Name(),
		Category:    int(proposal.Request.Category),
		BookingDate: proposal.Request.Date,
		FromHour:    int(slot.From),
		ToHour:      int(slot.To),
		Title:       proposal.Request.Title,
		Status:      status,
		CreatedBy:   actor,
		CreatedAt:   w.now().UTC(),
	}
	if cause != nil {
		msg := cause.Error()
		var rejection *portal.RejectionError
		if errors.As(cause, &rejection) {
			msg = rejection.Message
		}
		record.ErrorMessage = &msg
	}
	if err := w.records.Create(ctx, record); err != nil {
		w.logger.Warn("failed to persist booking record", zap.String("proposal_id", proposal.ID), zap.Error(err))
	}
}

func bookingStatusFor(err error) models.BookingStatus {
	switch {
	case err == nil:
		return models.BookingStatusSubmitted
	case errors.Is(err, portal.ErrBookingRejected):
		return models.BookingStatusRejected
	default:
		return models.BookingStatusFailed
	}
}
