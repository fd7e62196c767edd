package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/room-booker/internal/dto"
	"github.com/noah-isme/room-booker/internal/models"
	appErrors "github.com/noah-isme/room-booker/pkg/errors"
	"github.com/noah-isme/room-booker/pkg/jobs"
	"github.com/noah-isme/room-booker/pkg/portal"
)

// BookingJobType identifies proposal submission jobs on the queue.
const BookingJobType = "booking.submit"

type scheduleSource interface {
	FetchSchedule(ctx context.Context, date time.Time, category int) (io.ReadCloser, error)
}

type scheduleCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type bookingQueue interface {
	Enqueue(job jobs.Job) error
}

type bookingRecordReader interface {
	ListByProposal(ctx context.Context, proposalID string) ([]models.BookingRecord, error)
}

// BookingConfig tunes planning behaviour.
type BookingConfig struct {
	ScheduleCacheTTL time.Duration
	Location         *time.Location
	DefaultTitle     string
	BookableDays     int
	Staff            bool
}

// BookingService plans bookings against the live schedule and hands confirmed proposals to the queue.
type BookingService struct {
	source    scheduleSource
	cache     scheduleCache
	queue     bookingQueue
	records   bookingRecordReader
	store     *ProposalStore
	table     models.PreferenceTable
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       BookingConfig
	now       func() time.Time
}

// NewBookingService wires the booking orchestration.
func NewBookingService(
	source scheduleSource,
	cache scheduleCache,
	queue bookingQueue,
	records bookingRecordReader,
	store *ProposalStore,
	table models.PreferenceTable,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg BookingConfig,
) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if store == nil {
		store = NewProposalStore(30 * time.Minute)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ScheduleCacheTTL <= 0 {
		cfg.ScheduleCacheTTL = 2 * time.Minute
	}
	if strings.TrimSpace(cfg.DefaultTitle) == "" {
		cfg.DefaultTitle = "Meeting"
	}
	return &BookingService{
		source:    source,
		cache:     cache,
		queue:     queue,
		records:   records,
		store:     store,
		table:     table,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// ScheduleCacheKey is the cache key of a parsed schedule page.
func ScheduleCacheKey(category models.RoomCategory, date time.Time) string {
	return fmt.Sprintf("schedule:%d:%s", int(category), date.Format("2006-01-02"))
}

// FetchSchedule returns the parsed schedule of category for date, served from cache when fresh.
func (s *BookingService) FetchSchedule(ctx context.Context, date time.Time, category models.RoomCategory) (*models.Schedule, error) {
	schedule, _, err := s.LookupSchedule(ctx, date, category)
	return schedule, err
}

// LookupSchedule is FetchSchedule that also reports whether the cache answered.
func (s *BookingService) LookupSchedule(ctx context.Context, date time.Time, category models.RoomCategory) (*models.Schedule, bool, error) {
	if err := s.checkCategory(category); err != nil {
		return nil, false, err
	}

	key := ScheduleCacheKey(category, date)
	if s.cache != nil {
		var cached models.Schedule
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	body, err := s.source.FetchSchedule(ctx, date, int(category))
	if err != nil {
		return nil, false, s.upstreamError(err, "failed to fetch schedule")
	}
	defer body.Close()

	schedule, err := ParseSchedule(body)
	if err != nil {
		s.metrics.RecordParseFailure()
		s.logger.Error("schedule page could not be parsed",
			zap.Int("category", int(category)),
			zap.String("date", date.Format("2006-01-02")),
			zap.Error(err))
		return nil, false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, schedule, s.cfg.ScheduleCacheTTL); err != nil {
			s.logger.Warn("failed to cache schedule", zap.String("key", key), zap.Error(err))
		}
	}
	return schedule, false, nil
}

// ScheduleFromQuery validates API query parameters and looks up the schedule.
func (s *BookingService) ScheduleFromQuery(ctx context.Context, query dto.ScheduleQuery) (*models.Schedule, bool, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule query")
	}
	date, err := time.ParseInLocation("2006-01-02", query.Date, s.cfg.Location)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	category := models.RoomCategory(query.Category)
	if query.Category == 0 {
		category = models.CategoryBookableGroupRooms
	}
	return s.LookupSchedule(ctx, date, category)
}

// PlanFromDTO validates an API payload and plans it.
func (s *BookingService) PlanFromDTO(ctx context.Context, req dto.PlanBookingRequest, actor string) (*models.Proposal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, s.cfg.Location)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	category := models.RoomCategory(req.RoomCategory)
	if req.RoomCategory == 0 {
		category = models.CategoryBookableGroupRooms
	}

	request := models.RoomRequest{
		Title:       req.Title,
		Date:        date,
		Start:       models.Hour(req.FromTime),
		Duration:    req.Duration,
		Category:    category,
		StrictStart: req.StrictStart,
	}
	for _, b := range req.Breaks {
		request.Breaks = append(request.Breaks, models.Break{Start: models.Hour(b.FromTime), Duration: b.Duration})
	}
	for _, raw := range req.RoomFilters {
		restriction, err := models.NewRoomRestriction(raw)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room filter")
		}
		request.Restrictions = append(request.Restrictions, restriction)
	}
	return s.Plan(ctx, request, actor)
}

// Plan computes the room assignments for a request and stores them as a pending proposal.
func (s *BookingService) Plan(ctx context.Context, req models.RoomRequest, actor string) (*models.Proposal, error) {
	if err := ValidateAllocation(req.Start, req.Duration, req.Breaks); err != nil {
		return nil, err
	}
	if err := s.checkDate(req.Date); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = s.cfg.DefaultTitle
	}

	schedule, err := s.FetchSchedule(ctx, req.Date, req.Category)
	if err != nil {
		return nil, err
	}

	rooms, unknown := schedule.Availability()
	if len(unknown) > 0 {
		s.logger.Warn("schedule lists rooms missing from the catalog", zap.Strings("rooms", unknown))
	}
	ranked := RankRooms(rooms, req.Restrictions, s.table)

	slots, err := PlanSlots(ranked, req.Start, req.Duration, req.Breaks, !req.StrictStart)
	if err != nil {
		return nil, err
	}

	requested := 0
	for _, segment := range SplitBreaks(req.Start, req.Duration, req.Breaks) {
		requested += segment.Duration
	}
	covered := Coverage(slots)
	s.metrics.ObservePlan(requested, covered)

	now := s.now().UTC()
	proposal := models.Proposal{
		ID:             uuid.NewString(),
		Request:        req,
		Slots:          slots,
		RequestedHours: requested,
		CoveredHours:   covered,
		Status:         models.ProposalStatusPending,
		CreatedBy:      actor,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.store.TTL()),
	}
	s.store.Save(proposal)

	s.logger.Info("booking planned",
		zap.String("proposal_id", proposal.ID),
		zap.Int("category", int(req.Category)),
		zap.String("date", req.Date.Format("2006-01-02")),
		zap.Int("rooms", len(ranked)),
		zap.Int("slots", len(slots)),
		zap.Int("requested_hours", requested),
		zap.Int("covered_hours", covered))
	return &proposal, nil
}

// Get returns a proposal together with the submission records written so far.
func (s *BookingService) Get(ctx context.Context, id string) (*models.Proposal, []models.BookingRecord, error) {
	proposal, ok := s.store.Get(id)
	if !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
	}
	var records []models.BookingRecord
	if s.records != nil && proposal.Status != models.ProposalStatusPending {
		list, err := s.records.ListByProposal(ctx, id)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking records")
		}
		records = list
	}
	return &proposal, records, nil
}

// Confirm queues a pending proposal for submission.
func (s *BookingService) Confirm(ctx context.Context, id, actor string) (*models.Proposal, error) {
	var conflict error
	proposal, ok := s.store.Update(id, func(p *models.Proposal) {
		switch {
		case p.Status != models.ProposalStatusPending:
			conflict = appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("proposal is %s", strings.ToLower(string(p.Status))))
		case len(p.Slots) == 0:
			conflict = appErrors.Clone(appErrors.ErrConflict, "proposal has no slots to book")
		default:
			p.Status = models.ProposalStatusQueued
		}
	})
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
	}
	if conflict != nil {
		return nil, conflict
	}

	if err := s.queue.Enqueue(jobs.Job{ID: proposal.ID, Type: BookingJobType, Payload: actor}); err != nil {
		s.store.Update(id, func(p *models.Proposal) { p.Status = models.ProposalStatusPending })
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue booking")
	}
	s.logger.Info("booking confirmed", zap.String("proposal_id", id), zap.String("actor", actor))
	return &proposal, nil
}

// Discard drops a proposal that has not been queued.
func (s *BookingService) Discard(ctx context.Context, id string) error {
	found, err := s.store.DeleteIf(id, func(p models.Proposal) error {
		if p.Status == models.ProposalStatusQueued || p.Status == models.ProposalStatusProcessing {
			return appErrors.Clone(appErrors.ErrConflict, "proposal is being submitted")
		}
		return nil
	})
	if !found {
		return appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
	}
	return err
}

func (s *BookingService) checkCategory(category models.RoomCategory) error {
	if !category.Valid() {
		return appErrors.Clone(appErrors.ErrInvalidRequest, fmt.Sprintf("unknown room category %d", int(category)))
	}
	if category.RequiresStaff() && !s.cfg.Staff {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("%s requires a staff account", category))
	}
	return nil
}

func (s *BookingService) checkDate(date time.Time) error {
	now := s.now().In(s.cfg.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.cfg.Location)
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.cfg.Location)
	if day.Before(today) {
		return appErrors.Clone(appErrors.ErrInvalidRequest, "date is in the past")
	}
	if s.cfg.BookableDays > 0 && !day.Before(today.AddDate(0, 0, s.cfg.BookableDays)) {
		return appErrors.Clone(appErrors.ErrInvalidRequest, fmt.Sprintf("date is more than %d days ahead", s.cfg.BookableDays))
	}
	return nil
}

func (s *BookingService) upstreamError(err error, message string) error {
	switch {
	case errors.Is(err, portal.ErrStaffRequired):
		return appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "category requires a staff account")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "portal request timed out")
	default:
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, message)
	}
}

// ProposalStore keeps proposals in memory until they expire.
type ProposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]models.Proposal
	now   func() time.Time
}

// NewProposalStore builds a store whose entries live for ttl after their last save.
func NewProposalStore(ttl time.Duration) *ProposalStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ProposalStore{
		ttl:   ttl,
		items: make(map[string]models.Proposal),
		now:   time.Now,
	}
}

// TTL returns the configured lifetime.
func (s *ProposalStore) TTL() time.Duration {
	return s.ttl
}

// Save stores proposal and prunes expired entries.
func (s *ProposalStore) Save(proposal models.Proposal) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, item := range s.items {
		if now.After(item.ExpiresAt) {
			delete(s.items, id)
		}
	}
	if proposal.ExpiresAt.IsZero() {
		proposal.ExpiresAt = now.Add(s.ttl)
	}
	s.items[proposal.ID] = proposal
}

// Get returns a copy of the proposal while it is live.
func (s *ProposalStore) Get(id string) (models.Proposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return models.Proposal{}, false
	}
	if s.now().After(proposal.ExpiresAt) {
		s.Delete(id)
		return models.Proposal{}, false
	}
	return proposal, true
}

// Update applies fn to a live proposal under the store lock and refreshes its expiry.
func (s *ProposalStore) Update(id string, fn func(*models.Proposal)) (models.Proposal, bool) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.items[id]
	if !ok || now.After(proposal.ExpiresAt) {
		delete(s.items, id)
		return models.Proposal{}, false
	}
	fn(&proposal)
	proposal.ExpiresAt = now.Add(s.ttl)
	s.items[id] = proposal
	return proposal, true
}

// DeleteIf removes a live proposal when check returns nil. The check and the removal share one lock.
func (s *ProposalStore) DeleteIf(id string, check func(models.Proposal) error) (bool, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.items[id]
	if !ok || now.After(proposal.ExpiresAt) {
		delete(s.items, id)
		return false, nil
	}
	if err := check(proposal); err != nil {
		return true, err
	}
	delete(s.items, id)
	return true, nil
}

// Delete removes a proposal.
func (s *ProposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
