package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/room-booker/internal/dto"
	"github.com/noah-isme/room-booker/internal/models"
	appErrors "github.com/noah-isme/room-booker/pkg/errors"
	"github.com/noah-isme/room-booker/pkg/jobs"
	"github.com/noah-isme/room-booker/pkg/portal"
)

type scheduleSourceStub struct {
	mu    sync.Mutex
	page  string
	err   error
	calls int
}

func (s *scheduleSourceStub) FetchSchedule(_ context.Context, _ time.Time, _ int) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.page)), nil
}

// memoryCache mimics the JSON round trip of the Redis cache.
type memoryCache struct {
	mu          sync.Mutex
	items       map[string][]byte
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, pattern)
	c.invalidated = append(c.invalidated, pattern)
	return nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type recordStoreStub struct {
	mu      sync.Mutex
	records []models.BookingRecord
}

func (r *recordStoreStub) Create(_ context.Context, record *models.BookingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *recordStoreStub) ListByProposal(_ context.Context, proposalID string) ([]models.BookingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.BookingRecord
	for _, record := range r.records {
		if record.ProposalID == proposalID {
			out = append(out, record)
		}
	}
	return out, nil
}

var bookingNow = time.Date(2024, time.April, 15, 8, 30, 0, 0, time.UTC)

// G10:2 is busy 08-11 and G10:1 at 11.
func bookingSchedulePage() string {
	return scheduleDocument(
		hourRow(8, emptyCell, eventTd("Study group", 8, 11, 3), emptyCell),
		hourRow(9, emptyCell, emptyCell),
		hourRow(10, emptyCell, emptyCell),
		hourRow(11, eventTd("Meeting", 11, 12, 0), emptyCell, emptyCell),
	)
}

func counterValue(t *testing.T, metrics *MetricsService, name string) float64 {
	t.Helper()
	families, err := metrics.registry.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

type bookingFixture struct {
	svc     *BookingService
	source  *scheduleSourceStub
	cache   *memoryCache
	queue   *queueStub
	records *recordStoreStub
	store   *ProposalStore
	metrics *MetricsService
}

func newBookingFixture(t *testing.T, cfg BookingConfig) *bookingFixture {
	t.Helper()
	f := &bookingFixture{
		source:  &scheduleSourceStub{page: bookingSchedulePage()},
		cache:   newMemoryCache(),
		queue:   &queueStub{},
		records: &recordStoreStub{},
		store:   NewProposalStore(time.Hour),
		metrics: NewMetricsService(),
	}
	f.store.now = func() time.Time { return bookingNow }
	f.svc = NewBookingService(f.source, f.cache, f.queue, f.records, f.store, models.DefaultPreferenceTable(), f.metrics, nil, zap.NewNop(), cfg)
	f.svc.now = func() time.Time { return bookingNow }
	return f
}

func groupRoomRequest() models.RoomRequest {
	return models.RoomRequest{
		Date:     time.Date(2024, time.April, 17, 0, 0, 0, 0, time.UTC),
		Start:    9,
		Duration: 3,
		Category: models.CategoryBookableGroupRooms,
	}
}

func TestBookingServicePlanChainsRooms(t *testing.T) {
	f := newBookingFixture(t, BookingConfig{})

	proposal, err := f.svc.Plan(context.Background(), groupRoomRequest(), "desk")
	require.NoError(t, err)

	assert.Equal(t, []models.BookingSlot{
		{Room: models.RoomG10_1, From: 9, To: 11},
		{Room: models.RoomG10_2, From: 11, To: 12},
	}, proposal.Slots)
	assert.Equal(t, 3, proposal.RequestedHours)
	assert.Equal(t, 3, proposal.CoveredHours)
	assert.True(t, proposal.Complete())
	assert.Equal(t, models.ProposalStatusPending, proposal.Status)
	assert.Equal(t, "Meeting", proposal.Request.Title)
	assert.Equal(t, "desk", proposal.CreatedBy)

	stored, ok := f.store.Get(proposal.ID)
	require.True(t, ok)
	assert.Equal(t, proposal.Slots, stored.Slots)

	_, err = f.svc.Plan(context.Background(), groupRoomRequest(), "desk")
	require.NoError(t, err)
	assert.Equal(t, 1, f.source.calls)
}

func TestBookingServicePlanStrictStartKeepsShortfall(t *testing.T) {
	f := newBookingFixture(t, BookingConfig{})
	req := groupRoomRequest()
	req.Start = 8
	req.Duration = 1
	req.Restrictions = []models.RoomRestriction{models.RestrictionG10Room}

	f.source.page = scheduleDocument(
		hourRow(8, eventTd("A", 8, 9, 0), eventTd("B", 8, 9, 0), emptyCell),
	)

	proposal, err := f.svc.Plan(context.Background(), req, "desk")
	require.NoError(t, err)
	assert.Equal(t, []models.BookingSlot{{Room: models.RoomG10_2, From: 9, To: 10}}, proposal.Slots)

	req.StrictStart = true
	proposal, err = f.svc.Plan(context.Background(), req, "desk")
	require.NoError(t, err)
	assert.Equal(t, []models.BookingSlot{{Room: models.RoomG10_2, From: 8, To: 9}}, proposal.Slots)
}

func TestBookingServicePlanRejectsBadRequests(t *testing.T) {
	f := newBookingFixture(t, BookingConfig{BookableDays: 15})

	past := groupRoomRequest()
	past.Date = bookingNow.AddDate(0, 0, -1)
	_, err := f.svc.Plan(context.Background(), past, "desk")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidRequest))

	far := groupRoomRequest()
	far.Date = bookingNow.AddDate(0, 0, 20)
	_, err = f.svc.Plan(context.Background(), far, "desk")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidRequest))

	zero := groupRoomRequest()
	zero.Duration = 0
	_, err = f.svc.Plan(context.Background(), zero, "desk")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidRequest))

	staff := groupRoomRequest()
	staff.Category = models.CategoryStaffMeetingRooms
	_, err = f.svc.Plan(context.Background(), staff, "desk")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	unknown := groupRoomRequest()
	unknown.Category = models.RoomCategory(1)
	_, err = f.svc.Plan(context.Background(), unknown, "desk")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidRequest))

	assert.Equal(t, 0, f.source.calls)
}

func TestBookingServiceFetchScheduleErrors(t *testing.T) {
	f := newBookingFixture(t, BookingConfig{})
	date := groupRoomRequest().Date

	f.source.page = "<html><p>maintenance</p></html>"
	_, err := f.svc.FetchSchedule(context.Background(), date, models.CategoryBookableGroupRooms)
	assert.True(t, appErrors.Is(err, appErrors.ErrScheduleParse))
	assert.Equal(t, float64(1), counterValue(t, f.metrics, "schedule_parse_failures_total"))

	f.source.err = errors.New("connection reset")
	_, err = f.svc.FetchSchedule(context.Background(), date, models.CategoryBookableGroupRooms)
	assert.True(t, appErrors.Is(err, appErrors.ErrUpstream))

	f.source.err = portal.ErrStaffRequired
	_, err = f.svc.FetchSchedule(context.Background(), date, models.CategoryBookableGroupRooms)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestBookingServicePlanFromDTO(t *testing.T) {
	f := newBookingFixture(t, BookingConfig{Staff: true})

	proposal, err := f.svc.PlanFromDTO(context.Background(), dto.PlanBookingRequest{
		Title:       "Retro",
		Date:        "2024-04-17",
		FromTime:    9,
		Duration:    4,
		Breaks:      []dto.BreakRequest{{FromTime: 10, Duration: 1}},
		RoomFilters: []int{int(models.RestrictionG10Room)},
	}, "desk")
	require.NoError(t, err)
	assert.Equal(t, "Retro", proposal.Request.Title)
	assert.Equal(t, models.CategoryBookableGroupRooms, proposal.Request.Category)
	assert.Equal(t, 3, proposal.RequestedHours)
	assert.Equal(t, []models.RoomRestriction{models.RestrictionG10Room}, proposal.Request.Restrictions)
	for _, slot := range proposal.Slots {
		assert.False(t, slot.From <= 10 && 10 < slot.To, "slot %v overlaps the break", slot)
	}

	_, err = f.svc.PlanFromDTO(context.Background(), dto.PlanBookingRequest{Date: "17/04/2024", FromTime: 9, Duration: 1}, "desk")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestBookingServiceConfirmLifecycle(t *testing.T) {
	f := newBookingFixture(t, BookingConfig{})
	proposal, err := f.svc.Plan(context.Background(), groupRoomRequest(), "desk")
	require.NoError(t, err)

	confirmed, err := f.svc.Confirm(context.Background(), proposal.ID, "desk")
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusQueued, confirmed.Status)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, proposal.ID, f.queue.jobs[0].ID)
	assert.Equal(t, BookingJobType, f.queue.jobs[0].Type)

	_, err = f.svc.Confirm(context.Background(), proposal.ID, "desk")
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	err = f.svc.Discard(context.Background(), proposal.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = f.svc.Confirm(context.Background(), "missing", "desk")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestBookingServiceConfirmRevertsWhenQueueFails(t *testing.T) {
	f := newBookingFixture(t, BookingConfig{})
	f.queue.err = errors.New("queue stopped")
	proposal, err := f.svc.Plan(context.Background(), groupRoomRequest(), "desk")
	require.NoError(t, err)

	_, err = f.svc.Confirm(context.Background(), proposal.ID, "desk")
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))

	stored, ok := f.store.Get(proposal.ID)
	require.True(t, ok)
	assert.Equal(t, models.ProposalStatusPending, stored.Status)
}

func TestBookingServiceDiscardAndGet(t *testing.T) {
	f := newBookingFixture(t, BookingConfig{})
	proposal, err := f.svc.Plan(context.Background(), groupRoomRequest(), "desk")
	require.NoError(t, err)

	got, records, err := f.svc.Get(context.Background(), proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, proposal.ID, got.ID)
	assert.Empty(t, records)

	require.NoError(t, f.svc.Discard(context.Background(), proposal.ID))
	_, _, err = f.svc.Get(context.Background(), proposal.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestProposalStoreExpires(t *testing.T) {
	store := NewProposalStore(time.Minute)
	now := bookingNow
	store.now = func() time.Time { return now }

	store.Save(models.Proposal{ID: "p1"})
	_, ok := store.Get("p1")
	require.True(t, ok)

	now = now.Add(30 * time.Second)
	updated, ok := store.Update("p1", func(p *models.Proposal) { p.Status = models.ProposalStatusQueued })
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Minute), updated.ExpiresAt)

	now = now.Add(2 * time.Minute)
	_, ok = store.Get("p1")
	assert.False(t, ok)
	_, ok = store.Update("p1", func(*models.Proposal) {})
	assert.False(t, ok)
}

func TestProposalStoreDeleteIf(t *testing.T) {
	store := NewProposalStore(time.Minute)
	store.Save(models.Proposal{ID: "p1", Status: models.ProposalStatusQueued})

	found, err := store.DeleteIf("p1", func(p models.Proposal) error {
		return appErrors.Clone(appErrors.ErrConflict, string(p.Status))
	})
	assert.True(t, found)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	_, ok := store.Get("p1")
	require.True(t, ok)

	found, err = store.DeleteIf("p1", func(models.Proposal) error { return nil })
	assert.True(t, found)
	assert.NoError(t, err)
	_, ok = store.Get("p1")
	assert.False(t, ok)

	found, _ = store.DeleteIf("p1", func(models.Proposal) error { return nil })
	assert.False(t, found)
}

func TestBookingServiceConfirmAndDiscardNeverBothSucceed(t *testing.T) {
	f := newBookingFixture(t, BookingConfig{})
	slot := models.BookingSlot{Room: models.RoomG10_1, From: 9, To: 10}

	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("p-%d", i)
		f.store.Save(models.Proposal{ID: id, Status: models.ProposalStatusPending, Slots: []models.BookingSlot{slot}})

		var confirmErr, discardErr error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, confirmErr = f.svc.Confirm(context.Background(), id, "desk")
		}()
		go func() {
			defer wg.Done()
			discardErr = f.svc.Discard(context.Background(), id)
		}()
		wg.Wait()

		if confirmErr == nil {
			assert.True(t, appErrors.Is(discardErr, appErrors.ErrConflict), "proposal %s", id)
			_, ok := f.store.Get(id)
			assert.True(t, ok, "queued proposal %s was removed", id)
		} else {
			assert.NoError(t, discardErr, "proposal %s", id)
			assert.True(t, appErrors.Is(confirmErr, appErrors.ErrNotFound), "proposal %s", id)
		}
	}
}

func TestBookingServiceScheduleFromQueryReportsCacheHits(t *testing.T) {
	f := newBookingFixture(t, BookingConfig{})

	schedule, hit, err := f.svc.ScheduleFromQuery(context.Background(), dto.ScheduleQuery{Date: "2024-04-17"})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"G10:1", "G10:2", "Okänt rum"}, schedule.Rooms)

	_, hit, err = f.svc.ScheduleFromQuery(context.Background(), dto.ScheduleQuery{Date: "2024-04-17", Category: 68})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, f.source.calls)

	_, _, err = f.svc.ScheduleFromQuery(context.Background(), dto.ScheduleQuery{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
