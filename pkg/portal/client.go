// Package portal talks to the room booking portal: session upkeep, schedule pages and booking forms.
package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	schedulePath = "/servlet/schema.LokalSchema"
	bookingPath  = "/common/schema/bokning.jspa"
	indexPath    = "/index.jspa"

	// GroupRoomCategory is the only category reachable with a student session.
	GroupRoomCategory = 68

	participantRoomID = 633
	participantFrom   = 9
)

var (
	// ErrBookingRejected marks a booking the portal refused; use errors.Is.
	ErrBookingRejected = errors.New("booking rejected")
	// ErrStaffRequired is returned for categories needing a staff session when staff mode is off.
	ErrStaffRequired = errors.New("category requires a staff session")
	// ErrLoginFailed is returned when the SSO chain ends without a portal session cookie.
	ErrLoginFailed = errors.New("portal login failed")
)

// RejectionError carries the message the portal displayed for a refused booking.
type RejectionError struct {
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrBookingRejected, e.Message)
}

// Is lets errors.Is match ErrBookingRejected.
func (e *RejectionError) Is(target error) bool {
	return target == ErrBookingRejected
}

// Config configures the portal client.
type Config struct {
	BaseURL            string
	StudentLoginURL    string
	StaffLoginURL      string
	Username           string
	Password           string
	Staff              bool
	ParticipantSearch  string
	ParticipantID      string
	RevalidateInterval time.Duration
	Timeout            time.Duration
	UserAgent          string
}

// BookingForm is one reservation request.
type BookingForm struct {
	Date        time.Time
	From        int
	To          int
	Category    int
	RoomID      int
	Title       string
	Description string
}

// OutcomeParser extracts the rejection message from a booking response; "" means accepted.
type OutcomeParser func(io.Reader) (string, error)

// Observer receives timing for each upstream call.
type Observer interface {
	ObserveUpstream(operation string, status int, duration time.Duration)
}

// Client is safe for concurrent use. Each session serialises its own re-login.
type Client struct {
	cfg          Config
	parseOutcome OutcomeParser
	observer     Observer
	logger       *zap.Logger
	now          func() time.Time

	student *session
	staff   *session
}

// New constructs a portal client.
func New(cfg Config, parseOutcome OutcomeParser, observer Observer, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("portal base URL is required")
	}
	if parseOutcome == nil {
		return nil, errors.New("portal outcome parser is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RevalidateInterval <= 0 {
		cfg.RevalidateInterval = time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:          cfg,
		parseOutcome: parseOutcome,
		observer:     observer,
		logger:       logger,
		now:          time.Now,
	}
	c.student = newSession("student", cfg.StudentLoginURL)
	c.staff = newSession("staff", cfg.StaffLoginURL)
	return c, nil
}

func (c *Client) sessionFor(category int) (*session, error) {
	if category == GroupRoomCategory {
		return c.student, nil
	}
	if !c.cfg.Staff {
		return nil, ErrStaffRequired
	}
	return c.staff, nil
}

// FetchSchedule returns the raw schedule page of category for date. The caller closes the body.
func (c *Client) FetchSchedule(ctx context.Context, date time.Time, category int) (io.ReadCloser, error) {
	s, err := c.sessionFor(category)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	err = c.ensureSession(ctx, s)
	httpClient := s.http
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("lokalkategori", strconv.Itoa(category))
	form.Set("year", strconv.Itoa(date.Year()))
	form.Set("month", fmt.Sprintf("%02d", int(date.Month())))
	form.Set("day", fmt.Sprintf("%02d", date.Day()))
	form.Set("datumSubmit", "Visa")

	resp, err := c.postForm(ctx, httpClient, "fetch_schedule", c.cfg.BaseURL+schedulePath, form)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// SubmitBooking books one slot. Group room bookings register the secondary participant
// once per session first.
func (c *Client) SubmitBooking(ctx context.Context, booking BookingForm) error {
	s, err := c.sessionFor(booking.Category)
	if err != nil {
		return err
	}

	s.mu.Lock()
	err = c.ensureSession(ctx, s)
	if err == nil && booking.Category == GroupRoomCategory && !s.participantAdded {
		err = c.registerParticipant(ctx, s, booking.Date)
		if err == nil {
			s.participantAdded = true
		}
	}
	httpClient := s.http
	s.mu.Unlock()
	if err != nil {
		return err
	}

	form := bookingValues(booking.Date, booking.From, booking.To, booking.Category, booking.RoomID)
	form.Set("namn", booking.Title)
	form.Set("descr", booking.Description)
	form.Set("searchTerm", "")
	form.Set("laggTillPersonID", "")
	form.Set("bokning", "")

	resp, err := c.postForm(ctx, httpClient, "submit_booking", c.cfg.BaseURL+bookingPath, form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	msg, err := c.parseOutcome(resp.Body)
	if err != nil {
		return fmt.Errorf("read booking outcome: %w", err)
	}
	if msg != "" {
		return &RejectionError{Message: msg}
	}
	return nil
}

// registerParticipant adds the configured secondary participant to the session's booking form.
// Callers hold s.mu.
func (c *Client) registerParticipant(ctx context.Context, s *session, date time.Time) error {
	if c.cfg.ParticipantID == "" {
		return nil
	}
	form := bookingValues(date, participantFrom, participantFrom+1, GroupRoomCategory, participantRoomID)
	form.Set("namn", "")
	form.Set("descr", "")
	form.Set("searchTerm", c.cfg.ParticipantSearch)
	form.Set("laggTillPersonID", c.cfg.ParticipantID)

	resp, err := c.postForm(ctx, s.http, "register_participant", c.cfg.BaseURL+bookingPath, form)
	if err != nil {
		return fmt.Errorf("register participant: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	c.logger.Info("portal participant registered", zap.String("session", s.name))
	return nil
}

func bookingValues(date time.Time, from, to, category, room int) url.Values {
	form := url.Values{}
	form.Set("year", strconv.Itoa(date.Year()))
	form.Set("month", fmt.Sprintf("%02d", int(date.Month())))
	form.Set("day", fmt.Sprintf("%02d", date.Day()))
	form.Set("from", fmt.Sprintf("%02d:00", from))
	form.Set("to", fmt.Sprintf("%02d:00", to))
	form.Set("lokalkategoriID", strconv.Itoa(category))
	form.Set("lokalID", strconv.Itoa(room))
	return form
}

func (c *Client) postForm(ctx context.Context, httpClient *http.Client, operation, target string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(httpClient, operation, req)
}

func (c *Client) get(ctx context.Context, httpClient *http.Client, operation, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return c.do(httpClient, operation, req)
}

func (c *Client) do(httpClient *http.Client, operation string, req *http.Request) (*http.Response, error) {
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	start := c.now()
	resp, err := httpClient.Do(req)
	status := http.StatusServiceUnavailable
	if resp != nil {
		status = resp.StatusCode
	}
	if c.observer != nil {
		c.observer.ObserveUpstream(operation, status, c.now().Sub(start))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		return nil, fmt.Errorf("%s: portal responded with status %d", operation, resp.StatusCode)
	}
	return resp, nil
}
