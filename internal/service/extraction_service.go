package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/room-booker/internal/dto"
	"github.com/noah-isme/room-booker/internal/models"
	appErrors "github.com/noah-isme/room-booker/pkg/errors"
	"github.com/noah-isme/room-booker/pkg/llm"
)

const (
	emptyReply        = "<Empty response>"
	validJSONReminder = "<provide valid json without any other characters before or after it>"
)

type chatModel interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// ExtractionConfig tunes the request extractor.
type ExtractionConfig struct {
	MaxRetries   int
	Location     *time.Location
	BookableDays int
	Staff        bool
}

// Extraction is the parsed answer of the model.
type Extraction struct {
	Reply string
	// RawRequests is the requests array exactly as the model produced it, for replay in later turns.
	RawRequests json.RawMessage
	Requests    []models.RoomRequest
}

// invalidOutputError marks model output that may succeed on another attempt.
type invalidOutputError struct {
	err error
}

func (e *invalidOutputError) Error() string { return e.err.Error() }
func (e *invalidOutputError) Unwrap() error { return e.err }

// ExtractionService turns free text into structured room requests through a chat model.
type ExtractionService struct {
	model     chatModel
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ExtractionConfig
	now       func() time.Time
}

// NewExtractionService constructs the extractor.
func NewExtractionService(model chatModel, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg ExtractionConfig) *ExtractionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.BookableDays <= 0 {
		cfg.BookableDays = 15
	}
	return &ExtractionService{model: model, validator: validate, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
}

// Extract asks the model for room requests. Invalid output is retried: the first retry resends the
// same conversation, later ones show the model its invalid answer and ask for plain JSON.
func (s *ExtractionService) Extract(ctx context.Context, history []dto.ChatTurn, message string) (*Extraction, error) {
	prompt := strings.TrimSpace(message)
	if prompt == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message is required")
	}
	turns := historyMessages(history)

	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		result, err := s.attempt(ctx, turns, prompt)
		if err == nil {
			s.metrics.RecordExtraction("success")
			return result, nil
		}

		var invalid *invalidOutputError
		if !errors.As(err, &invalid) {
			s.metrics.RecordExtraction("error")
			return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "language model unavailable")
		}
		s.metrics.RecordExtraction("invalid")
		lastErr = err
		if attempt == s.cfg.MaxRetries-1 {
			break
		}

		s.logger.Warn("model returned invalid output, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("remaining", s.cfg.MaxRetries-attempt-1),
			zap.Error(err))
		if attempt == 0 {
			continue
		}
		turns = append(turns,
			llm.Message{Role: llm.RoleUser, Content: prompt},
			llm.Message{Role: llm.RoleAssistant, Content: fmt.Sprintf("<invalid output, error: %v>", err)},
		)
		prompt = validJSONReminder
	}

	return nil, appErrors.Wrap(lastErr, appErrors.ErrExtraction.Code, appErrors.ErrExtraction.Status, "could not understand the request")
}

func (s *ExtractionService) attempt(ctx context.Context, turns []llm.Message, prompt string) (*Extraction, error) {
	messages := make([]llm.Message, 0, len(turns)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: s.systemPrompt()})
	messages = append(messages, turns...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	out, err := s.model.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("model completion", zap.String("output", out))
	return s.decode(out)
}

func (s *ExtractionService) decode(out string) (*Extraction, error) {
	var envelope struct {
		ConversationsResponse string          `json:"conversations_response"`
		Requests              json.RawMessage `json:"requests"`
	}
	decoder := json.NewDecoder(strings.NewReader(strings.TrimSpace(out)))
	if err := decoder.Decode(&envelope); err != nil {
		return nil, &invalidOutputError{fmt.Errorf("decode output: %w", err)}
	}
	if decoder.More() {
		return nil, &invalidOutputError{errors.New("trailing characters after json object")}
	}

	result := dto.ExtractionResult{ConversationsResponse: envelope.ConversationsResponse}
	raw := bytes.TrimSpace(envelope.Requests)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = json.RawMessage("[]")
	}
	if err := json.Unmarshal(raw, &result.Requests); err != nil {
		return nil, &invalidOutputError{fmt.Errorf("decode requests: %w", err)}
	}
	if err := s.validator.Struct(result); err != nil {
		return nil, &invalidOutputError{fmt.Errorf("invalid requests: %w", err)}
	}

	extraction := &Extraction{Reply: result.ConversationsResponse, RawRequests: raw}
	if extraction.Reply == "" {
		extraction.Reply = emptyReply
	}
	for _, item := range result.Requests {
		req, err := s.toRoomRequest(item)
		if err != nil {
			return nil, &invalidOutputError{err}
		}
		extraction.Requests = append(extraction.Requests, req)
	}
	return extraction, nil
}

func (s *ExtractionService) toRoomRequest(item dto.ExtractedRequest) (models.RoomRequest, error) {
	date, err := time.ParseInLocation("2006-01-02", item.Date, s.cfg.Location)
	if err != nil {
		return models.RoomRequest{}, fmt.Errorf("request date %q: %w", item.Date, err)
	}
	req := models.RoomRequest{
		Date:     date,
		Start:    models.Hour(item.FromTime),
		Duration: item.Duration,
		Category: models.CategoryBookableGroupRooms,
	}
	if item.Title != nil {
		req.Title = strings.TrimSpace(*item.Title)
	}
	if s.cfg.Staff && item.RoomCategory != nil && *item.RoomCategory != 0 {
		category := models.RoomCategory(*item.RoomCategory)
		if !category.Valid() {
			return models.RoomRequest{}, fmt.Errorf("unknown room_category %d", *item.RoomCategory)
		}
		req.Category = category
	}
	for _, b := range item.Breaks {
		req.Breaks = append(req.Breaks, models.Break{Start: models.Hour(b.FromTime), Duration: b.Duration})
	}
	for _, raw := range item.RoomFilters {
		restriction, err := models.NewRoomRestriction(raw)
		if err != nil {
			return models.RoomRequest{}, err
		}
		req.Restrictions = append(req.Restrictions, restriction)
	}
	return req, nil
}

func (s *ExtractionService) systemPrompt() string {
	now := s.now().In(s.cfg.Location)

	category := ""
	if s.cfg.Staff {
		category = "room_category?: int, "
	}

	var b strings.Builder
	b.WriteString("You assist with conversations and room scheduling\n\n")
	fmt.Fprintf(&b, `Respond with JSON: {"conversations_response": str, "requests": List[{"date": "YYYY-MM-DD", "from_time": int %d to %d (hours), "duration": 1 to 4 (hours), breaks?: [{"from_time": int %d to %d (hours), "duration": 1 to 4 (hours)}], title?: str, %sroom_filters?: List[int]}]}`,
		models.FirstHour, models.LastHour, models.FirstHour, models.LastHour, category)
	b.WriteString("\n\nBookable dates/calendar:\n")
	b.WriteString(BookableCalendar(now, s.cfg.BookableDays))
	b.WriteString("\n\nInfo:\n")
	b.WriteString("* All times are 24-hour.\n")
	b.WriteString("* The user may provide times in the format XX-YY, this equals to from_time=XX and duration=YY-XX.\n")
	fmt.Fprintf(&b, "* Booking hours are limited to whole hours between %s (%d) and %s (%d).\n",
		models.FirstHour, models.FirstHour, models.LastHour, models.LastHour)
	fmt.Fprintf(&b, "* Current timestamp: %s.\n", now.Format("Monday, January 02, 2006"))
	fmt.Fprintf(&b, "* Earliest bookable time: %02d:00 (only applied for today)\n", now.Hour()+1)
	b.WriteString("* request.date=today if a date/day isn't given by the user.\n")
	b.WriteString("* Each booking can last from 1 to 4 hours, excluding breaks.\n")
	b.WriteString("* The user will see the requests with buttons to confirm the request(s).\n")
	b.WriteString("* Users may specify breaks\n")
	b.WriteString("* Users may specify room_filters, one int per filter, combine by specifying multiple ints e.x. [1,2].\n")
	b.WriteString(restrictionGuide())
	if s.cfg.Staff {
		b.WriteString("* The user is staff, they may specify a room_category.\n")
		b.WriteString(categoryGuide())
	}
	return b.String()
}

// BookableCalendar lists the weekdays of the next days, today included.
func BookableCalendar(now time.Time, days int) string {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	entries := make([]string, 0, days)
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, i)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		entries = append(entries, day.Format("Monday, January 02, 2006"))
	}
	return strings.Join(entries, " ")
}

func restrictionGuide() string {
	names := make([]string, 0, len(models.Restrictions()))
	for _, r := range models.Restrictions() {
		names = append(names, fmt.Sprintf("%d=%s", int(r), r))
	}
	pairs := make([]string, 0, len(models.ExclusiveRestrictionPairs))
	for _, pair := range models.ExclusiveRestrictionPairs {
		pairs = append(pairs, fmt.Sprintf("%d,%d", int(pair[0]), int(pair[1])))
	}
	return fmt.Sprintf("Available room_filters: %s. %s are mutually exclusive.\n", strings.Join(names, ", "), strings.Join(pairs, " and "))
}

func categoryGuide() string {
	names := make([]string, 0, len(models.Categories()))
	for _, c := range models.Categories() {
		names = append(names, fmt.Sprintf("%s=%d", c, int(c)))
	}
	return fmt.Sprintf("Available room_categories: %s, Note: %s are bookable by staff.\n",
		strings.Join(names, ", "), models.CategoryNonBookableGroupRooms)
}

// historyMessages replays earlier turns. Assistant turns are re-encoded in the JSON shape the model answers with.
func historyMessages(history []dto.ChatTurn) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for _, turn := range history {
		if turn.Role != llm.RoleAssistant {
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: turn.Content})
			continue
		}
		requests := turn.Requests
		if len(bytes.TrimSpace(requests)) == 0 {
			requests = json.RawMessage("[]")
		}
		payload, err := json.Marshal(struct {
			ConversationsResponse string          `json:"conversations_response"`
			Requests              json.RawMessage `json:"requests"`
		}{turn.Content, requests})
		if err != nil {
			payload, _ = json.Marshal(map[string]interface{}{"conversations_response": turn.Content, "requests": []interface{}{}})
		}
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: string(payload)})
	}
	return messages
}
