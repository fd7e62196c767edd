package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/room-booker/internal/dto"
	"github.com/noah-isme/room-booker/internal/models"
	appErrors "github.com/noah-isme/room-booker/pkg/errors"
)

type requestExtractor interface {
	Extract(ctx context.Context, history []dto.ChatTurn, message string) (*Extraction, error)
}

type requestPlanner interface {
	Plan(ctx context.Context, req models.RoomRequest, actor string) (*models.Proposal, error)
}

// AssistantService answers chat messages with planned booking proposals.
type AssistantService struct {
	extractor requestExtractor
	planner   requestPlanner
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssistantService constructs an AssistantService.
func NewAssistantService(extractor requestExtractor, planner requestPlanner, validate *validator.Validate, logger *zap.Logger) *AssistantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssistantService{extractor: extractor, planner: planner, validator: validate, logger: logger}
}

// Respond extracts the requests in message and plans each of them.
// Requests the planner refuses are reported in Errors; upstream failures abort the reply.
func (s *AssistantService) Respond(ctx context.Context, req dto.AssistantMessageRequest, actor string) (*dto.AssistantMessageResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assistant payload")
	}

	extraction, err := s.extractor.Extract(ctx, req.History, req.Message)
	if err != nil {
		return nil, err
	}

	resp := &dto.AssistantMessageResponse{
		Reply:     extraction.Reply,
		Requests:  extraction.RawRequests,
		Proposals: make([]dto.ProposalResponse, 0, len(extraction.Requests)),
	}
	for i, request := range extraction.Requests {
		proposal, err := s.planner.Plan(ctx, request, actor)
		if err != nil {
			appErr := appErrors.FromError(err)
			if appErr.Status >= http.StatusInternalServerError {
				return nil, err
			}
			s.logger.Info("extracted request could not be planned", zap.Int("index", i), zap.Error(err))
			resp.Errors = append(resp.Errors, fmt.Sprintf("request %d (%s %s): %s",
				i+1, request.Date.Format("2006-01-02"), request.Start, appErr.Message))
			continue
		}
		resp.Proposals = append(resp.Proposals, dto.NewProposalResponse(proposal, nil))
	}
	return resp, nil
}
