package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/room-booker/internal/dto"
	appErrors "github.com/noah-isme/room-booker/pkg/errors"
	"github.com/noah-isme/room-booker/pkg/response"
)

type assistantService interface {
	Respond(ctx context.Context, req dto.AssistantMessageRequest, actor string) (*dto.AssistantMessageResponse, error)
}

// AssistantHandler turns chat messages into booking proposals.
type AssistantHandler struct {
	service assistantService
}

// NewAssistantHandler constructs an AssistantHandler.
func NewAssistantHandler(svc assistantService) *AssistantHandler {
	return &AssistantHandler{service: svc}
}

// Message godoc
// @Summary Chat with the booking assistant
// @Description Extracts booking requests from free text and plans each one as a pending proposal
// @Tags Assistant
// @Accept json
// @Produce json
// @Param payload body dto.AssistantMessageRequest true "Message with earlier turns"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /assistant/messages [post]
func (h *AssistantHandler) Message(c *gin.Context) {
	var req dto.AssistantMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}

	res, err := h.service.Respond(c.Request.Context(), req, operatorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}
