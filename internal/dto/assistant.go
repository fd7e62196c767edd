package dto

import "encoding/json"

// ChatTurn is one earlier message of the conversation.
type ChatTurn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content"`
	// Requests carries the raw requests an assistant turn proposed, replayed to the model.
	Requests json.RawMessage `json:"requests,omitempty"`
}

// AssistantMessageRequest captures POST /assistant/messages payload.
type AssistantMessageRequest struct {
	Message string     `json:"message" validate:"required,max=2000"`
	History []ChatTurn `json:"history" validate:"omitempty,max=40,dive"`
}

// ExtractedBreak mirrors the break object the model emits.
type ExtractedBreak struct {
	FromTime int `json:"from_time" validate:"min=4,max=23"`
	Duration int `json:"duration" validate:"min=1,max=4"`
}

// ExtractedRequest mirrors one booking request the model emits.
type ExtractedRequest struct {
	Date         string           `json:"date" validate:"required,datetime=2006-01-02"`
	FromTime     int              `json:"from_time" validate:"min=4,max=23"`
	Duration     int              `json:"duration" validate:"min=1,max=4"`
	Breaks       []ExtractedBreak `json:"breaks,omitempty" validate:"omitempty,dive"`
	Title        *string          `json:"title,omitempty"`
	RoomCategory *int             `json:"room_category,omitempty"`
	RoomFilters  []int            `json:"room_filters,omitempty" validate:"omitempty,dive,min=0,max=3"`
}

// ExtractionResult is the model's JSON answer.
type ExtractionResult struct {
	ConversationsResponse string             `json:"conversations_response"`
	Requests              []ExtractedRequest `json:"requests" validate:"omitempty,dive"`
}

// AssistantMessageResponse returns the model's reply with planned proposals.
type AssistantMessageResponse struct {
	Reply     string             `json:"reply"`
	Requests  json.RawMessage    `json:"requests"`
	Proposals []ProposalResponse `json:"proposals"`
	// Errors explains requests that could not be planned.
	Errors []string `json:"errors,omitempty"`
}
