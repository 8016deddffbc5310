package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/naigggs/hau2park.web-sub001/internal/api/middleware"
	"github.com/naigggs/hau2park.web-sub001/internal/assistant"
	"github.com/naigggs/hau2park.web-sub001/internal/domain"
)

type AssistantHandler struct {
	assistantService *assistant.Service
}

func NewAssistantHandler(as *assistant.Service) *AssistantHandler {
	return &AssistantHandler{assistantService: as}
}

// POST /assistant/chat
func (h *AssistantHandler) Chat(c *gin.Context) {
	var dto domain.ChatMessageDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	sessionID := c.GetString(middleware.SessionIDKey)
	resp, err := h.assistantService.Process(c.Request.Context(), sessionID, dto.Message)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assistant unavailable", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

type contextUpdateDTO struct {
	SelectedParking *string `json:"selected_parking"`
	Entrance        *string `json:"entrance"`
}

// PUT /assistant/context
func (h *AssistantHandler) UpdateContext(c *gin.Context) {
	var dto contextUpdateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	update := assistant.ContextUpdate{SelectedParking: dto.SelectedParking}
	if dto.Entrance != nil {
		entrance := domain.Entrance(*dto.Entrance)
		if entrance != domain.EntranceMain && entrance != domain.EntranceSide {
			c.JSON(http.StatusBadRequest, gin.H{"error": "entrance must be 'Main Entrance' or 'Side Entrance'"})
			return
		}
		update.Entrance = &entrance
	}

	sessionID := c.GetString(middleware.SessionIDKey)
	conv, err := h.assistantService.UpdateContext(sessionID, update)
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update context", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, conv)
}

// GET /assistant/context
func (h *AssistantHandler) GetContext(c *gin.Context) {
	sessionID := c.GetString(middleware.SessionIDKey)
	conv, ok := h.assistantService.GetContext(sessionID)
	if !ok {
		conv = domain.ConversationContext{SessionID: sessionID}
	}
	c.JSON(http.StatusOK, conv)
}

// DELETE /assistant/context
func (h *AssistantHandler) ClearContext(c *gin.Context) {
	h.assistantService.ClearContext(c.GetString(middleware.SessionIDKey))
	c.Status(http.StatusNoContent)
}
