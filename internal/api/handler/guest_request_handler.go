package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/naigggs/hau2park.web-sub001/internal/api/middleware"
	"github.com/naigggs/hau2park.web-sub001/internal/domain"
	"github.com/naigggs/hau2park.web-sub001/internal/repository"
	"github.com/naigggs/hau2park.web-sub001/internal/service"
)

type GuestRequestHandler struct {
	guestService *service.GuestService
}

func NewGuestRequestHandler(gs *service.GuestService) *GuestRequestHandler {
	return &GuestRequestHandler{guestService: gs}
}

// POST /guest-requests
func (h *GuestRequestHandler) Submit(c *gin.Context) {
	var dto domain.SubmitGuestRequestDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	userID := c.GetString(middleware.UserIDKey)
	req, err := h.guestService.SubmitRequest(c.Request.Context(), userID, dto)
	if err != nil {
		var vErr *domain.ValidationError
		var cErr *domain.ConflictError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
		case errors.As(err, &cErr):
			// Distinct status so the client can render the
			// duplicate-request message instead of a generic failure.
			c.JSON(http.StatusConflict, gin.H{"error": cErr.Error(), "existing_id": cErr.ExistingID})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not submit request", "details": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, req)
}

// POST /guest-requests/:id/approve
func (h *GuestRequestHandler) Approve(c *gin.Context) {
	h.transition(c, h.guestService.Approve)
}

// POST /guest-requests/:id/decline
func (h *GuestRequestHandler) Decline(c *gin.Context) {
	h.transition(c, h.guestService.Decline)
}

func (h *GuestRequestHandler) transition(c *gin.Context, op func(ctx context.Context, id int) (*domain.GuestRequest, error)) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	req, err := op(c.Request.Context(), id)
	if err != nil {
		var tErr *domain.IllegalTransitionError
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "guest request not found"})
		case errors.As(err, &tErr):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": tErr.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update request", "details": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, req)
}

// GET /guest-requests
func (h *GuestRequestHandler) List(c *gin.Context) {
	var filter domain.GuestRequestFilterDTO
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter: " + err.Error()})
		return
	}

	requests, err := h.guestService.ListRequests(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list requests", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, requests)
}

// GET /guest-requests/:id
func (h *GuestRequestHandler) GetByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	req, err := h.guestService.GetRequest(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "guest request not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load request", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, req)
}

// GET /guest-requests/verify/:token
func (h *GuestRequestHandler) VerifyToken(c *gin.Context) {
	req, err := h.guestService.VerifyToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown token"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not verify token", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, req)
}
