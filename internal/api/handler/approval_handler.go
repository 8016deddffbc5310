package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/naigggs/hau2park.web-sub001/internal/domain"
	"github.com/naigggs/hau2park.web-sub001/internal/repository"
	"github.com/naigggs/hau2park.web-sub001/internal/service"
)

type ApprovalHandler struct {
	approvalService *service.ApprovalService
}

func NewApprovalHandler(as *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvalService: as}
}

// GET /approvals/pending
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	approvals, err := h.approvalService.ListPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list pending approvals", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, approvals)
}

// POST /approvals/:id/approve
func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.decide(c, h.approvalService.Approve)
}

// POST /approvals/:id/decline
func (h *ApprovalHandler) Decline(c *gin.Context) {
	h.decide(c, h.approvalService.Decline)
}

func (h *ApprovalHandler) decide(c *gin.Context, op func(ctx context.Context, id int) (*domain.PendingApproval, error)) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid approval id"})
		return
	}

	approval, err := op(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "approval not found"})
		case errors.Is(err, service.ErrApprovalDecided):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update approval", "details": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, approval)
}
