package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/naigggs/hau2park.web-sub001/internal/domain"
	"github.com/naigggs/hau2park.web-sub001/internal/mirror"
	"github.com/naigggs/hau2park.web-sub001/internal/repository"
)

type ParkingSpaceHandler struct {
	spaceRepo   repository.ParkingSpaceRepository
	spaceMirror *mirror.Mirror[int, domain.ParkingSpace]
}

// NewParkingSpaceHandler serves reads from the reconciled mirror when it is
// trustworthy and falls back to the repository otherwise. Writes always go
// through the repository; the mirror catches up via the feed.
func NewParkingSpaceHandler(spaceRepo repository.ParkingSpaceRepository, spaceMirror *mirror.Mirror[int, domain.ParkingSpace]) *ParkingSpaceHandler {
	return &ParkingSpaceHandler{spaceRepo: spaceRepo, spaceMirror: spaceMirror}
}

// GET /parking-spaces
func (h *ParkingSpaceHandler) List(c *gin.Context) {
	if h.spaceMirror != nil && h.spaceMirror.Seeded() && !h.spaceMirror.Stale() {
		c.JSON(http.StatusOK, h.spaceMirror.Snapshot())
		return
	}

	spaces, err := h.spaceRepo.FindAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list parking spaces", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, spaces)
}

// GET /parking-spaces/:id
func (h *ParkingSpaceHandler) GetByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parking space id"})
		return
	}

	if h.spaceMirror != nil && h.spaceMirror.Seeded() && !h.spaceMirror.Stale() {
		if space, ok := h.spaceMirror.Get(id); ok {
			c.JSON(http.StatusOK, space)
			return
		}
	}

	space, err := h.spaceRepo.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "parking space not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load parking space", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, space)
}

// POST /parking-spaces
func (h *ParkingSpaceHandler) Create(c *gin.Context) {
	var dto domain.ParkingSpaceDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	status := domain.SpaceStatus(dto.Status)
	if dto.Status == "" {
		status = domain.SpaceAvailable
	}
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + dto.Status})
		return
	}

	space, err := h.spaceRepo.Create(c.Request.Context(), &domain.ParkingSpace{
		Name:     dto.Name,
		Location: dto.Location,
		Status:   status,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create parking space", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, space)
}

// PUT /parking-spaces/:id/status
func (h *ParkingSpaceHandler) UpdateStatus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parking space id"})
		return
	}

	var dto domain.ParkingSpaceStatusDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	status := domain.SpaceStatus(dto.Status)
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + dto.Status})
		return
	}

	if err := h.spaceRepo.UpdateStatus(c.Request.Context(), id, status, dto.User); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "parking space not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update parking space", "details": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /parking-spaces/:id
func (h *ParkingSpaceHandler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parking space id"})
		return
	}

	if err := h.spaceRepo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "parking space not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete parking space", "details": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
