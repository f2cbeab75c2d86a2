package favorites

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/redeemlocal/backend/internal/middleware"
	"github.com/redeemlocal/backend/pkg/response"
)

// Handler handles favorite HTTP endpoints.
type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Add handles POST /deals/:id/favorite.
func (h *Handler) Add(c *gin.Context) {
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid deal id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if err := h.repo.Add(c.Request.Context(), userID, dealID); err != nil {
		if errors.Is(err, ErrDealNotFound) {
			response.NotFound(c, "deal not found")
			return
		}
		response.Internal(c, "failed to favorite deal")
		return
	}
	response.NoContent(c)
}

// Remove handles DELETE /deals/:id/favorite.
func (h *Handler) Remove(c *gin.Context) {
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid deal id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if err := h.repo.Remove(c.Request.Context(), userID, dealID); err != nil {
		response.Internal(c, "failed to unfavorite deal")
		return
	}
	response.NoContent(c)
}

// ListMine handles GET /me/favorites.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	deals, err := h.repo.ListDeals(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list favorites")
		return
	}
	response.OK(c, deals)
}
