package notifications

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/redeemlocal/backend/internal/deals"
	"github.com/redeemlocal/backend/internal/middleware"
	"github.com/redeemlocal/backend/internal/models"
	"github.com/redeemlocal/backend/internal/vendors"
	"github.com/redeemlocal/backend/pkg/response"
)

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo       *Repository
	dealRepo   *deals.Repository
	vendorRepo *vendors.Repository
}

// NewHandler creates an email logs handler.
func NewHandler(repo *Repository, dealRepo *deals.Repository, vendorRepo *vendors.Repository) *Handler {
	return &Handler{repo: repo, dealRepo: dealRepo, vendorRepo: vendorRepo}
}

// ListByDeal handles GET /deals/:id/emails (deal's vendor or admin). Returns
// email logs for the deal's redemptions.
func (h *Handler) ListByDeal(c *gin.Context) {
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid deal id")
		return
	}
	deal, err := h.dealRepo.GetByID(c.Request.Context(), dealID)
	if err != nil || deal == nil {
		response.NotFound(c, "deal not found")
		return
	}
	if role, _ := c.MustGet(middleware.ContextUserRole).(string); role != string(models.RoleAdmin) {
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		owns, err := h.vendorRepo.IsOwner(c.Request.Context(), deal.VendorID, userID)
		if err != nil || !owns {
			response.Forbidden(c, "not the owning vendor")
			return
		}
	}

	logs, err := h.repo.ListByDeal(c.Request.Context(), dealID)
	if err != nil {
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}
