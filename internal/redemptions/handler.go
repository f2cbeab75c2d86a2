package redemptions

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/redeemlocal/backend/internal/auth"
	"github.com/redeemlocal/backend/internal/deals"
	"github.com/redeemlocal/backend/internal/middleware"
	"github.com/redeemlocal/backend/internal/models"
	"github.com/redeemlocal/backend/internal/vendors"
	"github.com/redeemlocal/backend/pkg/queue"
	"github.com/redeemlocal/backend/pkg/response"
)

// IssueRequest is the optional body for POST /deals/:id/code.
type IssueRequest struct {
	VendorID string `json:"vendor_id"` // optional claim of the deal's vendor
}

// VerifyRequest is the body for POST /redemptions/verify.
type VerifyRequest struct {
	Code string `json:"code" binding:"required"`
}

// VoidRequest is the body for POST /redemptions/:id/void.
type VoidRequest struct {
	Reason string `json:"reason"`
}

// Handler handles redemption HTTP endpoints.
type Handler struct {
	service    *Service
	repo       *Repository
	dealRepo   *deals.Repository
	vendorRepo *vendors.Repository
	userRepo   *auth.Repository
	jobs       *queue.Queue
	logger     *zap.Logger
}

// NewHandler creates a redemptions handler.
func NewHandler(service *Service, repo *Repository, dealRepo *deals.Repository, vendorRepo *vendors.Repository, userRepo *auth.Repository, jobs *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:    service,
		repo:       repo,
		dealRepo:   dealRepo,
		vendorRepo: vendorRepo,
		userRepo:   userRepo,
		jobs:       jobs,
		logger:     logger,
	}
}

// IssueCode handles POST /deals/:id/code. Mints (or re-returns) the caller's
// live code for the deal.
func (h *Handler) IssueCode(c *gin.Context) {
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid deal id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	vendorID := uuid.Nil
	var req IssueRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.VendorID != "" {
		vendorID, err = uuid.Parse(req.VendorID)
		if err != nil {
			response.BadRequest(c, "invalid vendor_id")
			return
		}
	}

	result, err := h.service.IssueCode(c.Request.Context(), dealID, vendorID, userID)
	if err != nil {
		h.logger.Error("issue code failed", zap.Error(err), zap.String("deal_id", dealID.String()))
		response.Internal(c, "failed to issue code")
		return
	}
	writeResult(c, result.Success, result.Reason, result)
}

// ActiveCode handles GET /deals/:id/my-code. Returns the caller's live code
// for the deal, if any.
func (h *Handler) ActiveCode(c *gin.Context) {
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid deal id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	red, err := h.service.ActiveCode(c.Request.Context(), userID, dealID)
	if err != nil {
		response.Internal(c, "failed to load code")
		return
	}
	if red == nil {
		response.NotFound(c, "no active code")
		return
	}
	response.OK(c, red)
}

// Verify handles POST /redemptions/verify (vendor role). The caller's vendor
// profile scopes the check; codes typed into the wrong vendor's dashboard
// never verify.
func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	vendor, ok := h.callerVendor(c)
	if !ok {
		return
	}

	result, err := h.service.VerifyCode(c.Request.Context(), req.Code, vendor.ID)
	if err != nil {
		h.logger.Error("verify code failed", zap.Error(err))
		response.Internal(c, "failed to verify code")
		return
	}
	if result.Success {
		h.enqueueReceipt(c, result.Redemption)
	}
	writeResult(c, result.Success, result.Reason, result)
}

// Redeem handles POST /deals/:id/redeem. One-tap redemption without a code.
func (h *Handler) Redeem(c *gin.Context) {
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid deal id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	result, err := h.service.RedeemDeal(c.Request.Context(), dealID, userID)
	if err != nil {
		h.logger.Error("redeem failed", zap.Error(err), zap.String("deal_id", dealID.String()))
		response.Internal(c, "failed to redeem deal")
		return
	}
	writeResult(c, result.Success, result.Reason, result)
}

// Void handles POST /redemptions/:id/void (redemption's vendor or admin).
func (h *Handler) Void(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid redemption id")
		return
	}

	red, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil || red == nil {
		response.NotFound(c, "redemption not found")
		return
	}
	if !h.allowVendorAccess(c, red.VendorID) {
		return
	}

	var req VoidRequest
	_ = c.ShouldBindJSON(&req)

	voided, err := h.service.VoidRedemption(c.Request.Context(), id, req.Reason)
	if err != nil {
		response.Internal(c, "failed to void redemption")
		return
	}
	if voided == nil {
		response.Conflict(c, "redemption cannot be voided")
		return
	}
	response.OK(c, voided)
}

// ListMine handles GET /me/redemptions.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list redemptions")
		return
	}
	response.OK(c, list)
}

// ListByDeal handles GET /deals/:id/redemptions (deal's vendor or admin).
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
	if !h.allowVendorAccess(c, deal.VendorID) {
		return
	}

	list, err := h.repo.ListByDeal(c.Request.Context(), dealID)
	if err != nil {
		response.Internal(c, "failed to list redemptions")
		return
	}
	response.OK(c, list)
}

// enqueueReceipt queues the post-verification receipt email. Best effort: a
// queue hiccup never fails the verification.
func (h *Handler) enqueueReceipt(c *gin.Context, red *models.Redemption) {
	if h.jobs == nil || red == nil {
		return
	}
	user, err := h.userRepo.GetByID(c.Request.Context(), red.UserID)
	if err != nil {
		h.logger.Warn("receipt recipient lookup failed", zap.Error(err), zap.String("redemption_id", red.ID.String()))
		return
	}
	deal, err := h.dealRepo.GetByID(c.Request.Context(), red.DealID)
	if err != nil || deal == nil {
		h.logger.Warn("receipt deal lookup failed", zap.Error(err), zap.String("redemption_id", red.ID.String()))
		return
	}
	payload := queue.EmailPayload{
		EmailType:      queue.EmailTypeRedemptionReceipt,
		DealID:         red.DealID,
		RedemptionID:   red.ID,
		RecipientEmail: user.Email,
		Subject:        "Your redemption receipt: " + deal.Title,
		BodyHTML:       fmt.Sprintf("<p>Hi %s,</p><p>Your code for <strong>%s</strong> was verified. Enjoy!</p>", user.FullName, deal.Title),
	}
	if err := h.jobs.EnqueueEmail(c.Request.Context(), payload); err != nil {
		h.logger.Warn("enqueue receipt failed", zap.Error(err), zap.String("redemption_id", red.ID.String()))
	}
}

// callerVendor resolves the caller's vendor profile.
func (h *Handler) callerVendor(c *gin.Context) (*models.Vendor, bool) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	v, err := h.vendorRepo.GetByOwner(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load vendor profile")
		return nil, false
	}
	if v == nil {
		response.Forbidden(c, "vendor profile required")
		return nil, false
	}
	return v, true
}

// allowVendorAccess checks the caller owns vendorID (admins pass).
func (h *Handler) allowVendorAccess(c *gin.Context, vendorID uuid.UUID) bool {
	role, _ := c.MustGet(middleware.ContextUserRole).(string)
	if role == string(models.RoleAdmin) {
		return true
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	owns, err := h.vendorRepo.IsOwner(c.Request.Context(), vendorID, userID)
	if err != nil || !owns {
		response.Forbidden(c, "not the owning vendor")
		return false
	}
	return true
}

// writeResult maps a structured redemption result to an HTTP response. The
// result body goes out as-is so UIs can render the message verbatim.
func writeResult(c *gin.Context, success bool, reason string, result interface{}) {
	status := http.StatusOK
	if !success {
		switch reason {
		case deals.ReasonNotFound:
			status = http.StatusNotFound
		case ReasonWrongVendor:
			status = http.StatusForbidden
		default:
			status = http.StatusConflict
		}
	}
	c.JSON(status, result)
}
