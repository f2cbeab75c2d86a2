package deals

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/redeemlocal/backend/internal/middleware"
	"github.com/redeemlocal/backend/internal/models"
	"github.com/redeemlocal/backend/internal/vendors"
	"github.com/redeemlocal/backend/pkg/response"
	"github.com/redeemlocal/backend/pkg/storage"
)

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// CreateRequest is the body for POST /deals.
type CreateRequest struct {
	Title                 string  `json:"title" binding:"required"`
	Description           string  `json:"description"`
	DiscountType          string  `json:"discount_type" binding:"required,oneof=percent dollar free_item bogo"`
	DiscountValue         int     `json:"discount_value"`
	StartsAt              *string `json:"starts_at"`
	EndsAt                *string `json:"ends_at"`
	MaxRedemptionsPerUser *int    `json:"max_redemptions_per_user"`
	MaxRedemptionsTotal   *int    `json:"max_redemptions_total"`
	CooldownHours         *int    `json:"cooldown_hours"`
	RedemptionFrequency   string  `json:"redemption_frequency" binding:"omitempty,oneof=unlimited once weekly monthly custom"`
	CustomFrequencyDays   *int    `json:"custom_frequency_days"`
}

// UpdateRequest is the body for PATCH /deals/:id.
type UpdateRequest struct {
	Title                 *string `json:"title"`
	Description           *string `json:"description"`
	DiscountType          *string `json:"discount_type" binding:"omitempty,oneof=percent dollar free_item bogo"`
	DiscountValue         *int    `json:"discount_value"`
	IsActive              *bool   `json:"is_active"`
	StartsAt              *string `json:"starts_at"` // empty string clears the bound
	EndsAt                *string `json:"ends_at"`
	MaxRedemptionsPerUser *int    `json:"max_redemptions_per_user"`
	MaxRedemptionsTotal   *int    `json:"max_redemptions_total"`
	CooldownHours         *int    `json:"cooldown_hours"`
	RedemptionFrequency   *string `json:"redemption_frequency" binding:"omitempty,oneof=unlimited once weekly monthly custom"`
	CustomFrequencyDays   *int    `json:"custom_frequency_days"`
}

// Handler handles deal HTTP endpoints.
type Handler struct {
	repo       *Repository
	vendorRepo *vendors.Repository
	s3         *storage.S3
	logger     *zap.Logger
}

// NewHandler creates a deal handler.
func NewHandler(repo *Repository, vendorRepo *vendors.Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, vendorRepo: vendorRepo, s3: s3, logger: logger}
}

// List handles GET /deals. Public browse of published active deals, optionally
// filtered by vendor.
func (h *Handler) List(c *gin.Context) {
	var vendorID *uuid.UUID
	if s := c.Query("vendor_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid vendor_id")
			return
		}
		vendorID = &id
	}
	list, err := h.repo.ListPublished(c.Request.Context(), vendorID)
	if err != nil {
		response.Internal(c, "failed to list deals")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /deals/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid deal id")
		return
	}
	d, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil || d == nil {
		response.NotFound(c, "deal not found")
		return
	}
	response.OK(c, d)
}

// ListMine handles GET /me/deals (vendor role). Returns the caller's deals
// in any status for the vendor dashboard.
func (h *Handler) ListMine(c *gin.Context) {
	v, ok := h.callerVendor(c)
	if !ok {
		return
	}
	list, err := h.repo.ListByVendor(c.Request.Context(), v.ID)
	if err != nil {
		response.Internal(c, "failed to list deals")
		return
	}
	response.OK(c, list)
}

// Create handles POST /deals (vendor role). Deals start as drafts.
func (h *Handler) Create(c *gin.Context) {
	v, ok := h.callerVendor(c)
	if !ok {
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	startsAt, endsAt, bad := parseWindow(req.StartsAt, req.EndsAt)
	if bad != "" {
		response.BadRequest(c, bad)
		return
	}

	perUser := 1
	if req.MaxRedemptionsPerUser != nil && *req.MaxRedemptionsPerUser > 0 {
		perUser = *req.MaxRedemptionsPerUser
	}
	frequency := req.RedemptionFrequency
	if frequency == "" {
		frequency = models.FrequencyUnlimited
	}
	if frequency == models.FrequencyCustom && (req.CustomFrequencyDays == nil || *req.CustomFrequencyDays <= 0) {
		response.BadRequest(c, "custom_frequency_days required for custom frequency")
		return
	}

	d := &models.Deal{
		VendorID:              v.ID,
		Title:                 req.Title,
		Description:           req.Description,
		DiscountType:          req.DiscountType,
		DiscountValue:         req.DiscountValue,
		IsActive:              true,
		Status:                models.DealStatusDraft,
		StartsAt:              startsAt,
		EndsAt:                endsAt,
		MaxRedemptionsPerUser: perUser,
		MaxRedemptionsTotal:   req.MaxRedemptionsTotal,
		CooldownHours:         req.CooldownHours,
		RedemptionFrequency:   frequency,
		CustomFrequencyDays:   req.CustomFrequencyDays,
	}
	if err := h.repo.Create(c.Request.Context(), d); err != nil {
		h.logger.Error("create deal failed", zap.Error(err), zap.String("vendor_id", v.ID.String()))
		response.Internal(c, "failed to create deal")
		return
	}
	response.Created(c, d)
}

// Update handles PATCH /deals/:id (owner or admin).
func (h *Handler) Update(c *gin.Context) {
	d, ok := h.requireDealOwnership(c)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if req.Title != nil {
		d.Title = *req.Title
	}
	if req.Description != nil {
		d.Description = *req.Description
	}
	if req.DiscountType != nil {
		d.DiscountType = *req.DiscountType
	}
	if req.DiscountValue != nil {
		d.DiscountValue = *req.DiscountValue
	}
	if req.IsActive != nil {
		d.IsActive = *req.IsActive
	}
	if req.StartsAt != nil {
		t, ok := parseOptionalBound(*req.StartsAt)
		if !ok {
			response.BadRequest(c, "invalid starts_at")
			return
		}
		d.StartsAt = t
	}
	if req.EndsAt != nil {
		t, ok := parseOptionalBound(*req.EndsAt)
		if !ok {
			response.BadRequest(c, "invalid ends_at")
			return
		}
		d.EndsAt = t
	}
	if req.MaxRedemptionsPerUser != nil && *req.MaxRedemptionsPerUser > 0 {
		d.MaxRedemptionsPerUser = *req.MaxRedemptionsPerUser
	}
	if req.MaxRedemptionsTotal != nil {
		d.MaxRedemptionsTotal = req.MaxRedemptionsTotal
	}
	if req.CooldownHours != nil {
		d.CooldownHours = req.CooldownHours
	}
	if req.RedemptionFrequency != nil {
		d.RedemptionFrequency = *req.RedemptionFrequency
	}
	if req.CustomFrequencyDays != nil {
		d.CustomFrequencyDays = req.CustomFrequencyDays
	}
	if d.RedemptionFrequency == models.FrequencyCustom && (d.CustomFrequencyDays == nil || *d.CustomFrequencyDays <= 0) {
		response.BadRequest(c, "custom_frequency_days required for custom frequency")
		return
	}

	if err := h.repo.Update(c.Request.Context(), d.ID, d); err != nil {
		response.Internal(c, "failed to update deal")
		return
	}
	response.OK(c, d)
}

// Publish handles POST /deals/:id/publish (owner or admin).
func (h *Handler) Publish(c *gin.Context) {
	h.setStatus(c, models.DealStatusPublished)
}

// Archive handles POST /deals/:id/archive (owner or admin).
func (h *Handler) Archive(c *gin.Context) {
	h.setStatus(c, models.DealStatusArchived)
}

func (h *Handler) setStatus(c *gin.Context, status string) {
	d, ok := h.requireDealOwnership(c)
	if !ok {
		return
	}
	if err := h.repo.SetStatus(c.Request.Context(), d.ID, status); err != nil {
		response.Internal(c, "failed to update deal status")
		return
	}
	d.Status = status
	response.OK(c, d)
}

// Delete handles DELETE /deals/:id (owner or admin). Soft delete.
func (h *Handler) Delete(c *gin.Context) {
	d, ok := h.requireDealOwnership(c)
	if !ok {
		return
	}
	if err := h.repo.SoftDelete(c.Request.Context(), d.ID); err != nil {
		response.Internal(c, "failed to delete deal")
		return
	}
	response.NoContent(c)
}

// GeneratePhotoUploadURL handles POST /deals/:id/photo/generate-upload-url
// (owner). Returns a pre-signed PUT URL for direct client upload and stores
// the resulting public URL on the deal.
func (h *Handler) GeneratePhotoUploadURL(c *gin.Context) {
	d, ok := h.requireDealOwnership(c)
	if !ok {
		return
	}
	if h.s3 == nil {
		response.Internal(c, "file storage not configured")
		return
	}

	var req struct {
		Filename    string `json:"filename" binding:"required"`
		ContentType string `json:"content_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !storage.ValidatePhotoFileType(req.ContentType, req.Filename) {
		response.BadRequest(c, "unsupported file type")
		return
	}

	key := storage.DealPhotoKey(d.ID.String(), req.Filename)
	contentType := req.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(req.Filename)
	}
	url, err := h.s3.GeneratePresignedUploadURL(c.Request.Context(), h.s3.PhotosBucket(), key, contentType, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign photo upload failed", zap.Error(err), zap.String("deal_id", d.ID.String()))
		response.Internal(c, "failed to generate upload url")
		return
	}

	photoURL := h.s3.PublicObjectURL(h.s3.PhotosBucket(), key)
	if err := h.repo.SetPhotoURL(c.Request.Context(), d.ID, photoURL); err != nil {
		response.Internal(c, "failed to store photo url")
		return
	}
	response.OK(c, gin.H{"upload_url": url, "photo_url": photoURL})
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

// requireDealOwnership loads the deal and checks the caller owns its vendor
// (admins pass).
func (h *Handler) requireDealOwnership(c *gin.Context) (*models.Deal, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid deal id")
		return nil, false
	}
	d, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil || d == nil {
		response.NotFound(c, "deal not found")
		return nil, false
	}
	role, _ := c.MustGet(middleware.ContextUserRole).(string)
	if role == string(models.RoleAdmin) {
		return d, true
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	owns, err := h.vendorRepo.IsOwner(c.Request.Context(), d.VendorID, userID)
	if err != nil || !owns {
		response.Forbidden(c, "not the deal owner")
		return nil, false
	}
	return d, true
}

func parseWindow(startsAt, endsAt *string) (start, end *time.Time, bad string) {
	if startsAt != nil && *startsAt != "" {
		t, err := parseTime(*startsAt)
		if err != nil {
			return nil, nil, "invalid starts_at"
		}
		start = &t
	}
	if endsAt != nil && *endsAt != "" {
		t, err := parseTime(*endsAt)
		if err != nil {
			return nil, nil, "invalid ends_at"
		}
		end = &t
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, "ends_at before starts_at"
	}
	return start, end, ""
}

// parseOptionalBound parses an RFC3339 time; an empty string clears the bound.
func parseOptionalBound(s string) (*time.Time, bool) {
	if s == "" {
		return nil, true
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
