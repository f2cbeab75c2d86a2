package vendors

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/redeemlocal/backend/internal/middleware"
	"github.com/redeemlocal/backend/internal/models"
	"github.com/redeemlocal/backend/pkg/response"
	"github.com/redeemlocal/backend/pkg/storage"
)

// CreateRequest is the body for POST /vendors.
type CreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Phone       string `json:"phone"`
	Website     string `json:"website"`
}

// UpdateRequest is the body for PATCH /vendors/:id.
type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	Phone       *string `json:"phone"`
	Website     *string `json:"website"`
}

// Handler handles vendor HTTP endpoints.
type Handler struct {
	repo   *Repository
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a vendor handler.
func NewHandler(repo *Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, s3: s3, logger: logger}
}

// Create handles POST /vendors (vendor role). One profile per owner.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	existing, err := h.repo.GetByOwner(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to check vendor profile")
		return
	}
	if existing != nil {
		response.Conflict(c, "vendor profile already exists")
		return
	}

	v := &models.Vendor{
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Address:     req.Address,
		City:        req.City,
		Phone:       req.Phone,
		Website:     req.Website,
	}
	if err := h.repo.Create(c.Request.Context(), v); err != nil {
		h.logger.Error("create vendor failed", zap.Error(err), zap.String("owner_id", userID.String()))
		response.Internal(c, "failed to create vendor")
		return
	}
	response.Created(c, v)
}

// List handles GET /vendors. Public browse with optional city/category filters.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context(), c.Query("city"), c.Query("category"))
	if err != nil {
		response.Internal(c, "failed to list vendors")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /vendors/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid vendor id")
		return
	}
	v, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil || v == nil {
		response.NotFound(c, "vendor not found")
		return
	}
	response.OK(c, v)
}

// GetMine handles GET /me/vendor. Returns the caller's profile.
func (h *Handler) GetMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	v, err := h.repo.GetByOwner(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load vendor profile")
		return
	}
	if v == nil {
		response.NotFound(c, "vendor profile not found")
		return
	}
	response.OK(c, v)
}

// Update handles PATCH /vendors/:id (owner or admin).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid vendor id")
		return
	}
	v, ok := h.requireOwnership(c, id)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	applyString(&v.Name, req.Name)
	applyString(&v.Description, req.Description)
	applyString(&v.Category, req.Category)
	applyString(&v.Address, req.Address)
	applyString(&v.City, req.City)
	applyString(&v.Phone, req.Phone)
	applyString(&v.Website, req.Website)

	if err := h.repo.Update(c.Request.Context(), id, v); err != nil {
		response.Internal(c, "failed to update vendor")
		return
	}
	response.OK(c, v)
}

// Delete handles DELETE /vendors/:id (owner or admin). Soft delete.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid vendor id")
		return
	}
	if _, ok := h.requireOwnership(c, id); !ok {
		return
	}
	if err := h.repo.SoftDelete(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to delete vendor")
		return
	}
	response.NoContent(c)
}

// GenerateLogoUploadURL handles POST /vendors/:id/logo/generate-upload-url
// (owner). Returns a pre-signed PUT URL for direct client upload.
func (h *Handler) GenerateLogoUploadURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid vendor id")
		return
	}
	v, ok := h.requireOwnership(c, id)
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

	key := storage.VendorLogoKey(id.String(), req.Filename)
	contentType := req.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(req.Filename)
	}
	url, err := h.s3.GeneratePresignedUploadURL(c.Request.Context(), h.s3.PhotosBucket(), key, contentType, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign logo upload failed", zap.Error(err), zap.String("vendor_id", id.String()))
		response.Internal(c, "failed to generate upload url")
		return
	}

	v.LogoURL = h.s3.PublicObjectURL(h.s3.PhotosBucket(), key)
	if err := h.repo.Update(c.Request.Context(), id, v); err != nil {
		response.Internal(c, "failed to store logo url")
		return
	}
	response.OK(c, gin.H{"upload_url": url, "logo_url": v.LogoURL})
}

// requireOwnership loads the vendor and checks the caller owns it (admins pass).
func (h *Handler) requireOwnership(c *gin.Context, vendorID uuid.UUID) (*models.Vendor, bool) {
	v, err := h.repo.GetByID(c.Request.Context(), vendorID)
	if err != nil || v == nil {
		response.NotFound(c, "vendor not found")
		return nil, false
	}
	role, _ := c.MustGet(middleware.ContextUserRole).(string)
	if role == string(models.RoleAdmin) {
		return v, true
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if v.OwnerID != userID {
		response.Forbidden(c, "not the vendor owner")
		return nil, false
	}
	return v, true
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
