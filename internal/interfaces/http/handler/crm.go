package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/syncbridge/backend/internal/domain/integration"
)

// WebhookManager is the subset of the CRM client that manages webhook
// subscriptions on the remote side.
type WebhookManager interface {
	ListWebhooks(ctx context.Context) ([]integration.WebhookSubscription, error)
	CreateWebhook(ctx context.Context, entityType, eventType, callbackURL string) (*integration.WebhookSubscription, error)
	DeleteWebhook(ctx context.Context, uuid string) error
	SetupWebhooks(ctx context.Context, callbackURL string) error
}

// CRMHandler exposes CRM contacts, conversions, deals and webhook
// subscription management.
type CRMHandler struct {
	BaseHandler
	gateway     integration.CRMGateway
	webhooks    WebhookManager
	queue       integration.JobQueue
	callbackURL string
}

// NewCRMHandler creates a CRMHandler.
func NewCRMHandler(
	gateway integration.CRMGateway,
	webhooks WebhookManager,
	queue integration.JobQueue,
	callbackURL string,
) *CRMHandler {
	return &CRMHandler{
		gateway:     gateway,
		webhooks:    webhooks,
		queue:       queue,
		callbackURL: callbackURL,
	}
}

// RegisterRoutes registers the CRM routes.
func (h *CRMHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/crm")
	{
		group.GET("/contacts", h.GetContact)
		group.POST("/contacts", h.UpsertContact)
		group.POST("/contacts/tags", h.AddTags)
		group.PUT("/contacts/tags", h.ReplaceTags)
		group.POST("/conversions", h.CreateConversion)
		group.POST("/events", h.CreateEvent)
		group.GET("/deals", h.ListDeals)

		group.GET("/webhooks", h.ListWebhooks)
		group.POST("/webhooks", h.CreateWebhook)
		group.DELETE("/webhooks/:uuid", h.DeleteWebhook)
		group.POST("/webhooks/setup", h.SetupWebhooks)
	}
}

// GetContact handles GET /crm/contacts?email=
func (h *CRMHandler) GetContact(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		h.BadRequest(c, "email query parameter is required")
		return
	}

	contact, err := h.gateway.GetContact(c.Request.Context(), email)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if contact == nil {
		h.NotFound(c, "contact not found")
		return
	}
	h.Success(c, contact)
}

// UpsertContact handles POST /crm/contacts, queued.
func (h *CRMHandler) UpsertContact(c *gin.Context) {
	var req integration.ContactUpsert
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Email == "" {
		h.BadRequest(c, "email is required")
		return
	}

	err := h.queue.Enqueue(c.Request.Context(), integration.JobTypeContactUpsert,
		integration.ContactUpsertJob{Email: req.Email, Contact: req})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, gin.H{"queued": true})
}

// AddTags handles POST /crm/contacts/tags, queued.
func (h *CRMHandler) AddTags(c *gin.Context) {
	var req integration.TagUpdateJob
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Email == "" || len(req.Tags) == 0 {
		h.BadRequest(c, "email and tags are required")
		return
	}

	err := h.queue.Enqueue(c.Request.Context(), integration.JobTypeTagUpdate, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, gin.H{"queued": true})
}

// ReplaceTags handles PUT /crm/contacts/tags, overwriting the contact's
// tag list instead of merging into it.
func (h *CRMHandler) ReplaceTags(c *gin.Context) {
	var req integration.TagUpdateJob
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Email == "" {
		h.BadRequest(c, "email is required")
		return
	}

	if err := h.gateway.UpdateContactTags(c.Request.Context(), req.Email, req.Tags); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"email": req.Email, "tags": req.Tags})
}

// CreateConversion handles POST /crm/conversions, queued.
func (h *CRMHandler) CreateConversion(c *gin.Context) {
	var req integration.Conversion
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Email == "" {
		h.BadRequest(c, "email is required")
		return
	}

	err := h.queue.Enqueue(c.Request.Context(), integration.JobTypeConversionCreate,
		integration.ConversionJob{Conversion: req})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, gin.H{"queued": true})
}

// CreateEvent handles POST /crm/events, recording a generic platform
// event directly against the CRM.
func (h *CRMHandler) CreateEvent(c *gin.Context) {
	var req integration.Event
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Type == "" {
		h.BadRequest(c, "event_type is required")
		return
	}

	if err := h.gateway.CreateEvent(c.Request.Context(), req); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, req)
}

// ListDeals handles GET /crm/deals
func (h *CRMHandler) ListDeals(c *gin.Context) {
	deals, err := h.gateway.ListDeals(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, deals)
}

// ---------------------------------------------------------------------------
// Webhook subscription management
// ---------------------------------------------------------------------------

// createWebhookRequest is the body of POST /crm/webhooks.
type createWebhookRequest struct {
	EntityType string `json:"entity_type" binding:"required"`
	EventType  string `json:"event_type" binding:"required"`
	URL        string `json:"url" binding:"required,url"`
}

// ListWebhooks handles GET /crm/webhooks
func (h *CRMHandler) ListWebhooks(c *gin.Context) {
	subscriptions, err := h.webhooks.ListWebhooks(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, subscriptions)
}

// CreateWebhook handles POST /crm/webhooks
func (h *CRMHandler) CreateWebhook(c *gin.Context) {
	var req createWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	subscription, err := h.webhooks.CreateWebhook(c.Request.Context(), req.EntityType, req.EventType, req.URL)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, subscription)
}

// DeleteWebhook handles DELETE /crm/webhooks/:uuid
func (h *CRMHandler) DeleteWebhook(c *gin.Context) {
	uuid := c.Param("uuid")
	if uuid == "" {
		h.BadRequest(c, "webhook uuid is required")
		return
	}

	if err := h.webhooks.DeleteWebhook(c.Request.Context(), uuid); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// SetupWebhooks handles POST /crm/webhooks/setup, creating the standard
// subscriptions when absent.
func (h *CRMHandler) SetupWebhooks(c *gin.Context) {
	if h.callbackURL == "" {
		h.BadRequest(c, "no webhook callback url configured")
		return
	}

	if err := h.webhooks.SetupWebhooks(c.Request.Context(), h.callbackURL); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"callback_url": h.callbackURL})
}
