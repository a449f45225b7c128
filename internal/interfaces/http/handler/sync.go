package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/syncbridge/backend/internal/application/sync"
	"github.com/syncbridge/backend/internal/domain/integration"
)

// SyncHandler exposes the sync routines, history and status.
type SyncHandler struct {
	BaseHandler
	service *sync.Service
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(service *sync.Service) *SyncHandler {
	return &SyncHandler{service: service}
}

// RegisterRoutes registers the sync routes.
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/sync")
	{
		group.POST("/suppliers", h.SyncSuppliers)
		group.POST("/orders", h.SyncOrders)
		group.POST("/products", h.SyncProducts)
		group.POST("/all", h.SyncAll)
		group.POST("/partners/:id", h.SyncPartner)
		group.GET("/history", h.History)
		group.GET("/status", h.Status)
	}
}

// SyncSuppliers handles POST /sync/suppliers
func (h *SyncHandler) SyncSuppliers(c *gin.Context) {
	result, err := h.service.SyncSuppliers(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SyncOrders handles POST /sync/orders
func (h *SyncHandler) SyncOrders(c *gin.Context) {
	result, err := h.service.SyncOrdersAsConversions(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SyncProducts handles POST /sync/products
func (h *SyncHandler) SyncProducts(c *gin.Context) {
	result, err := h.service.SyncProductsAsTags(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SyncAll handles POST /sync/all
func (h *SyncHandler) SyncAll(c *gin.Context) {
	results := h.service.SyncAll(c.Request.Context())
	h.Success(c, results)
}

// SyncPartner handles POST /sync/partners/:id
func (h *SyncHandler) SyncPartner(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.BadRequest(c, "invalid partner id")
		return
	}

	if err := h.service.SyncPartner(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"partner_id": id})
}

// History handles GET /sync/history
func (h *SyncHandler) History(c *gin.Context) {
	entityType := c.Query("entity_type")
	status := integration.SyncStatus(c.Query("status"))

	entries, err := h.service.History(c.Request.Context(), entityType, status)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}

// Status handles GET /sync/status
func (h *SyncHandler) Status(c *gin.Context) {
	counts, err := h.service.Status(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, counts)
}
