package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/syncbridge/backend/internal/domain/integration"
)

// ERPHandler exposes read access to ERP entities and queued creation of
// partners and orders.
type ERPHandler struct {
	BaseHandler
	gateway integration.ERPGateway
	queue   integration.JobQueue
}

// NewERPHandler creates an ERPHandler.
func NewERPHandler(gateway integration.ERPGateway, queue integration.JobQueue) *ERPHandler {
	return &ERPHandler{gateway: gateway, queue: queue}
}

// RegisterRoutes registers the ERP routes.
func (h *ERPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/erp")
	{
		group.GET("/suppliers", h.ListSuppliers)
		group.GET("/partners/:id", h.GetPartner)
		group.GET("/partners", h.FindPartnerByEmail)
		group.POST("/partners", h.CreatePartner)
		group.GET("/companies", h.ListCompanies)
		group.GET("/products", h.ListProducts)
		group.GET("/orders", h.ListOrders)
		group.POST("/orders", h.CreateOrder)
		group.GET("/sellers", h.ListSellers)
	}
}

// ListSuppliers handles GET /erp/suppliers
func (h *ERPHandler) ListSuppliers(c *gin.Context) {
	suppliers, err := h.gateway.ListSuppliers(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, suppliers)
}

// GetPartner handles GET /erp/partners/:id
func (h *ERPHandler) GetPartner(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.BadRequest(c, "invalid partner id")
		return
	}

	partner, err := h.gateway.FindPartnerByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if partner == nil {
		h.NotFound(c, "partner not found")
		return
	}
	h.Success(c, partner)
}

// FindPartnerByEmail handles GET /erp/partners?email=
func (h *ERPHandler) FindPartnerByEmail(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		h.BadRequest(c, "email query parameter is required")
		return
	}

	partner, err := h.gateway.FindPartnerByEmail(c.Request.Context(), email)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if partner == nil {
		h.NotFound(c, "partner not found")
		return
	}
	h.Success(c, partner)
}

// CreatePartner handles POST /erp/partners. Creation runs through the
// job queue so a slow ERP does not block the caller.
func (h *ERPHandler) CreatePartner(c *gin.Context) {
	var req integration.CreatePartner
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	err := h.queue.Enqueue(c.Request.Context(), integration.JobTypePartnerCreate,
		integration.PartnerCreateJob{Partner: req})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, gin.H{"queued": true})
}

// ListCompanies handles GET /erp/companies
func (h *ERPHandler) ListCompanies(c *gin.Context) {
	companies, err := h.gateway.ListCompanies(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, companies)
}

// ListProducts handles GET /erp/products?active=true
func (h *ERPHandler) ListProducts(c *gin.Context) {
	activeOnly := c.DefaultQuery("active", "true") == "true"

	products, err := h.gateway.ListProducts(c.Request.Context(), activeOnly)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, products)
}

// ListOrders handles GET /erp/orders?since=2006-01-02
func (h *ERPHandler) ListOrders(c *gin.Context) {
	since := time.Now().AddDate(0, 0, -1)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.BadRequest(c, "invalid since date, expected YYYY-MM-DD")
			return
		}
		since = parsed
	}

	orders, err := h.gateway.ListOrders(c.Request.Context(), since)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, orders)
}

// CreateOrder handles POST /erp/orders, queued like partner creation.
func (h *ERPHandler) CreateOrder(c *gin.Context) {
	var req integration.CreateOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	err := h.queue.Enqueue(c.Request.Context(), integration.JobTypeOrderCreate,
		integration.OrderCreateJob{Order: req})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, gin.H{"queued": true})
}

// ListSellers handles GET /erp/sellers
func (h *ERPHandler) ListSellers(c *gin.Context) {
	sellers, err := h.gateway.ListSellers(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sellers)
}
