package sync

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/syncbridge/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// Entity types recorded in the audit trail.
const (
	EntitySupplier = "supplier"
	EntityOrder    = "order"
	EntityProduct  = "product"
	EntityPartner  = "partner"
	EntityContact  = "contact"
)

// Tags applied to CRM contacts by the sync routines.
var (
	supplierTags = []string{"fornecedor", "erp_sync"}
	buyerTags    = []string{"cliente", "comprador"}
)

const orderConversionIdentifier = "erp-order"

// Config holds the tunables of the sync routines.
type Config struct {
	// OrderLookback bounds how far back SyncOrdersAsConversions reaches
	// when listing ERP orders.
	OrderLookback time.Duration
}

// Validate applies defaults.
func (c *Config) Validate() error {
	if c.OrderLookback <= 0 {
		c.OrderLookback = 24 * time.Hour
	}
	return nil
}

// Result summarizes one sync routine run.
type Result struct {
	EntityType string `json:"entity_type"`
	Processed  int    `json:"processed"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Error      string `json:"error,omitempty"`
}

// Service runs the ERP→CRM synchronization routines. Per-item failures
// are written to the audit trail and the batch continues; only a failed
// list fetch aborts a routine.
type Service struct {
	erp    integration.ERPGateway
	crm    integration.CRMGateway
	logs   integration.SyncLogRepository
	config Config
	logger *zap.Logger

	now func() time.Time
}

// NewService creates a sync Service.
func NewService(
	erp integration.ERPGateway,
	crm integration.CRMGateway,
	logs integration.SyncLogRepository,
	config Config,
	logger *zap.Logger,
) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		erp:    erp,
		crm:    crm,
		logs:   logs,
		config: config,
		logger: logger,
		now:    time.Now,
	}, nil
}

// ---------------------------------------------------------------------------
// Routines
// ---------------------------------------------------------------------------

// SyncSuppliers upserts every supplier-flagged ERP partner as a CRM
// contact. Suppliers without an email address cannot be addressed on the
// CRM side and are skipped without an audit row.
func (s *Service) SyncSuppliers(ctx context.Context) (Result, error) {
	result := Result{EntityType: EntitySupplier}

	suppliers, err := s.erp.ListSuppliers(ctx)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("listing suppliers: %w", err)
	}

	for _, supplier := range suppliers {
		if supplier.Email == "" {
			result.Skipped++
			continue
		}

		entry := integration.NewSyncLog(EntitySupplier, strconv.FormatInt(supplier.ID, 10),
			integration.SystemERP, integration.SystemCRM, map[string]any{
				"name":  supplier.Name,
				"email": supplier.Email,
			})

		if err := s.crm.UpsertContact(ctx, supplier.Email, supplierContact(supplier)); err != nil {
			entry.Fail(err)
			result.Failed++
			s.logger.Warn("supplier sync failed",
				zap.Int64("partner_id", supplier.ID),
				zap.Error(err))
		} else {
			entry.Succeed()
			result.Processed++
		}
		s.audit(ctx, entry)
	}

	s.logger.Info("supplier sync finished",
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// SyncOrdersAsConversions replays recent ERP sales orders into the CRM as
// purchase conversions and tags the buyer.
func (s *Service) SyncOrdersAsConversions(ctx context.Context) (Result, error) {
	result := Result{EntityType: EntityOrder}

	since := s.now().Add(-s.config.OrderLookback)
	orders, err := s.erp.ListOrders(ctx, since)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("listing orders: %w", err)
	}

	for _, order := range orders {
		orderID := strconv.FormatInt(order.ID, 10)
		entry := integration.NewSyncLog(EntityOrder, orderID,
			integration.SystemERP, integration.SystemCRM, map[string]any{
				"order_id":   order.ID,
				"partner_id": order.PartnerID,
				"total":      order.TotalAmount.String(),
			})

		partner, err := s.erp.FindPartnerByID(ctx, order.PartnerID)
		if err != nil {
			entry.Fail(err)
			result.Failed++
			s.audit(ctx, entry)
			continue
		}
		if partner == nil || partner.Email == "" {
			result.Skipped++
			continue
		}

		conversion := integration.Conversion{
			Identifier:   orderConversionIdentifier,
			Email:        partner.Email,
			Name:         partner.Name,
			OrderID:      orderID,
			OrderTotal:   order.TotalAmount,
			ERPPartnerID: strconv.FormatInt(partner.ID, 10),
		}

		if err := s.crm.CreateConversion(ctx, conversion); err != nil {
			entry.Fail(err)
			result.Failed++
			s.audit(ctx, entry)
			continue
		}
		if err := s.crm.AddContactTags(ctx, partner.Email, buyerTags); err != nil {
			entry.Fail(err)
			result.Failed++
			s.audit(ctx, entry)
			continue
		}

		entry.Succeed()
		result.Processed++
		s.audit(ctx, entry)
	}

	s.logger.Info("order sync finished",
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// SyncProductsAsTags records a CRM segmentation tag for every active ERP
// product in the audit trail. The tags are applied to contacts lazily by
// the order sync, so this routine only materializes the catalog.
func (s *Service) SyncProductsAsTags(ctx context.Context) (Result, error) {
	result := Result{EntityType: EntityProduct}

	products, err := s.erp.ListProducts(ctx, true)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("listing products: %w", err)
	}

	for _, product := range products {
		entry := integration.NewSyncLog(EntityProduct, strconv.FormatInt(product.ID, 10),
			integration.SystemERP, integration.SystemCRM, map[string]any{
				"tag":        ProductTag(product),
				"product_id": product.ID,
				"name":       product.Name,
			})
		entry.Succeed()
		result.Processed++
		s.audit(ctx, entry)
	}

	s.logger.Info("product sync finished", zap.Int("processed", result.Processed))
	return result, nil
}

// SyncPartner pushes a single ERP partner to the CRM on demand. Unlike
// the batch routines, a missing partner or absent email is an error.
func (s *Service) SyncPartner(ctx context.Context, id int64) error {
	partner, err := s.erp.FindPartnerByID(ctx, id)
	if err != nil {
		return fmt.Errorf("looking up partner %d: %w", id, err)
	}
	if partner == nil {
		return fmt.Errorf("partner %d: %w", id, integration.ErrNotFound)
	}
	if partner.Email == "" {
		return fmt.Errorf("partner %d has no email address: %w", id, integration.ErrValidation)
	}

	entry := integration.NewSyncLog(EntityPartner, strconv.FormatInt(id, 10),
		integration.SystemERP, integration.SystemCRM, map[string]any{
			"name":  partner.Name,
			"email": partner.Email,
		})

	err = s.crm.UpsertContact(ctx, partner.Email, supplierContactFromPartner(*partner))
	if err != nil {
		entry.Fail(err)
	} else {
		entry.Succeed()
	}
	s.audit(ctx, entry)
	return err
}

// SyncAll runs the three batch routines concurrently and waits for all
// of them. A failed routine is reported in its Result and does not stop
// the others.
func (s *Service) SyncAll(ctx context.Context) []Result {
	routines := []func(context.Context) (Result, error){
		s.SyncSuppliers,
		s.SyncOrdersAsConversions,
		s.SyncProductsAsTags,
	}

	results := make([]Result, len(routines))
	var wg sync.WaitGroup
	for i, run := range routines {
		wg.Add(1)
		go func(i int, run func(context.Context) (Result, error)) {
			defer wg.Done()
			result, err := run(ctx)
			if err != nil {
				s.logger.Error("sync routine failed",
					zap.String("entity_type", result.EntityType),
					zap.Error(err))
			}
			results[i] = result
		}(i, run)
	}
	wg.Wait()
	return results
}

// ---------------------------------------------------------------------------
// History & Status
// ---------------------------------------------------------------------------

// History returns audit entries, most recent first.
func (s *Service) History(ctx context.Context, entityType string, status integration.SyncStatus) ([]integration.SyncLog, error) {
	return s.logs.List(ctx, integration.SyncLogFilter{
		EntityType: entityType,
		Status:     status,
	})
}

// Status returns audit entry counts grouped by status.
func (s *Service) Status(ctx context.Context) (map[integration.SyncStatus]int64, error) {
	return s.logs.CountByStatus(ctx)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// ProductTag derives the CRM segmentation tag for an ERP product. The
// catalog reference code is preferred; products without one fall back to
// the numeric id.
func ProductTag(product integration.Product) string {
	code := product.Code
	if code == "" {
		code = strconv.FormatInt(product.ID, 10)
	}
	return "produto_" + code
}

func supplierContact(p integration.Partner) integration.ContactUpsert {
	contact := integration.ContactUpsert{
		Email: p.Email,
		Name:  p.Name,
		Phone: p.Phone,
		Tags:  supplierTags,
		CustomFields: map[string]string{
			"cf_erp_id": strconv.FormatInt(p.ID, 10),
		},
	}
	if p.TaxID != "" {
		contact.CustomFields["cf_tax_id"] = p.TaxID
	}
	return contact
}

func supplierContactFromPartner(p integration.Partner) integration.ContactUpsert {
	contact := supplierContact(p)
	contact.Tags = []string{"erp_sync"}
	return contact
}

func (s *Service) audit(ctx context.Context, entry *integration.SyncLog) {
	if err := s.logs.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append sync log",
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err))
	}
}
