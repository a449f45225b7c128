package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	appsync "github.com/syncbridge/backend/internal/application/sync"
	"github.com/syncbridge/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// Acknowledgement statuses. Inbound webhooks are always acked with 200
// once the signature passes; processing failures are reported in the
// body so the sender does not redeliver endlessly.
const (
	AckReceived          = "received"
	AckReceivedWithError = "received_with_error"
)

// Tags applied to contacts marked as opportunities.
var opportunityTags = []string{"oportunidade", "erp_sync"}

// Config holds the dispatcher tunables.
type Config struct {
	// Secret is the shared HMAC key. Signature validation only runs
	// when ValidateSignature is set and a secret is configured.
	Secret            string
	ValidateSignature bool

	// DedupEnabled turns on event-id deduplication against the store.
	DedupEnabled bool
	DedupTTL     time.Duration

	// Fallback ids for order creation when the payload carries none.
	DefaultPartnerID int64
	DefaultProductID int64
}

// Validate applies defaults.
func (c *Config) Validate() error {
	if c.DedupTTL <= 0 {
		c.DedupTTL = 24 * time.Hour
	}
	if c.DefaultPartnerID <= 0 {
		c.DefaultPartnerID = 1
	}
	if c.DefaultProductID <= 0 {
		c.DefaultProductID = 1
	}
	return nil
}

// Ack is the response body returned to the webhook sender.
type Ack struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Dispatcher validates, classifies and executes inbound webhook events.
// Every processed event writes exactly one audit row, success or error.
type Dispatcher struct {
	erp      integration.ERPGateway
	crm      integration.CRMGateway
	logs     integration.SyncLogRepository
	resolver *appsync.Resolver
	dedup    integration.EventDedupStore
	config   Config
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher. dedup may be nil when
// deduplication is disabled.
func NewDispatcher(
	erp integration.ERPGateway,
	crm integration.CRMGateway,
	logs integration.SyncLogRepository,
	resolver *appsync.Resolver,
	dedup integration.EventDedupStore,
	config Config,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		erp:      erp,
		crm:      crm,
		logs:     logs,
		resolver: resolver,
		dedup:    dedup,
		config:   config,
		logger:   logger,
	}, nil
}

// Handle processes one raw webhook delivery. A signature failure is
// returned as an authentication error before any audit entry is written;
// every other outcome produces an Ack for a 200 response.
func (d *Dispatcher) Handle(ctx context.Context, rawBody []byte, signature string) (Ack, error) {
	if d.config.ValidateSignature && d.config.Secret != "" {
		if !VerifySignature(d.config.Secret, rawBody, signature) {
			return Ack{}, fmt.Errorf("webhook signature mismatch: %w", integration.ErrAuthenticationFailed)
		}
	}

	var event Event
	if err := json.Unmarshal(rawBody, &event); err != nil {
		entry := integration.NewSyncLog("webhook_unknown", "",
			integration.SystemCRMWebhook, integration.SystemERP, nil)
		entry.Fail(fmt.Errorf("undecodable payload: %w", err))
		d.audit(ctx, entry)
		return Ack{Status: AckReceivedWithError, Error: "undecodable payload"}, nil
	}

	if duplicate := d.isDuplicate(ctx, &event); duplicate {
		d.logger.Info("duplicate webhook skipped", zap.String("event_id", event.ID()))
		return Ack{Status: AckReceived}, nil
	}

	kind := event.Classify()
	entry := integration.NewSyncLog(d.entityType(&event), event.ID(),
		integration.SystemCRMWebhook, integration.SystemERP, d.snapshot(rawBody))

	err := d.dispatch(ctx, kind, &event)
	if err != nil {
		entry.Fail(err)
		d.audit(ctx, entry)
		d.logger.Error("webhook processing failed",
			zap.String("kind", kind.String()),
			zap.String("event_id", event.ID()),
			zap.Error(err))
		return Ack{Status: AckReceivedWithError, Error: err.Error()}, nil
	}

	entry.Succeed()
	d.audit(ctx, entry)
	return Ack{Status: AckReceived}, nil
}

// VerifySignature checks a hex-encoded HMAC-SHA256 of the raw body.
func VerifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the signature a sender would attach to body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

func (d *Dispatcher) dispatch(ctx context.Context, kind Kind, event *Event) error {
	switch kind {
	case KindConversion:
		return d.handleConversion(ctx, event)
	case KindMarkedOpportunity:
		return d.handleMarkedOpportunity(ctx, event)
	case KindDealCreated, KindDealUpdated:
		return d.handleDeal(ctx, event)
	case KindDealDeleted:
		if event.Document != nil {
			d.logger.Info("deal deleted", zap.String("deal_id", string(event.Document.ID)))
		}
		return nil
	case KindOrganizationCreated, KindOrganizationUpdated:
		return d.handleOrganization(ctx, event)
	default:
		d.logger.Warn("unknown webhook event",
			zap.String("event_type", event.Type),
			zap.String("event_name", event.Name))
		return nil
	}
}

// handleConversion creates missing supplier partners and, for purchase
// conversions, books an ERP order for the lead.
func (d *Dispatcher) handleConversion(ctx context.Context, event *Event) error {
	lead := event.PrimaryLead()
	if lead.Email == "" {
		d.logger.Warn("conversion webhook missing lead email")
		return nil
	}

	isSupplier := lead.HasTag("fornecedor") || lead.CustomField("cf_tipo") == "fornecedor"
	if isSupplier && lead.CustomField("cf_erp_id") == "" {
		if err := d.createSupplierFromLead(ctx, lead); err != nil {
			return err
		}
	}

	switch lead.ConversionIdentifier {
	case conversionPurchase, conversionSale:
		return d.createOrderFromConversion(ctx, lead)
	}
	return nil
}

func (d *Dispatcher) createSupplierFromLead(ctx context.Context, lead *Lead) error {
	taxID := lead.CustomField("cf_tax_id")
	name := lead.Name
	if name == "" {
		name = lead.Email
	}

	id, err := d.erp.CreatePartner(ctx, integration.CreatePartner{
		Name:       name,
		Email:      lead.Email,
		Phone:      lead.Phone(),
		TaxID:      taxID,
		PersonType: integration.DetectPersonType(taxID),
	})
	if err != nil {
		return fmt.Errorf("creating supplier partner: %w", err)
	}

	// Write the new id back so the next delivery sees the link.
	err = d.crm.UpsertContact(ctx, lead.Email, integration.ContactUpsert{
		Email: lead.Email,
		CustomFields: map[string]string{
			"cf_erp_id": strconv.FormatInt(id, 10),
		},
	})
	if err != nil {
		return fmt.Errorf("writing partner id back to contact: %w", err)
	}

	d.logger.Info("created supplier partner from conversion",
		zap.String("email", lead.Email),
		zap.Int64("partner_id", id))
	return nil
}

func (d *Dispatcher) createOrderFromConversion(ctx context.Context, lead *Lead) error {
	partnerID, err := d.resolver.ResolvePartnerID(ctx, integration.CreatePartner{
		Name:  lead.Name,
		Email: lead.Email,
		Phone: lead.Phone(),
		TaxID: lead.CustomField("cf_tax_id"),
	})
	if err != nil {
		return fmt.Errorf("resolving conversion customer: %w", err)
	}

	order := integration.CreateOrder{
		PartnerID: partnerID,
		CompanyID: d.int64Field(lead, "cf_company_id"),
		SellerID:  d.int64Field(lead, "cf_seller_id"),
	}

	items, ok := lead.OrderItems()
	if !ok {
		d.logger.Warn("unparseable order items, skipping order", zap.String("email", lead.Email))
		return nil
	}

	switch {
	case len(items) > 0:
		for _, item := range items {
			order.Lines = append(order.Lines, integration.OrderLine{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.Price,
			})
		}
	default:
		total, present := lead.OrderTotalValue()
		if !present {
			return nil
		}
		order.Lines = []integration.OrderLine{{
			ProductID: d.config.DefaultProductID,
			Quantity:  decimal.NewFromInt(1),
			UnitPrice: total,
		}}
	}

	orderID, err := d.erp.CreateOrder(ctx, order)
	if err != nil {
		return fmt.Errorf("creating order from conversion: %w", err)
	}
	d.logger.Info("created order from conversion",
		zap.String("email", lead.Email),
		zap.Int64("order_id", orderID))
	return nil
}

// handleMarkedOpportunity tags the contact and books an order when the
// opportunity carries a value.
func (d *Dispatcher) handleMarkedOpportunity(ctx context.Context, event *Event) error {
	lead := event.PrimaryLead()
	if lead.Email == "" {
		d.logger.Warn("opportunity webhook missing lead email")
		return nil
	}

	if err := d.crm.AddContactTags(ctx, lead.Email, opportunityTags); err != nil {
		return fmt.Errorf("tagging opportunity contact: %w", err)
	}

	value, ok := lead.OpportunityValue()
	if !ok {
		return nil
	}

	partnerID, err := d.resolver.ResolvePartnerID(ctx, integration.CreatePartner{
		Name:  lead.Name,
		Email: lead.Email,
		Phone: lead.Phone(),
	})
	if err != nil {
		return fmt.Errorf("resolving opportunity customer: %w", err)
	}

	_, err = d.erp.CreateOrder(ctx, integration.CreateOrder{
		PartnerID: partnerID,
		Lines: []integration.OrderLine{{
			ProductID: d.config.DefaultProductID,
			Quantity:  decimal.NewFromInt(1),
			UnitPrice: value,
		}},
	})
	if err != nil {
		return fmt.Errorf("creating order from opportunity: %w", err)
	}
	return nil
}

// handleDeal books a placeholder order when the deal is won.
func (d *Dispatcher) handleDeal(ctx context.Context, event *Event) error {
	deal := event.Document
	if deal == nil {
		d.logger.Warn("deal webhook missing document")
		return nil
	}
	if !deal.Won() {
		return nil
	}

	partnerID := d.config.DefaultPartnerID
	if len(deal.ContactEmails) > 0 {
		resolved, err := d.resolver.ResolvePartnerID(ctx, integration.CreatePartner{
			Name:  deal.Name,
			Email: deal.ContactEmails[0],
		})
		if err != nil {
			return fmt.Errorf("resolving deal customer: %w", err)
		}
		partnerID = resolved
	}

	_, err := d.erp.CreateOrder(ctx, integration.CreateOrder{
		PartnerID: partnerID,
		Lines: []integration.OrderLine{{
			ProductID: d.config.DefaultProductID,
			Quantity:  decimal.NewFromInt(1),
			UnitPrice: deal.Amount,
		}},
	})
	if err != nil {
		return fmt.Errorf("creating order from won deal: %w", err)
	}
	d.logger.Info("created order from won deal", zap.String("deal_id", string(deal.ID)))
	return nil
}

// handleOrganization creates or refreshes an ERP partner from the
// organization snapshot.
func (d *Dispatcher) handleOrganization(ctx context.Context, event *Event) error {
	org := event.Document
	if org == nil || org.Name == "" {
		d.logger.Warn("organization webhook missing document")
		return nil
	}

	email := org.Email
	if email == "" {
		email = fmt.Sprintf("org-%s@crm.invalid", org.ID)
	}

	personType := integration.PersonTypeIndividual
	if org.TaxID != "" {
		personType = integration.PersonTypeCompany
	}

	_, err := d.erp.CreatePartner(ctx, integration.CreatePartner{
		Name:       org.Name,
		Email:      email,
		Phone:      org.Phone,
		TaxID:      org.TaxID,
		PersonType: personType,
	})
	if err != nil {
		return fmt.Errorf("syncing organization partner: %w", err)
	}
	d.logger.Info("synced organization partner", zap.String("name", org.Name))
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (d *Dispatcher) isDuplicate(ctx context.Context, event *Event) bool {
	if !d.config.DedupEnabled || d.dedup == nil || event.ID() == "" {
		return false
	}
	first, err := d.dedup.MarkProcessed(ctx, event.ID(), d.config.DedupTTL)
	if err != nil {
		// Fail open: a broken dedup store must not drop events.
		d.logger.Warn("dedup store unavailable", zap.Error(err))
		return false
	}
	return !first
}

func (d *Dispatcher) entityType(event *Event) string {
	discriminator := event.Type
	if discriminator == "" {
		discriminator = event.Name
	}
	if discriminator == "" {
		discriminator = "unknown"
	}
	return "webhook_" + discriminator
}

func (d *Dispatcher) snapshot(rawBody []byte) map[string]any {
	var data map[string]any
	if err := json.Unmarshal(rawBody, &data); err != nil {
		return nil
	}
	return data
}

func (d *Dispatcher) int64Field(lead *Lead, key string) int64 {
	s := lead.CustomField(key)
	if s == "" {
		return 0
	}
	value, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func (d *Dispatcher) audit(ctx context.Context, entry *integration.SyncLog) {
	if err := d.logs.Append(ctx, entry); err != nil {
		d.logger.Error("failed to append sync log",
			zap.String("entity_type", entry.EntityType),
			zap.Error(err))
	}
}
