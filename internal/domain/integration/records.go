package integration

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// System names used in audit log source/destination columns.
const (
	SystemERP        = "erp"
	SystemCRM        = "crm"
	SystemCRMWebhook = "crm_webhook"
)

// ---------------------------------------------------------------------------
// Person Type
// ---------------------------------------------------------------------------

// Person type codes used by the ERP partner entity. A company taxpayer id
// has 14 digits, an individual one has 11.
const (
	PersonTypeCompany    = "J"
	PersonTypeIndividual = "F"
)

// DetectPersonType classifies a tax id by digit count after stripping
// punctuation. Exactly 14 digits means a company; anything else, including
// an empty value, means an individual.
func DetectPersonType(taxID string) string {
	var digits strings.Builder
	for _, r := range taxID {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 14 {
		return PersonTypeCompany
	}
	return PersonTypeIndividual
}

// ---------------------------------------------------------------------------
// ERP Records
// ---------------------------------------------------------------------------

// Partner is a vendor/customer record in the ERP, addressed by numeric id.
type Partner struct {
	ID         int64
	Name       string
	Email      string
	Phone      string
	TaxID      string
	PersonType string
	Active     bool
}

// Company is a legal entity orders are booked under in the ERP.
type Company struct {
	ID        int64
	Name      string
	LegalName string
	TaxID     string
}

// Product is a sellable item in the ERP catalog.
type Product struct {
	ID     int64
	Name   string
	Code   string
	Price  decimal.Decimal
	Stock  decimal.Decimal
	Active bool
}

// Order is a sales order header in the ERP.
type Order struct {
	ID            int64
	PartnerID     int64
	CompanyID     int64
	SellerID      int64
	Date          time.Time
	TotalAmount   decimal.Decimal
	Status        string
	MovementType  string
	InvoiceNumber string
}

// Seller is a salesperson record in the ERP.
type Seller struct {
	ID     int64
	Name   string
	Email  string
	Active bool
}

// CreatePartner is the payload for creating a new ERP partner.
type CreatePartner struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	TaxID      string `json:"tax_id,omitempty"`
	PersonType string `json:"person_type,omitempty"`
}

// Validate checks the minimum fields the ERP requires for a partner row.
func (p *CreatePartner) Validate() error {
	if p.Name == "" {
		return errors.New("integration: partner name is required")
	}
	if p.Email == "" {
		return errors.New("integration: partner email is required")
	}
	return nil
}

// OrderLine is a single product line of an order creation request.
type OrderLine struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Total returns quantity times unit price.
func (l OrderLine) Total() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// CreateOrder is the payload for creating an ERP order with its lines.
type CreateOrder struct {
	PartnerID int64       `json:"partner_id"`
	CompanyID int64       `json:"company_id"`
	SellerID  int64       `json:"seller_id"`
	Lines     []OrderLine `json:"lines"`
}

// Validate checks the order creation payload.
func (o *CreateOrder) Validate() error {
	if o.PartnerID <= 0 {
		return errors.New("integration: order partner id is required")
	}
	if len(o.Lines) == 0 {
		return errors.New("integration: order requires at least one line")
	}
	return nil
}

// ---------------------------------------------------------------------------
// CRM Records
// ---------------------------------------------------------------------------

// Contact is a CRM contact/lead, addressed by email.
type Contact struct {
	UUID         string
	Email        string
	Name         string
	Phone        string
	MobilePhone  string
	City         string
	State        string
	Tags         []string
	CustomFields map[string]any
}

// ContactUpsert is the payload for a create-or-update of a CRM contact.
// Empty fields are omitted from the outbound request.
type ContactUpsert struct {
	Email        string            `json:"email"`
	Name         string            `json:"name,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	MobilePhone  string            `json:"mobile_phone,omitempty"`
	City         string            `json:"city,omitempty"`
	State        string            `json:"state,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

// Conversion is a CRM conversion event representing a completed purchase.
type Conversion struct {
	Identifier   string          `json:"identifier"`
	Email        string          `json:"email"`
	Name         string          `json:"name,omitempty"`
	CompanyName  string          `json:"company_name,omitempty"`
	Phone        string          `json:"phone,omitempty"`
	MobilePhone  string          `json:"mobile_phone,omitempty"`
	OrderID      string          `json:"order_id,omitempty"`
	OrderTotal   decimal.Decimal `json:"order_total"`
	ERPPartnerID string          `json:"erp_partner_id,omitempty"`
}

// Event is a generic CRM platform event.
type Event struct {
	Type    string         `json:"event_type"`
	Family  string         `json:"event_family,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Deal is a CRM sales deal.
type Deal struct {
	ID            string
	Name          string
	Amount        decimal.Decimal
	Won           bool
	StageID       string
	ContactEmails []string
}

// WebhookSubscription is a webhook registration on the CRM side.
type WebhookSubscription struct {
	UUID       string
	EntityType string
	EventType  string
	URL        string
	Status     string
}
