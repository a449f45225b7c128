package webhook

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Event type / name discriminators carried by inbound webhooks. Marketing
// events use event_type, CRM events use event_name with a product prefix,
// so names are matched by suffix.
const (
	eventTypeConverted         = "WEBHOOK.CONVERTED"
	eventTypeMarkedOpportunity = "WEBHOOK.MARKED_OPPORTUNITY"

	suffixDealCreated         = "_deal_created"
	suffixDealUpdated         = "_deal_updated"
	suffixDealDeleted         = "_deal_deleted"
	suffixOrganizationCreated = "_organization_created"
	suffixOrganizationUpdated = "_organization_updated"
)

// Conversion identifiers that denote a completed purchase.
const (
	conversionPurchase = "purchase"
	conversionSale     = "sale"
)

// Kind is the classified variant of an inbound event.
type Kind int

const (
	KindUnknown Kind = iota
	KindConversion
	KindMarkedOpportunity
	KindDealCreated
	KindDealUpdated
	KindDealDeleted
	KindOrganizationCreated
	KindOrganizationUpdated
)

// String returns the variant name for logs.
func (k Kind) String() string {
	switch k {
	case KindConversion:
		return "conversion"
	case KindMarkedOpportunity:
		return "marked_opportunity"
	case KindDealCreated:
		return "deal_created"
	case KindDealUpdated:
		return "deal_updated"
	case KindDealDeleted:
		return "deal_deleted"
	case KindOrganizationCreated:
		return "organization_created"
	case KindOrganizationUpdated:
		return "organization_updated"
	default:
		return "unknown"
	}
}

// FlexID tolerates remote ids arriving as either JSON strings or numbers.
type FlexID string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexID) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// Lead is the contact data carried by marketing-style events, either as
// an element of the leads list or as the top-level payload itself.
type Lead struct {
	Email                string         `json:"email"`
	Name                 string         `json:"name"`
	PersonalPhone        string         `json:"personal_phone"`
	MobilePhone          string         `json:"mobile_phone"`
	Tags                 []string       `json:"tags"`
	ConversionIdentifier string         `json:"conversion_identifier"`
	CustomFields         map[string]any `json:"custom_fields"`
}

// HasTag reports whether the lead carries the tag.
func (l *Lead) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// CustomField returns the custom field rendered as a string. Numeric
// values are formatted without an exponent; absent fields yield "".
func (l *Lead) CustomField(key string) string {
	v, ok := l.CustomFields[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// Phone returns the first available phone number.
func (l *Lead) Phone() string {
	if l.PersonalPhone != "" {
		return l.PersonalPhone
	}
	return l.MobilePhone
}

// OrderItem is one structured line of a conversion's order payload.
type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderItems parses the structured item list custom field. The field
// arrives either as a JSON-encoded string or as a plain array. A missing
// field yields (nil, true); only unparseable content yields ok=false.
func (l *Lead) OrderItems() ([]OrderItem, bool) {
	raw, ok := l.CustomFields["cf_order_items"]
	if !ok || raw == nil {
		return nil, true
	}

	var data []byte
	switch t := raw.(type) {
	case string:
		data = []byte(t)
	default:
		encoded, err := json.Marshal(raw)
		if err != nil {
			return nil, false
		}
		data = encoded
	}

	var items []OrderItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false
	}
	return items, true
}

// OrderTotalValue returns the aggregate order value custom field.
func (l *Lead) OrderTotalValue() (decimal.Decimal, bool) {
	return l.decimalField("cf_order_total_value")
}

// OpportunityValue returns the opportunity amount custom field.
func (l *Lead) OpportunityValue() (decimal.Decimal, bool) {
	return l.decimalField("cf_opportunity_value")
}

func (l *Lead) decimalField(key string) (decimal.Decimal, bool) {
	s := l.CustomField(key)
	if s == "" {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

// Document is the entity snapshot carried by CRM-style deal and
// organization events.
type Document struct {
	ID            FlexID          `json:"id"`
	Name          string          `json:"name"`
	Win           *bool           `json:"win"`
	Amount        decimal.Decimal `json:"amount"`
	DealStageID   FlexID          `json:"deal_stage_id"`
	ContactEmails []string        `json:"contact_emails"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	TaxID         string          `json:"cnpj"`
}

// Won reports whether the deal document is marked won.
func (d *Document) Won() bool {
	return d.Win != nil && *d.Win
}

// Event is the inbound webhook envelope. Marketing events carry leads
// (or the lead fields inline at the top level); CRM events carry a
// document snapshot.
type Event struct {
	Type            string    `json:"event_type"`
	Name            string    `json:"event_name"`
	UUID            string    `json:"event_uuid"`
	TransactionUUID string    `json:"transaction_uuid"`
	Leads           []Lead    `json:"leads"`
	Document        *Document `json:"document"`

	Lead // inline lead fields for flat payloads
}

// ID returns the best available event identifier for dedup and audit.
func (e *Event) ID() string {
	if e.UUID != "" {
		return e.UUID
	}
	return e.TransactionUUID
}

// PrimaryLead returns the first lead of the leads list, falling back to
// the inline top-level lead fields.
func (e *Event) PrimaryLead() *Lead {
	if len(e.Leads) > 0 {
		return &e.Leads[0]
	}
	return &e.Lead
}

// Classify maps the event discriminators onto a Kind.
func (e *Event) Classify() Kind {
	switch e.Type {
	case eventTypeConverted:
		return KindConversion
	case eventTypeMarkedOpportunity:
		return KindMarkedOpportunity
	}

	switch {
	case strings.HasSuffix(e.Name, suffixDealCreated):
		return KindDealCreated
	case strings.HasSuffix(e.Name, suffixDealUpdated):
		return KindDealUpdated
	case strings.HasSuffix(e.Name, suffixDealDeleted):
		return KindDealDeleted
	case strings.HasSuffix(e.Name, suffixOrganizationCreated):
		return KindOrganizationCreated
	case strings.HasSuffix(e.Name, suffixOrganizationUpdated):
		return KindOrganizationUpdated
	}
	return KindUnknown
}
