package crm

import "github.com/shopspring/decimal"

// Event taxonomy of the CRM platform events endpoint.
const (
	eventTypeConversion = "CONVERSION"
	eventFamilyCDP      = "CDP"
)

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type contactResponse struct {
	UUID         string         `json:"uuid"`
	Email        string         `json:"email"`
	Name         string         `json:"name"`
	Phone        string         `json:"personal_phone"`
	MobilePhone  string         `json:"mobile_phone"`
	City         string         `json:"city"`
	State        string         `json:"state"`
	Tags         []string       `json:"tags"`
	CustomFields map[string]any `json:"custom_fields"`
}

type eventRequest struct {
	EventType   string         `json:"event_type"`
	EventFamily string         `json:"event_family"`
	Payload     map[string]any `json:"payload"`
}

type tagPatch struct {
	Tags []string `json:"tags"`
}

type dealResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Win         *bool           `json:"win"`
	AmountTotal decimal.Decimal `json:"amount_total"`
	DealStage   struct {
		ID string `json:"id"`
	} `json:"deal_stage"`
	Contacts []struct {
		Emails []struct {
			Email string `json:"email"`
		} `json:"emails"`
	} `json:"contacts"`
}

type dealsPage struct {
	Deals   []dealResponse `json:"deals"`
	HasMore bool           `json:"has_more"`
	Total   int            `json:"total"`
}

type webhookResponse struct {
	UUID       string `json:"uuid"`
	EntityType string `json:"entity_type"`
	EventType  string `json:"event_type"`
	URL        string `json:"url"`
	Status     string `json:"status"`
}

type webhooksPage struct {
	Webhooks []webhookResponse `json:"webhooks"`
}

type webhookCreateRequest struct {
	EntityType string `json:"entity_type"`
	EventType  string `json:"event_type"`
	URL        string `json:"url"`
	HTTPMethod string `json:"http_method"`
}
