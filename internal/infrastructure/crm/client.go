package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/infrastructure/remote"
)

// maxResponseSize is the maximum allowed response size from the CRM API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Webhook subscriptions maintained by SetupWebhooks.
const (
	webhookEntityContact          = "CONTACT"
	webhookEventConverted         = "WEBHOOK.CONVERTED"
	webhookEventMarkedOpportunity = "WEBHOOK.MARKED_OPPORTUNITY"
)

// Client talks to the CRM platform REST API. Every call goes through the
// request pipeline: rate budget, access token, bearer request, and a
// single forced-refresh retry when the API answers 401.
type Client struct {
	config     *Config
	httpClient *http.Client
	session    *TokenSession
	limiter    *remote.WindowLimiter
	retry      remote.AuthRetryPolicy
	logger     *zap.Logger
}

// NewClient creates a CRM client with the given configuration.
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		session:    NewTokenSession(config, httpClient, logger),
		limiter:    remote.NewWindowLimiter(config.RateLimitPerMinute, time.Minute),
		retry:      remote.DefaultAuthRetryPolicy(integration.IsUnauthorized),
		logger:     logger,
	}, nil
}

// Session exposes the token session, mainly for tests.
func (c *Client) Session() *TokenSession {
	return c.session
}

// ---------------------------------------------------------------------------
// Request Pipeline
// ---------------------------------------------------------------------------

// execute runs one API call through the pipeline. The rate counter is
// charged per attempt, the retried one included. A non-nil out receives
// the decoded response body.
func (c *Client) execute(ctx context.Context, method, path string, requestBody, out any) error {
	attempt := func(ctx context.Context) error {
		if err := c.limiter.TryAcquire(); err != nil {
			return err
		}
		if err := c.session.EnsureValid(ctx); err != nil {
			return err
		}
		return c.doRequest(ctx, method, path, requestBody, out)
	}

	return c.retry.Do(ctx, attempt, c.session.ForceRefresh)
}

// doRequest performs one HTTP round trip to the API.
func (c *Client) doRequest(ctx context.Context, method, path string, requestBody, out any) error {
	var reader io.Reader
	if requestBody != nil {
		payload, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("crm: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("crm: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.session.AccessToken())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", integration.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("crm: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &integration.RemoteAPIError{
			System: integration.SystemCRM,
			Status: resp.StatusCode,
			Body:   string(body),
		}
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("crm: malformed response: %w", err)
		}
	}
	return nil
}

// contactPath addresses a contact by email.
func contactPath(email string) string {
	return "/platform/contacts/email:" + url.PathEscape(email)
}

// ---------------------------------------------------------------------------
// Contact Operations
// ---------------------------------------------------------------------------

// UpsertContact creates or updates the contact identified by email.
func (c *Client) UpsertContact(ctx context.Context, email string, contact integration.ContactUpsert) error {
	if err := c.execute(ctx, http.MethodPatch, contactPath(email), contact, nil); err != nil {
		return err
	}
	c.logger.Debug("CRM contact upserted", zap.String("email", email))
	return nil
}

// GetContact returns the contact, or nil when the CRM answers 404.
func (c *Client) GetContact(ctx context.Context, email string) (*integration.Contact, error) {
	var resp contactResponse
	if err := c.execute(ctx, http.MethodGet, contactPath(email), nil, &resp); err != nil {
		if integration.IsRemoteNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return &integration.Contact{
		UUID:         resp.UUID,
		Email:        resp.Email,
		Name:         resp.Name,
		Phone:        resp.Phone,
		MobilePhone:  resp.MobilePhone,
		City:         resp.City,
		State:        resp.State,
		Tags:         resp.Tags,
		CustomFields: resp.CustomFields,
	}, nil
}

// UpdateContactTags replaces the contact's tag list.
func (c *Client) UpdateContactTags(ctx context.Context, email string, tags []string) error {
	return c.execute(ctx, http.MethodPatch, contactPath(email), tagPatch{Tags: tags}, nil)
}

// AddContactTags merges tags into the contact's existing tag list. A
// contact the CRM does not know yet is created with just the tags.
func (c *Client) AddContactTags(ctx context.Context, email string, tags []string) error {
	contact, err := c.GetContact(ctx, email)
	if err != nil {
		return err
	}

	merged := tags
	if contact != nil {
		merged = mergeTags(contact.Tags, tags)
	}
	return c.UpdateContactTags(ctx, email, merged)
}

// mergeTags appends the new tags that are not already present, keeping
// the existing order.
func mergeTags(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, tag := range existing {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		merged = append(merged, tag)
	}
	for _, tag := range incoming {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		merged = append(merged, tag)
	}
	return merged
}

// ---------------------------------------------------------------------------
// Event Operations
// ---------------------------------------------------------------------------

// CreateConversion records a conversion event for a contact.
func (c *Client) CreateConversion(ctx context.Context, conversion integration.Conversion) error {
	payload := map[string]any{
		"conversion_identifier": conversion.Identifier,
		"email":                 conversion.Email,
	}
	if conversion.Name != "" {
		payload["name"] = conversion.Name
	}
	if conversion.CompanyName != "" {
		payload["company_name"] = conversion.CompanyName
	}
	if conversion.Phone != "" {
		payload["personal_phone"] = conversion.Phone
	}
	if conversion.MobilePhone != "" {
		payload["mobile_phone"] = conversion.MobilePhone
	}
	if conversion.OrderID != "" {
		payload["cf_order_id"] = conversion.OrderID
	}
	if !conversion.OrderTotal.IsZero() {
		payload["cf_order_total_value"] = conversion.OrderTotal.String()
	}
	if conversion.ERPPartnerID != "" {
		payload["cf_erp_id"] = conversion.ERPPartnerID
	}

	err := c.execute(ctx, http.MethodPost, "/platform/events", eventRequest{
		EventType:   eventTypeConversion,
		EventFamily: eventFamilyCDP,
		Payload:     payload,
	}, nil)
	if err != nil {
		return err
	}

	c.logger.Info("CRM conversion recorded",
		zap.String("identifier", conversion.Identifier),
		zap.String("email", conversion.Email),
	)
	return nil
}

// CreateEvent records a generic platform event.
func (c *Client) CreateEvent(ctx context.Context, event integration.Event) error {
	family := event.Family
	if family == "" {
		family = eventFamilyCDP
	}
	return c.execute(ctx, http.MethodPost, "/platform/events", eventRequest{
		EventType:   event.Type,
		EventFamily: family,
		Payload:     event.Payload,
	}, nil)
}

// ---------------------------------------------------------------------------
// Deal Operations
// ---------------------------------------------------------------------------

// ListDeals returns the CRM's sales deals.
func (c *Client) ListDeals(ctx context.Context) ([]integration.Deal, error) {
	var page dealsPage
	if err := c.execute(ctx, http.MethodGet, "/deals", nil, &page); err != nil {
		return nil, err
	}

	deals := make([]integration.Deal, 0, len(page.Deals))
	for _, d := range page.Deals {
		deal := integration.Deal{
			ID:      d.ID,
			Name:    d.Name,
			Amount:  d.AmountTotal,
			StageID: d.DealStage.ID,
		}
		if d.Win != nil {
			deal.Won = *d.Win
		}
		for _, contact := range d.Contacts {
			for _, email := range contact.Emails {
				if email.Email != "" {
					deal.ContactEmails = append(deal.ContactEmails, email.Email)
				}
			}
		}
		deals = append(deals, deal)
	}
	return deals, nil
}

// ---------------------------------------------------------------------------
// Webhook Subscriptions
// ---------------------------------------------------------------------------

// ListWebhooks returns the current webhook subscriptions.
func (c *Client) ListWebhooks(ctx context.Context) ([]integration.WebhookSubscription, error) {
	var page webhooksPage
	if err := c.execute(ctx, http.MethodGet, "/integrations/webhooks", nil, &page); err != nil {
		return nil, err
	}

	subs := make([]integration.WebhookSubscription, 0, len(page.Webhooks))
	for _, w := range page.Webhooks {
		subs = append(subs, integration.WebhookSubscription{
			UUID:       w.UUID,
			EntityType: w.EntityType,
			EventType:  w.EventType,
			URL:        w.URL,
			Status:     w.Status,
		})
	}
	return subs, nil
}

// CreateWebhook registers a webhook subscription.
func (c *Client) CreateWebhook(ctx context.Context, entityType, eventType, callbackURL string) (*integration.WebhookSubscription, error) {
	var resp webhookResponse
	err := c.execute(ctx, http.MethodPost, "/integrations/webhooks", webhookCreateRequest{
		EntityType: entityType,
		EventType:  eventType,
		URL:        callbackURL,
		HTTPMethod: http.MethodPost,
	}, &resp)
	if err != nil {
		return nil, err
	}

	c.logger.Info("CRM webhook registered",
		zap.String("event_type", eventType),
		zap.String("url", callbackURL),
	)
	return &integration.WebhookSubscription{
		UUID:       resp.UUID,
		EntityType: resp.EntityType,
		EventType:  resp.EventType,
		URL:        resp.URL,
		Status:     resp.Status,
	}, nil
}

// DeleteWebhook removes a webhook subscription.
func (c *Client) DeleteWebhook(ctx context.Context, uuid string) error {
	return c.execute(ctx, http.MethodDelete, "/integrations/webhooks/"+url.PathEscape(uuid), nil, nil)
}

// SetupWebhooks makes sure the conversion and opportunity subscriptions
// pointing at callbackURL exist, creating the missing ones. Existing
// subscriptions for other URLs are left alone.
func (c *Client) SetupWebhooks(ctx context.Context, callbackURL string) error {
	existing, err := c.ListWebhooks(ctx)
	if err != nil {
		return err
	}

	wanted := []string{webhookEventConverted, webhookEventMarkedOpportunity}
	for _, eventType := range wanted {
		if hasSubscription(existing, eventType, callbackURL) {
			continue
		}
		if _, err := c.CreateWebhook(ctx, webhookEntityContact, eventType, callbackURL); err != nil {
			return fmt.Errorf("crm: failed to register %s webhook: %w", eventType, err)
		}
	}
	return nil
}

func hasSubscription(subs []integration.WebhookSubscription, eventType, callbackURL string) bool {
	for _, sub := range subs {
		if sub.EventType == eventType && sub.URL == callbackURL {
			return true
		}
	}
	return false
}

// Ensure Client implements the CRMGateway port
var _ integration.CRMGateway = (*Client)(nil)
