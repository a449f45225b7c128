package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// apiStub is a scripted fake of the CRM platform API plus its OAuth
// token endpoint.
type apiStub struct {
	mu            sync.Mutex
	exchangeDelay time.Duration

	exchanges  []string // refresh tokens seen by the token endpoint
	requests   []*http.Request
	bodies     []json.RawMessage
	expiresIn  int64
	rotate     bool // rotate the refresh token on each exchange
	fail401    int  // answer 401 to this many API calls
	notFound   bool
	contact    string
	deals      string
	webhooks   string
	lastBearer string
}

func (s *apiStub) server(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/token" && s.exchangeDelay > 0 {
			time.Sleep(s.exchangeDelay)
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		if r.URL.Path == "/auth/token" {
			var req tokenRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			s.exchanges = append(s.exchanges, req.RefreshToken)

			token := tokenResponse{AccessToken: "access-" + req.RefreshToken, ExpiresIn: s.expiresIn}
			if token.ExpiresIn == 0 {
				token.ExpiresIn = 86400
			}
			if s.rotate {
				token.RefreshToken = "rotated-" + req.RefreshToken
			}
			json.NewEncoder(w).Encode(token)
			return
		}

		s.requests = append(s.requests, r.Clone(context.Background()))
		s.lastBearer = r.Header.Get("Authorization")
		var body json.RawMessage
		json.NewDecoder(r.Body).Decode(&body)
		s.bodies = append(s.bodies, body)

		if s.fail401 > 0 {
			s.fail401--
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch {
		case s.notFound:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodGet && s.contact != "":
			w.Write([]byte(s.contact))
		case r.URL.Path == "/deals":
			w.Write([]byte(s.deals))
		case r.URL.Path == "/integrations/webhooks" && r.Method == http.MethodGet:
			w.Write([]byte(s.webhooks))
		case r.URL.Path == "/integrations/webhooks" && r.Method == http.MethodPost:
			w.Write([]byte(`{"uuid":"wh-1","entity_type":"CONTACT","event_type":"WEBHOOK.CONVERTED","url":"https://bridge.test/hook","status":"active"}`))
		default:
			w.Write([]byte(`{}`))
		}
	}))
}

func newTestCRMClient(t *testing.T, stub *apiStub, mutate func(*Config)) *Client {
	server := stub.server(t)
	t.Cleanup(server.Close)

	config := NewConfig(server.URL, "client-id", "client-secret", "refresh-0")
	if mutate != nil {
		mutate(config)
	}

	client, err := NewClient(config, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(&Config{BaseURL: "https://crm.test"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrConfigMissingClientID)
}

func TestTokenExchangedLazilyAndReused(t *testing.T) {
	stub := &apiStub{}
	client := newTestCRMClient(t, stub, nil)

	ctx := context.Background()
	require.NoError(t, client.UpsertContact(ctx, "lead@example.test", integration.ContactUpsert{Email: "lead@example.test"}))
	require.NoError(t, client.UpsertContact(ctx, "lead@example.test", integration.ContactUpsert{Email: "lead@example.test"}))

	assert.Equal(t, []string{"refresh-0"}, stub.exchanges, "token minted once and reused")
	assert.Equal(t, "Bearer access-refresh-0", stub.lastBearer)
}

func TestTokenRefreshedInsideLeadWindow(t *testing.T) {
	stub := &apiStub{expiresIn: 3600, rotate: true}
	client := newTestCRMClient(t, stub, nil)

	ctx := context.Background()
	require.NoError(t, client.UpsertContact(ctx, "a@b.test", integration.ContactUpsert{Email: "a@b.test"}))
	require.Len(t, stub.exchanges, 1)

	// Move the clock to 4 minutes before expiry, inside the 5-minute lead.
	client.Session().now = func() time.Time { return time.Now().Add(56 * time.Minute) }

	require.NoError(t, client.UpsertContact(ctx, "a@b.test", integration.ContactUpsert{Email: "a@b.test"}))
	assert.Equal(t, []string{"refresh-0", "rotated-refresh-0"}, stub.exchanges, "rotated refresh token used for the next exchange")
}

func TestClientRefreshesTokenOnceOn401(t *testing.T) {
	stub := &apiStub{fail401: 1}
	client := newTestCRMClient(t, stub, nil)

	require.NoError(t, client.UpsertContact(context.Background(), "a@b.test", integration.ContactUpsert{Email: "a@b.test"}))

	assert.Len(t, stub.exchanges, 2, "lazy exchange plus forced refresh")
	assert.Len(t, stub.requests, 2, "exactly one retry")
}

func TestForceRefreshCollapsesOverlappingCallers(t *testing.T) {
	stub := &apiStub{exchangeDelay: 200 * time.Millisecond}
	client := newTestCRMClient(t, stub, nil)
	session := client.Session()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = session.ForceRefresh(context.Background())
	}()
	go func() {
		defer wg.Done()
		// Arrive while the first exchange is still in flight.
		time.Sleep(50 * time.Millisecond)
		errs[1] = session.ForceRefresh(context.Background())
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, []string{"refresh-0"}, stub.exchanges, "overlapping forced refreshes share one exchange")
	assert.Equal(t, "access-refresh-0", session.AccessToken())
}

func TestClientPropagatesSecond401(t *testing.T) {
	stub := &apiStub{fail401: 2}
	client := newTestCRMClient(t, stub, nil)

	err := client.UpsertContact(context.Background(), "a@b.test", integration.ContactUpsert{Email: "a@b.test"})
	require.Error(t, err)

	var remoteErr *integration.RemoteAPIError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusUnauthorized, remoteErr.Status)
	assert.Equal(t, integration.SystemCRM, remoteErr.System)
	assert.Len(t, stub.requests, 2)
}

func TestClientEnforcesRateBudget(t *testing.T) {
	stub := &apiStub{}
	client := newTestCRMClient(t, stub, func(c *Config) {
		c.RateLimitPerMinute = 1
	})

	ctx := context.Background()
	require.NoError(t, client.UpsertContact(ctx, "a@b.test", integration.ContactUpsert{Email: "a@b.test"}))

	err := client.UpsertContact(ctx, "a@b.test", integration.ContactUpsert{Email: "a@b.test"})
	assert.ErrorIs(t, err, integration.ErrRateLimitExceeded)
	assert.Len(t, stub.requests, 1)
}

func TestUpsertContactAddressesByEmail(t *testing.T) {
	stub := &apiStub{}
	client := newTestCRMClient(t, stub, nil)

	require.NoError(t, client.UpsertContact(context.Background(), "lead+tag@example.test", integration.ContactUpsert{
		Email: "lead+tag@example.test",
		Name:  "Lead",
	}))

	require.Len(t, stub.requests, 1)
	assert.Equal(t, http.MethodPatch, stub.requests[0].Method)
	assert.Equal(t, "/platform/contacts/email:lead+tag@example.test", stub.requests[0].URL.Path)
}

func TestGetContact(t *testing.T) {
	t.Run("returns the contact", func(t *testing.T) {
		stub := &apiStub{contact: `{"uuid":"c-1","email":"lead@example.test","name":"Lead","tags":["cliente"],"custom_fields":{"cf_erp_id":"42"}}`}
		client := newTestCRMClient(t, stub, nil)

		contact, err := client.GetContact(context.Background(), "lead@example.test")
		require.NoError(t, err)
		require.NotNil(t, contact)
		assert.Equal(t, "c-1", contact.UUID)
		assert.Equal(t, []string{"cliente"}, contact.Tags)
		assert.Equal(t, "42", contact.CustomFields["cf_erp_id"])
	})

	t.Run("maps 404 to nil", func(t *testing.T) {
		stub := &apiStub{notFound: true}
		client := newTestCRMClient(t, stub, nil)

		contact, err := client.GetContact(context.Background(), "nobody@example.test")
		require.NoError(t, err)
		assert.Nil(t, contact)
	})
}

func TestAddContactTagsMergesExisting(t *testing.T) {
	stub := &apiStub{contact: `{"uuid":"c-1","email":"lead@example.test","tags":["cliente","vip"]}`}
	client := newTestCRMClient(t, stub, nil)

	require.NoError(t, client.AddContactTags(context.Background(), "lead@example.test", []string{"vip", "produto-100"}))

	require.Len(t, stub.requests, 2)
	assert.Equal(t, http.MethodGet, stub.requests[0].Method)
	assert.Equal(t, http.MethodPatch, stub.requests[1].Method)

	var patch tagPatch
	require.NoError(t, json.Unmarshal(stub.bodies[1], &patch))
	assert.Equal(t, []string{"cliente", "vip", "produto-100"}, patch.Tags)
}

func TestCreateConversionPayload(t *testing.T) {
	stub := &apiStub{}
	client := newTestCRMClient(t, stub, nil)

	require.NoError(t, client.CreateConversion(context.Background(), integration.Conversion{
		Identifier:   "erp-order",
		Email:        "buyer@example.test",
		Name:         "Buyer",
		OrderID:      "9001",
		OrderTotal:   decimal.RequireFromString("1250.75"),
		ERPPartnerID: "42",
	}))

	require.Len(t, stub.requests, 1)
	assert.Equal(t, "/platform/events", stub.requests[0].URL.Path)

	var event eventRequest
	require.NoError(t, json.Unmarshal(stub.bodies[0], &event))
	assert.Equal(t, "CONVERSION", event.EventType)
	assert.Equal(t, "CDP", event.EventFamily)
	assert.Equal(t, "erp-order", event.Payload["conversion_identifier"])
	assert.Equal(t, "9001", event.Payload["cf_order_id"])
	assert.Equal(t, "1250.75", event.Payload["cf_order_total_value"])
	assert.Equal(t, "42", event.Payload["cf_erp_id"])
}

func TestListDeals(t *testing.T) {
	stub := &apiStub{deals: `{"deals":[{"id":"d-1","name":"Big Deal","win":true,"amount_total":5000,"deal_stage":{"id":"stage-2"},"contacts":[{"emails":[{"email":"buyer@example.test"}]}]}],"has_more":false,"total":1}`}
	client := newTestCRMClient(t, stub, nil)

	deals, err := client.ListDeals(context.Background())
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, "d-1", deals[0].ID)
	assert.True(t, deals[0].Won)
	assert.Equal(t, "5000", deals[0].Amount.String())
	assert.Equal(t, []string{"buyer@example.test"}, deals[0].ContactEmails)
}

func TestSetupWebhooksCreatesMissingOnly(t *testing.T) {
	stub := &apiStub{webhooks: `{"webhooks":[{"uuid":"wh-0","entity_type":"CONTACT","event_type":"WEBHOOK.CONVERTED","url":"https://bridge.test/hook","status":"active"}]}`}
	client := newTestCRMClient(t, stub, nil)

	require.NoError(t, client.SetupWebhooks(context.Background(), "https://bridge.test/hook"))

	require.Len(t, stub.requests, 2, "one list, one create")
	assert.Equal(t, http.MethodPost, stub.requests[1].Method)

	var created webhookCreateRequest
	require.NoError(t, json.Unmarshal(stub.bodies[1], &created))
	assert.Equal(t, "WEBHOOK.MARKED_OPPORTUNITY", created.EventType)
	assert.Equal(t, "https://bridge.test/hook", created.URL)
}
