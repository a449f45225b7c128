package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syncbridge/backend/internal/domain/integration"
)

func newCRMRouter(crm *crmStub, webhooks *webhookManagerStub, queue *queueStub, callbackURL string) *gin.Engine {
	engine := gin.New()
	NewCRMHandler(crm, webhooks, queue, callbackURL).RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func TestCRMHandler_GetContact(t *testing.T) {
	crm := newCRMStub()
	crm.contacts["lead@example.test"] = integration.Contact{Email: "lead@example.test", Name: "Lead"}
	engine := newCRMRouter(crm, &webhookManagerStub{}, &queueStub{}, "")

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/crm/contacts?email=lead%40example.test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing is 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/crm/contacts?email=ghost%40example.test", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCRMHandler_UpsertContactQueuesJob(t *testing.T) {
	queue := &queueStub{}
	engine := newCRMRouter(newCRMStub(), &webhookManagerStub{}, queue, "")

	body := `{"email": "lead@example.test", "name": "Lead"}`
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/crm/contacts", strings.NewReader(body)))

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, integration.JobTypeContactUpsert, queue.jobs[0].jobType)
}

func TestCRMHandler_AddTagsQueuesJob(t *testing.T) {
	queue := &queueStub{}
	engine := newCRMRouter(newCRMStub(), &webhookManagerStub{}, queue, "")

	body := `{"email": "lead@example.test", "tags": ["vip"]}`
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/crm/contacts/tags", strings.NewReader(body)))

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, integration.JobTypeTagUpdate, queue.jobs[0].jobType)
}

func TestCRMHandler_CreateConversionRequiresEmail(t *testing.T) {
	queue := &queueStub{}
	engine := newCRMRouter(newCRMStub(), &webhookManagerStub{}, queue, "")

	body := `{"identifier": "erp-order"}`
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/crm/conversions", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, queue.jobs)
}

func TestCRMHandler_ReplaceTagsOverwrites(t *testing.T) {
	crm := newCRMStub()
	engine := newCRMRouter(crm, &webhookManagerStub{}, &queueStub{}, "")

	body := `{"email": "lead@example.test", "tags": ["cliente"]}`
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/crm/contacts/tags", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"cliente"}, crm.replacedTags)
}

func TestCRMHandler_CreateEvent(t *testing.T) {
	crm := newCRMStub()
	engine := newCRMRouter(crm, &webhookManagerStub{}, &queueStub{}, "")

	t.Run("records event against the gateway", func(t *testing.T) {
		body := `{"event_type": "ORDER_PLACED", "payload": {"order_id": "42"}}`
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/crm/events", strings.NewReader(body)))

		require.Equal(t, http.StatusCreated, w.Code)
		require.Len(t, crm.events, 1)
		assert.Equal(t, "ORDER_PLACED", crm.events[0].Type)
	})

	t.Run("missing event_type is 400", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/crm/events", strings.NewReader(`{}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCRMHandler_ListDeals(t *testing.T) {
	crm := newCRMStub()
	crm.deals = []integration.Deal{{ID: "d-1", Name: "Big"}}
	engine := newCRMRouter(crm, &webhookManagerStub{}, &queueStub{}, "")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/crm/deals", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCRMHandler_WebhookSubscriptions(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		manager := &webhookManagerStub{
			subscriptions: []integration.WebhookSubscription{{UUID: "wh-1"}},
		}
		engine := newCRMRouter(newCRMStub(), manager, &queueStub{}, "")

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/crm/webhooks", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("create", func(t *testing.T) {
		manager := &webhookManagerStub{}
		engine := newCRMRouter(newCRMStub(), manager, &queueStub{}, "")

		body := `{"entity_type": "CONTACT", "event_type": "WEBHOOK.CONVERTED", "url": "https://bridge.example.test/webhooks/crm"}`
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/crm/webhooks", strings.NewReader(body)))

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, []string{"WEBHOOK.CONVERTED"}, manager.created)
	})

	t.Run("delete", func(t *testing.T) {
		manager := &webhookManagerStub{}
		engine := newCRMRouter(newCRMStub(), manager, &queueStub{}, "")

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/crm/webhooks/wh-9", nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, []string{"wh-9"}, manager.deleted)
	})

	t.Run("setup uses configured callback", func(t *testing.T) {
		manager := &webhookManagerStub{}
		engine := newCRMRouter(newCRMStub(), manager, &queueStub{}, "https://bridge.example.test/webhooks/crm")

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/crm/webhooks/setup", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://bridge.example.test/webhooks/crm", manager.setupURL)
	})

	t.Run("setup without callback is 400", func(t *testing.T) {
		engine := newCRMRouter(newCRMStub(), &webhookManagerStub{}, &queueStub{}, "")

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/crm/webhooks/setup", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
