package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/interfaces/http/dto"
)

func newERPRouter(erp *erpStub, queue *queueStub) *gin.Engine {
	engine := gin.New()
	NewERPHandler(erp, queue).RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func TestERPHandler_ListSuppliers(t *testing.T) {
	erp := newERPStub()
	erp.suppliers = []integration.Partner{{ID: 1, Name: "Acme", Email: "acme@example.test"}}
	engine := newERPRouter(erp, &queueStub{})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/erp/suppliers", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
}

func TestERPHandler_GetPartner(t *testing.T) {
	erp := newERPStub()
	erp.partners[42] = integration.Partner{ID: 42, Name: "Known"}
	engine := newERPRouter(erp, &queueStub{})

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/erp/partners/42", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing is 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/erp/partners/7", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestERPHandler_FindPartnerByEmail(t *testing.T) {
	erp := newERPStub()
	erp.byEmail["acme@example.test"] = integration.Partner{ID: 1, Email: "acme@example.test"}
	engine := newERPRouter(erp, &queueStub{})

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/erp/partners?email=acme%40example.test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing email parameter is 400", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/erp/partners", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestERPHandler_CreatePartnerQueuesJob(t *testing.T) {
	queue := &queueStub{}
	engine := newERPRouter(newERPStub(), queue)

	body := `{"name": "New Co", "email": "new@example.test"}`
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/erp/partners", strings.NewReader(body)))

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, integration.JobTypePartnerCreate, queue.jobs[0].jobType)
}

func TestERPHandler_CreatePartnerValidation(t *testing.T) {
	queue := &queueStub{}
	engine := newERPRouter(newERPStub(), queue)

	body := `{"name": "No Email"}`
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/erp/partners", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, queue.jobs)
}

func TestERPHandler_CreateOrderQueuesJob(t *testing.T) {
	queue := &queueStub{}
	engine := newERPRouter(newERPStub(), queue)

	order := integration.CreateOrder{
		PartnerID: 10,
		Lines: []integration.OrderLine{
			{ProductID: 100, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("9.90")},
		},
	}
	body, err := json.Marshal(order)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/erp/orders", strings.NewReader(string(body))))

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, integration.JobTypeOrderCreate, queue.jobs[0].jobType)
}

func TestERPHandler_ListOrdersSinceFilter(t *testing.T) {
	erp := newERPStub()
	engine := newERPRouter(erp, &queueStub{})

	t.Run("valid date", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/erp/orders?since=2026-03-15", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 2026, erp.since.Year())
	})

	t.Run("malformed date is 400", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/erp/orders?since=15/03/2026", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
