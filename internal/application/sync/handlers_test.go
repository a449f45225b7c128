package sync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syncbridge/backend/internal/domain/integration"
	"go.uber.org/zap"
)

func marshalJob(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestJobHandlers_ContactUpsert(t *testing.T) {
	erp := newERPStub()
	crm := newCRMStub()
	logs := &logStub{}
	handlers := NewJobHandlers(erp, crm, logs, zap.NewNop())

	payload := marshalJob(t, integration.ContactUpsertJob{
		Email:   "lead@example.test",
		Contact: integration.ContactUpsert{Email: "lead@example.test", Name: "Lead"},
	})

	require.NoError(t, handlers.HandleContactUpsert(context.Background(), payload))
	assert.Equal(t, "Lead", crm.upserts["lead@example.test"].Name)

	entries := logs.byEntity(EntityContact)
	require.Len(t, entries, 1)
	assert.Equal(t, integration.SyncStatusSuccess, entries[0].Status)
}

func TestJobHandlers_MalformedPayloadsAreValidationErrors(t *testing.T) {
	handlers := NewJobHandlers(newERPStub(), newCRMStub(), &logStub{}, zap.NewNop())
	ctx := context.Background()
	garbage := json.RawMessage(`{"email": 12`)

	for name, handle := range map[string]func(context.Context, json.RawMessage) error{
		"contact_upsert":    handlers.HandleContactUpsert,
		"conversion_create": handlers.HandleConversionCreate,
		"tag_update":        handlers.HandleTagUpdate,
		"partner_create":    handlers.HandlePartnerCreate,
		"order_create":      handlers.HandleOrderCreate,
	} {
		t.Run(name, func(t *testing.T) {
			err := handle(ctx, garbage)
			require.Error(t, err)
			assert.ErrorIs(t, err, integration.ErrValidation)
		})
	}
}

func TestJobHandlers_ConversionCreate(t *testing.T) {
	crm := newCRMStub()
	logs := &logStub{}
	handlers := NewJobHandlers(newERPStub(), crm, logs, zap.NewNop())

	payload := marshalJob(t, integration.ConversionJob{
		Conversion: integration.Conversion{
			Identifier: "erp-order",
			Email:      "buyer@example.test",
			OrderID:    "500",
			OrderTotal: decimal.RequireFromString("99.90"),
		},
	})

	require.NoError(t, handlers.HandleConversionCreate(context.Background(), payload))
	require.Len(t, crm.conversions, 1)
	assert.Equal(t, "500", crm.conversions[0].OrderID)

	entries := logs.byEntity(EntityOrder)
	require.Len(t, entries, 1)
	assert.Equal(t, "99.90", entries[0].Data["total"])
}

func TestJobHandlers_TagUpdate(t *testing.T) {
	crm := newCRMStub()
	handlers := NewJobHandlers(newERPStub(), crm, &logStub{}, zap.NewNop())

	payload := marshalJob(t, integration.TagUpdateJob{
		Email: "buyer@example.test",
		Tags:  []string{"vip"},
	})

	require.NoError(t, handlers.HandleTagUpdate(context.Background(), payload))
	assert.Equal(t, []string{"vip"}, crm.taggedWith["buyer@example.test"])
}

func TestJobHandlers_PartnerCreate(t *testing.T) {
	erp := newERPStub()
	logs := &logStub{}
	handlers := NewJobHandlers(erp, newCRMStub(), logs, zap.NewNop())

	payload := marshalJob(t, integration.PartnerCreateJob{
		Partner: integration.CreatePartner{Name: "New Co", Email: "new@example.test"},
	})

	require.NoError(t, handlers.HandlePartnerCreate(context.Background(), payload))
	require.Len(t, erp.createdPartners, 1)

	entries := logs.byEntity(EntityPartner)
	require.Len(t, entries, 1)
	assert.Equal(t, "101", entries[0].EntityID)
	assert.Equal(t, integration.SystemCRM, entries[0].Source)
	assert.Equal(t, integration.SystemERP, entries[0].Destination)
}

func TestJobHandlers_PartnerCreate_InvalidPayloadIsPermanent(t *testing.T) {
	erp := newERPStub()
	handlers := NewJobHandlers(erp, newCRMStub(), &logStub{}, zap.NewNop())

	payload := marshalJob(t, integration.PartnerCreateJob{
		Partner: integration.CreatePartner{Name: "Nameless"},
	})

	err := handlers.HandlePartnerCreate(context.Background(), payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrValidation)
	assert.Empty(t, erp.createdPartners)
}

func TestJobHandlers_OrderCreate(t *testing.T) {
	erp := newERPStub()
	logs := &logStub{}
	handlers := NewJobHandlers(erp, newCRMStub(), logs, zap.NewNop())

	payload := marshalJob(t, integration.OrderCreateJob{
		Order: integration.CreateOrder{
			PartnerID: 10,
			Lines: []integration.OrderLine{
				{ProductID: 100, Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("10.50")},
			},
		},
	})

	require.NoError(t, handlers.HandleOrderCreate(context.Background(), payload))
	require.Len(t, erp.createdOrders, 1)

	entries := logs.byEntity(EntityOrder)
	require.Len(t, entries, 1)
	assert.Equal(t, "9001", entries[0].EntityID)
}

// Order creation is not idempotent: the same payload delivered twice
// creates two remote orders. At-least-once delivery callers must account
// for this.
func TestJobHandlers_OrderCreate_RedeliveryDuplicates(t *testing.T) {
	erp := newERPStub()
	handlers := NewJobHandlers(erp, newCRMStub(), &logStub{}, zap.NewNop())

	payload := marshalJob(t, integration.OrderCreateJob{
		Order: integration.CreateOrder{
			PartnerID: 10,
			Lines: []integration.OrderLine{
				{ProductID: 100, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("5.00")},
			},
		},
	})

	ctx := context.Background()
	require.NoError(t, handlers.HandleOrderCreate(ctx, payload))
	require.NoError(t, handlers.HandleOrderCreate(ctx, payload))
	assert.Len(t, erp.createdOrders, 2)
}

func TestJobHandlers_RemoteFailureIsAuditedAndReturned(t *testing.T) {
	crm := newCRMStub()
	crm.upsertErr = errors.New("crm down")
	logs := &logStub{}
	handlers := NewJobHandlers(newERPStub(), crm, logs, zap.NewNop())

	payload := marshalJob(t, integration.ContactUpsertJob{
		Email:   "lead@example.test",
		Contact: integration.ContactUpsert{Email: "lead@example.test"},
	})

	err := handlers.HandleContactUpsert(context.Background(), payload)
	require.Error(t, err)

	entries := logs.byEntity(EntityContact)
	require.Len(t, entries, 1)
	assert.Equal(t, integration.SyncStatusError, entries[0].Status)
	assert.Contains(t, entries[0].Error, "crm down")
}
