package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/infrastructure/queue"
	"go.uber.org/zap"
)

// JobHandlers binds the queue job types to the remote gateways. Each
// executed job writes exactly one audit row. Malformed payloads are
// reported as validation errors so the queue gives up immediately
// instead of retrying bytes that will never parse.
type JobHandlers struct {
	erp    integration.ERPGateway
	crm    integration.CRMGateway
	logs   integration.SyncLogRepository
	logger *zap.Logger
}

// NewJobHandlers creates the queue job handler set.
func NewJobHandlers(
	erp integration.ERPGateway,
	crm integration.CRMGateway,
	logs integration.SyncLogRepository,
	logger *zap.Logger,
) *JobHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobHandlers{erp: erp, crm: crm, logs: logs, logger: logger}
}

// Register wires every handler into the queue.
func (h *JobHandlers) Register(q *queue.Queue) {
	q.Register(integration.JobTypeContactUpsert, h.HandleContactUpsert)
	q.Register(integration.JobTypeConversionCreate, h.HandleConversionCreate)
	q.Register(integration.JobTypeTagUpdate, h.HandleTagUpdate)
	q.Register(integration.JobTypePartnerCreate, h.HandlePartnerCreate)
	q.Register(integration.JobTypeOrderCreate, h.HandleOrderCreate)
}

// HandleContactUpsert pushes a contact to the CRM. Upserts are keyed by
// email, so redelivery is harmless.
func (h *JobHandlers) HandleContactUpsert(ctx context.Context, payload json.RawMessage) error {
	var job integration.ContactUpsertJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decoding contact upsert job: %v: %w", err, integration.ErrValidation)
	}
	if job.Email == "" {
		return fmt.Errorf("contact upsert job without email: %w", integration.ErrValidation)
	}

	entry := integration.NewSyncLog(EntityContact, job.Email,
		integration.SystemERP, integration.SystemCRM, map[string]any{
			"email": job.Email,
		})

	err := h.crm.UpsertContact(ctx, job.Email, job.Contact)
	h.finish(ctx, entry, err)
	return err
}

// HandleConversionCreate records a conversion event on the CRM.
func (h *JobHandlers) HandleConversionCreate(ctx context.Context, payload json.RawMessage) error {
	var job integration.ConversionJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decoding conversion job: %v: %w", err, integration.ErrValidation)
	}
	if job.Conversion.Email == "" {
		return fmt.Errorf("conversion job without email: %w", integration.ErrValidation)
	}

	entry := integration.NewSyncLog(EntityOrder, job.Conversion.OrderID,
		integration.SystemERP, integration.SystemCRM, map[string]any{
			"identifier": job.Conversion.Identifier,
			"email":      job.Conversion.Email,
			"total":      job.Conversion.OrderTotal.String(),
		})

	err := h.crm.CreateConversion(ctx, job.Conversion)
	h.finish(ctx, entry, err)
	return err
}

// HandleTagUpdate merges tags into a CRM contact.
func (h *JobHandlers) HandleTagUpdate(ctx context.Context, payload json.RawMessage) error {
	var job integration.TagUpdateJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decoding tag update job: %v: %w", err, integration.ErrValidation)
	}
	if job.Email == "" {
		return fmt.Errorf("tag update job without email: %w", integration.ErrValidation)
	}

	entry := integration.NewSyncLog(EntityContact, job.Email,
		integration.SystemERP, integration.SystemCRM, map[string]any{
			"email": job.Email,
			"tags":  job.Tags,
		})

	err := h.crm.AddContactTags(ctx, job.Email, job.Tags)
	h.finish(ctx, entry, err)
	return err
}

// HandlePartnerCreate creates an ERP partner. Creation is not
// idempotent; redelivery after a half-failed attempt duplicates the
// remote row.
func (h *JobHandlers) HandlePartnerCreate(ctx context.Context, payload json.RawMessage) error {
	var job integration.PartnerCreateJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decoding partner create job: %v: %w", err, integration.ErrValidation)
	}
	if err := job.Partner.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, integration.ErrValidation)
	}

	entry := integration.NewSyncLog(EntityPartner, job.Partner.Email,
		integration.SystemCRM, integration.SystemERP, map[string]any{
			"name":  job.Partner.Name,
			"email": job.Partner.Email,
		})

	id, err := h.erp.CreatePartner(ctx, job.Partner)
	if err == nil {
		entry.EntityID = strconv.FormatInt(id, 10)
		entry.Data["partner_id"] = id
	}
	h.finish(ctx, entry, err)
	return err
}

// HandleOrderCreate creates an ERP order with its lines. Like partner
// creation this is not idempotent under redelivery.
func (h *JobHandlers) HandleOrderCreate(ctx context.Context, payload json.RawMessage) error {
	var job integration.OrderCreateJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decoding order create job: %v: %w", err, integration.ErrValidation)
	}
	if err := job.Order.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, integration.ErrValidation)
	}

	entry := integration.NewSyncLog(EntityOrder, strconv.FormatInt(job.Order.PartnerID, 10),
		integration.SystemCRM, integration.SystemERP, map[string]any{
			"partner_id": job.Order.PartnerID,
			"lines":      len(job.Order.Lines),
		})

	id, err := h.erp.CreateOrder(ctx, job.Order)
	if err == nil {
		entry.EntityID = strconv.FormatInt(id, 10)
		entry.Data["order_id"] = id
	}
	h.finish(ctx, entry, err)
	return err
}

func (h *JobHandlers) finish(ctx context.Context, entry *integration.SyncLog, err error) {
	if err != nil {
		entry.Fail(err)
	} else {
		entry.Succeed()
	}
	if appendErr := h.logs.Append(ctx, entry); appendErr != nil {
		h.logger.Error("failed to append sync log",
			zap.String("entity_type", entry.EntityType),
			zap.Error(appendErr))
	}
}
