package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/syncbridge/backend/internal/domain/integration"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type erpStub struct {
	suppliers []integration.Partner
	partners  map[int64]integration.Partner
	byEmail   map[string]integration.Partner
	companies []integration.Company
	products  []integration.Product
	orders    []integration.Order
	sellers   []integration.Seller

	listErr error
	since   time.Time
}

func newERPStub() *erpStub {
	return &erpStub{
		partners: map[int64]integration.Partner{},
		byEmail:  map[string]integration.Partner{},
	}
}

func (s *erpStub) ListSuppliers(ctx context.Context) ([]integration.Partner, error) {
	return s.suppliers, s.listErr
}

func (s *erpStub) FindPartnerByEmail(ctx context.Context, email string) (*integration.Partner, error) {
	if p, ok := s.byEmail[email]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *erpStub) FindPartnerByID(ctx context.Context, id int64) (*integration.Partner, error) {
	if p, ok := s.partners[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *erpStub) ListCompanies(ctx context.Context) ([]integration.Company, error) {
	return s.companies, s.listErr
}

func (s *erpStub) ListProducts(ctx context.Context, activeOnly bool) ([]integration.Product, error) {
	return s.products, s.listErr
}

func (s *erpStub) ListOrders(ctx context.Context, since time.Time) ([]integration.Order, error) {
	s.since = since
	return s.orders, s.listErr
}

func (s *erpStub) ListSellers(ctx context.Context) ([]integration.Seller, error) {
	return s.sellers, s.listErr
}

func (s *erpStub) CreatePartner(ctx context.Context, partner integration.CreatePartner) (int64, error) {
	return 1, nil
}

func (s *erpStub) CreateOrder(ctx context.Context, order integration.CreateOrder) (int64, error) {
	return 1, nil
}

var _ integration.ERPGateway = (*erpStub)(nil)

type crmStub struct {
	contacts     map[string]integration.Contact
	deals        []integration.Deal
	events       []integration.Event
	replacedTags []string
	listErr      error
}

func newCRMStub() *crmStub {
	return &crmStub{contacts: map[string]integration.Contact{}}
}

func (s *crmStub) UpsertContact(ctx context.Context, email string, contact integration.ContactUpsert) error {
	return nil
}

func (s *crmStub) GetContact(ctx context.Context, email string) (*integration.Contact, error) {
	if c, ok := s.contacts[email]; ok {
		return &c, nil
	}
	return nil, nil
}

func (s *crmStub) CreateConversion(ctx context.Context, conversion integration.Conversion) error {
	return nil
}

func (s *crmStub) CreateEvent(ctx context.Context, event integration.Event) error {
	s.events = append(s.events, event)
	return nil
}

func (s *crmStub) UpdateContactTags(ctx context.Context, email string, tags []string) error {
	s.replacedTags = tags
	return nil
}

func (s *crmStub) AddContactTags(ctx context.Context, email string, tags []string) error {
	return nil
}

func (s *crmStub) ListDeals(ctx context.Context) ([]integration.Deal, error) {
	return s.deals, s.listErr
}

var _ integration.CRMGateway = (*crmStub)(nil)

type queueStub struct {
	jobs []queuedJob
	err  error
}

type queuedJob struct {
	jobType integration.JobType
	payload any
}

func (s *queueStub) Enqueue(ctx context.Context, jobType integration.JobType, payload any) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, queuedJob{jobType: jobType, payload: payload})
	return nil
}

var _ integration.JobQueue = (*queueStub)(nil)

type webhookManagerStub struct {
	subscriptions []integration.WebhookSubscription
	created       []string
	deleted       []string
	setupURL      string
	err           error
}

func (s *webhookManagerStub) ListWebhooks(ctx context.Context) ([]integration.WebhookSubscription, error) {
	return s.subscriptions, s.err
}

func (s *webhookManagerStub) CreateWebhook(ctx context.Context, entityType, eventType, callbackURL string) (*integration.WebhookSubscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, eventType)
	return &integration.WebhookSubscription{UUID: "wh-1", EntityType: entityType, EventType: eventType, URL: callbackURL}, nil
}

func (s *webhookManagerStub) DeleteWebhook(ctx context.Context, uuid string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, uuid)
	return nil
}

func (s *webhookManagerStub) SetupWebhooks(ctx context.Context, callbackURL string) error {
	if s.err != nil {
		return s.err
	}
	s.setupURL = callbackURL
	return nil
}

var _ WebhookManager = (*webhookManagerStub)(nil)
