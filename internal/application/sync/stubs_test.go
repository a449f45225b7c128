package sync

import (
	"context"
	"sync"
	"time"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// erpStub is a scripted in-memory ERP gateway.
type erpStub struct {
	suppliers []integration.Partner
	partners  map[int64]integration.Partner
	byEmail   map[string]integration.Partner
	orders    []integration.Order
	products  []integration.Product

	listErr   error
	lookupErr error
	createErr error

	nextPartnerID   int64
	nextOrderID     int64
	createdPartners []integration.CreatePartner
	createdOrders   []integration.CreateOrder
}

func newERPStub() *erpStub {
	return &erpStub{
		partners:      map[int64]integration.Partner{},
		byEmail:       map[string]integration.Partner{},
		nextPartnerID: 100,
		nextOrderID:   9000,
	}
}

func (s *erpStub) ListSuppliers(ctx context.Context) ([]integration.Partner, error) {
	return s.suppliers, s.listErr
}

func (s *erpStub) FindPartnerByEmail(ctx context.Context, email string) (*integration.Partner, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	if p, ok := s.byEmail[email]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *erpStub) FindPartnerByID(ctx context.Context, id int64) (*integration.Partner, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	if p, ok := s.partners[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *erpStub) ListCompanies(ctx context.Context) ([]integration.Company, error) {
	return nil, s.listErr
}

func (s *erpStub) ListProducts(ctx context.Context, activeOnly bool) ([]integration.Product, error) {
	return s.products, s.listErr
}

func (s *erpStub) ListOrders(ctx context.Context, since time.Time) ([]integration.Order, error) {
	return s.orders, s.listErr
}

func (s *erpStub) ListSellers(ctx context.Context) ([]integration.Seller, error) {
	return nil, s.listErr
}

func (s *erpStub) CreatePartner(ctx context.Context, partner integration.CreatePartner) (int64, error) {
	if s.createErr != nil {
		return 0, s.createErr
	}
	s.createdPartners = append(s.createdPartners, partner)
	s.nextPartnerID++
	return s.nextPartnerID, nil
}

func (s *erpStub) CreateOrder(ctx context.Context, order integration.CreateOrder) (int64, error) {
	if s.createErr != nil {
		return 0, s.createErr
	}
	s.createdOrders = append(s.createdOrders, order)
	s.nextOrderID++
	return s.nextOrderID, nil
}

var _ integration.ERPGateway = (*erpStub)(nil)

// crmStub records outbound CRM calls.
type crmStub struct {
	upserts     map[string]integration.ContactUpsert
	conversions []integration.Conversion
	taggedWith  map[string][]string
	events      []integration.Event
	contacts    map[string]integration.Contact

	upsertErr     error
	conversionErr error
	tagErr        error
}

func newCRMStub() *crmStub {
	return &crmStub{
		upserts:    map[string]integration.ContactUpsert{},
		taggedWith: map[string][]string{},
		contacts:   map[string]integration.Contact{},
	}
}

func (s *crmStub) UpsertContact(ctx context.Context, email string, contact integration.ContactUpsert) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts[email] = contact
	return nil
}

func (s *crmStub) GetContact(ctx context.Context, email string) (*integration.Contact, error) {
	if c, ok := s.contacts[email]; ok {
		return &c, nil
	}
	return nil, nil
}

func (s *crmStub) CreateConversion(ctx context.Context, conversion integration.Conversion) error {
	if s.conversionErr != nil {
		return s.conversionErr
	}
	s.conversions = append(s.conversions, conversion)
	return nil
}

func (s *crmStub) CreateEvent(ctx context.Context, event integration.Event) error {
	s.events = append(s.events, event)
	return nil
}

func (s *crmStub) UpdateContactTags(ctx context.Context, email string, tags []string) error {
	if s.tagErr != nil {
		return s.tagErr
	}
	s.taggedWith[email] = tags
	return nil
}

func (s *crmStub) AddContactTags(ctx context.Context, email string, tags []string) error {
	if s.tagErr != nil {
		return s.tagErr
	}
	s.taggedWith[email] = append(s.taggedWith[email], tags...)
	return nil
}

func (s *crmStub) ListDeals(ctx context.Context) ([]integration.Deal, error) {
	return nil, nil
}

var _ integration.CRMGateway = (*crmStub)(nil)

// logStub collects audit entries in memory.
type logStub struct {
	mu      sync.Mutex
	entries []integration.SyncLog

	appendErr error
}

func (s *logStub) Append(ctx context.Context, entry *integration.SyncLog) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *logStub) List(ctx context.Context, filter integration.SyncLogFilter) ([]integration.SyncLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []integration.SyncLog
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if filter.EntityType != "" && entry.EntityType != filter.EntityType {
			continue
		}
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *logStub) CountByStatus(ctx context.Context) (map[integration.SyncStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[integration.SyncStatus]int64{}
	for _, entry := range s.entries {
		counts[entry.Status]++
	}
	return counts, nil
}

func (s *logStub) byEntity(entityType string) []integration.SyncLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []integration.SyncLog
	for _, entry := range s.entries {
		if entry.EntityType == entityType {
			out = append(out, entry)
		}
	}
	return out
}

var _ integration.SyncLogRepository = (*logStub)(nil)
