package integration

import (
	"context"
	"time"
)

// ERPGateway is the port for the ERP's RPC-style integration endpoint.
// Lookup operations return a nil record (not an error) when the remote
// answers 404 or an empty result set.
type ERPGateway interface {
	// ListSuppliers returns all supplier-flagged partners.
	ListSuppliers(ctx context.Context) ([]Partner, error)

	// FindPartnerByEmail returns the partner matching the email, or nil.
	FindPartnerByEmail(ctx context.Context, email string) (*Partner, error)

	// FindPartnerByID returns the partner with the given id, or nil.
	FindPartnerByID(ctx context.Context, id int64) (*Partner, error)

	// ListCompanies returns the ERP legal entities.
	ListCompanies(ctx context.Context) ([]Company, error)

	// ListProducts returns catalog products, optionally only active ones.
	ListProducts(ctx context.Context, activeOnly bool) ([]Product, error)

	// ListOrders returns sales orders negotiated at or after since.
	ListOrders(ctx context.Context, since time.Time) ([]Order, error)

	// ListSellers returns the salesperson records.
	ListSellers(ctx context.Context) ([]Seller, error)

	// CreatePartner creates a partner row and returns its new numeric id.
	CreatePartner(ctx context.Context, partner CreatePartner) (int64, error)

	// CreateOrder creates an order header plus one row per line and
	// returns the generated order number.
	CreateOrder(ctx context.Context, order CreateOrder) (int64, error)
}

// CRMGateway is the port for the CRM/marketing platform REST API.
type CRMGateway interface {
	// UpsertContact creates or updates the contact identified by email.
	UpsertContact(ctx context.Context, email string, contact ContactUpsert) error

	// GetContact returns the contact, or nil when the CRM answers 404.
	GetContact(ctx context.Context, email string) (*Contact, error)

	// CreateConversion records a conversion event for a contact.
	CreateConversion(ctx context.Context, conversion Conversion) error

	// CreateEvent records a generic platform event.
	CreateEvent(ctx context.Context, event Event) error

	// UpdateContactTags replaces the contact's tag list.
	UpdateContactTags(ctx context.Context, email string, tags []string) error

	// AddContactTags merges tags into the contact's existing tag list.
	AddContactTags(ctx context.Context, email string, tags []string) error

	// ListDeals returns the CRM's sales deals.
	ListDeals(ctx context.Context) ([]Deal, error)
}
