package sync

import (
	"context"
	"fmt"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// Resolver maps CRM-side identities onto ERP partner ids with
// find-or-create semantics.
type Resolver struct {
	erp integration.ERPGateway
}

// NewResolver creates a Resolver.
func NewResolver(erp integration.ERPGateway) *Resolver {
	return &Resolver{erp: erp}
}

// ResolvePartnerID returns the id of the ERP partner matching the
// candidate's email, creating the partner when no match exists. Lookup
// and creation failures propagate to the caller.
func (r *Resolver) ResolvePartnerID(ctx context.Context, candidate integration.CreatePartner) (int64, error) {
	if candidate.Email == "" {
		return 0, fmt.Errorf("resolving partner: email is required: %w", integration.ErrValidation)
	}

	existing, err := r.erp.FindPartnerByEmail(ctx, candidate.Email)
	if err != nil {
		return 0, fmt.Errorf("looking up partner by email: %w", err)
	}
	if existing != nil {
		return existing.ID, nil
	}

	if candidate.Name == "" {
		candidate.Name = candidate.Email
	}
	if candidate.PersonType == "" {
		candidate.PersonType = integration.DetectPersonType(candidate.TaxID)
	}

	id, err := r.erp.CreatePartner(ctx, candidate)
	if err != nil {
		return 0, fmt.Errorf("creating partner: %w", err)
	}
	return id, nil
}
