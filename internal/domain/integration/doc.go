// Package integration contains the Integration bounded context.
// This context bridges the two remote systems the service keeps in sync:
// the ERP (partners, orders, products, sellers) and the CRM/marketing
// platform (contacts, conversions, deals, organizations).
//
// Key concepts:
//   - ERPGateway / CRMGateway: Port interfaces for the remote systems
//   - SyncLog: append-only audit record of every cross-system attempt
//   - JobQueue: work-submission port for slow mutating operations
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
