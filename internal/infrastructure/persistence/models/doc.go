// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: shared columns (BaseModel, AggregateModel, OwnerColumns)
//   - ledger.go: invoices, wallets and withdrawal requests with their child rows
//
// Repositories convert between models and domain aggregates with the
// FromDomain/ToDomain mappers defined next to each model.
package models
