// Package acl provides the Anti-Corruption Layer (ACL) between the ledger and the
// bounded contexts it only reads from: the catalog (which seller sells a product),
// seller profiles (per-seller share overrides), sales reporting (seller revenue) and
// site settings (revenue split and payment gateway settings).
//
// The ledger never imports those contexts' models. Each port below returns a small
// local view, and infrastructure adapters translate from the owning context's
// storage.
//
//	ProductSellerLookup      -> catalog
//	SellerProfileLookup      -> seller profiles
//	SellerRevenueQuery       -> sales reporting
//	FinancialSettingsQuery   -> site settings
//	PaymentSettingsQuery     -> site settings
//
// A nil result with a nil error means "not configured" and is not a failure on
// its own; callers decide whether absence is fatal.
package acl
