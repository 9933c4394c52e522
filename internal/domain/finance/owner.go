package finance

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/shared"
)

// OwnerKind identifies which party owns a ledger document
type OwnerKind string

const (
	OwnerKindUser     OwnerKind = "USER"
	OwnerKindSeller   OwnerKind = "SELLER"
	OwnerKindPlatform OwnerKind = "PLATFORM"
)

// IsValid checks if the owner kind is valid
func (k OwnerKind) IsValid() bool {
	switch k {
	case OwnerKindUser, OwnerKindSeller, OwnerKindPlatform:
		return true
	}
	return false
}

// String returns the string representation of OwnerKind
func (k OwnerKind) String() string {
	return string(k)
}

// ParseOwnerKind parses an owner kind case-insensitively
func ParseOwnerKind(s string) (OwnerKind, error) {
	k := OwnerKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Unknown owner kind %q", s))
	}
	return k, nil
}

// Owner is the party a ledger document belongs to: User(id) | Seller(id) | Platform.
// Platform carries no id.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   uuid.UUID `json:"id,omitempty"`
}

// UserOwner returns an owner for a platform user
func UserOwner(id uuid.UUID) Owner {
	return Owner{Kind: OwnerKindUser, ID: id}
}

// SellerOwner returns an owner for a seller
func SellerOwner(id uuid.UUID) Owner {
	return Owner{Kind: OwnerKindSeller, ID: id}
}

// PlatformOwner returns the platform owner
func PlatformOwner() Owner {
	return Owner{Kind: OwnerKindPlatform}
}

// Validate checks that the id is set exactly when the kind requires one
func (o Owner) Validate() error {
	if !o.Kind.IsValid() {
		return shared.NewDomainError(shared.CodeValidation, "Owner kind is not valid")
	}
	if o.Kind == OwnerKindPlatform {
		if o.ID != uuid.Nil {
			return shared.NewDomainError(shared.CodeValidation, "Platform owner cannot carry an id")
		}
		return nil
	}
	if o.ID == uuid.Nil {
		return shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("%s owner id cannot be empty", o.Kind))
	}
	return nil
}

// IsUser reports whether the owner is a user
func (o Owner) IsUser() bool {
	return o.Kind == OwnerKindUser
}

// IsSeller reports whether the owner is a seller
func (o Owner) IsSeller() bool {
	return o.Kind == OwnerKindSeller
}

// IsPlatform reports whether the owner is the platform
func (o Owner) IsPlatform() bool {
	return o.Kind == OwnerKindPlatform
}

// UserID returns the user id when the owner is a user
func (o Owner) UserID() (uuid.UUID, bool) {
	if o.Kind != OwnerKindUser {
		return uuid.Nil, false
	}
	return o.ID, true
}

// NullableID returns the owner id, or nil for the platform
func (o Owner) NullableID() *uuid.UUID {
	if o.Kind == OwnerKindPlatform || o.ID == uuid.Nil {
		return nil
	}
	id := o.ID
	return &id
}

// String returns KIND:id, or PLATFORM
func (o Owner) String() string {
	if o.Kind == OwnerKindPlatform {
		return string(o.Kind)
	}
	return fmt.Sprintf("%s:%s", o.Kind, o.ID)
}
