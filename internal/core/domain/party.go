package domain

import "github.com/google/uuid"

// PartyID names a customer/party inside the platform.
type PartyID = uuid.UUID

// MappingSource records which strategy resolved a party.
type MappingSource string

const (
	MappingByEmail        MappingSource = "email"
	MappingByUsername     MappingSource = "username"
	MappingBySubject      MappingSource = "subject"
	MappingDeterministic  MappingSource = "deterministic"
	MappingCustomStrategy MappingSource = "custom"
)

const (
	PartyKindUnknown       = "UNKNOWN"
	PlaceholderProfileName = "Unknown"
)

// PartyMapping is the result of identity mapping. DirectoryBacked is false when
// the party id was derived without any directory record.
type PartyMapping struct {
	PartyID         PartyID       `json:"party_id"`
	Source          MappingSource `json:"source"`
	DirectoryBacked bool          `json:"directory_backed"`
}

// CustomerProfile holds party attributes. It is replaced wholesale on refresh.
type CustomerProfile struct {
	PartyID   PartyID `json:"party_id"`
	PartyKind string  `json:"party_kind"`
	FullName  string  `json:"full_name"`
	Email     string  `json:"email,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	TaxID     string  `json:"tax_id,omitempty"`
	IsActive  bool    `json:"is_active"`
}

// PlaceholderProfile is used when the customer directory cannot be reached.
func PlaceholderProfile(partyID PartyID) CustomerProfile {
	return CustomerProfile{
		PartyID:   partyID,
		PartyKind: PartyKindUnknown,
		FullName:  PlaceholderProfileName,
		IsActive:  false,
	}
}
