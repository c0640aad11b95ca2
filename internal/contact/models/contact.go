package models

import "time"

// Contact is the aggregate root for a directory record.
//
// Invariants:
//   - ID is assigned by the store on create and immutable afterwards
//   - OwnerID is the tenant partition key; every read and write is scoped
//     by it
//   - LockVersion starts at 0 and increases by exactly 1 on every
//     successful update
//   - Emails and PhoneNumbers carry at most MaxPerType entries per type
type Contact struct {
	ID               int64        `json:"id"`
	OwnerID          string       `json:"owner_id"`
	ExternalID       string       `json:"external_id,omitempty"`
	UnifiedID        string       `json:"unified_id,omitempty"`
	SourceID         int64        `json:"source_id,omitempty"`
	Name             Name         `json:"name"`
	CompanyName      string       `json:"company_name,omitempty"`
	TitleInfo        TitleInfo    `json:"title_info"`
	Emails           []TypedValue `json:"emails,omitempty"`
	PhoneNumbers     []TypedValue `json:"phone_numbers,omitempty"`
	Addresses        []Address    `json:"addresses,omitempty"`
	Tags             []string     `json:"tags,omitempty"`
	Tier             int          `json:"tier,omitempty"`
	UnifiedTimestamp int64        `json:"unified_timestamp,omitempty"`
	LockVersion      int64        `json:"lock_version"`
	CreatedOn        time.Time    `json:"created_on"`
	UpdatedOn        time.Time    `json:"updated_on"`
}

// Name splits a contact's display name.
type Name struct {
	First string `json:"first_name,omitempty"`
	Last  string `json:"last_name,omitempty"`
}

// TitleInfo captures job position details.
type TitleInfo struct {
	Title      string `json:"title,omitempty"`
	Department string `json:"department,omitempty"`
	Level      string `json:"level,omitempty"`
}

// TypedValue is an email address or phone number classified by type.
type TypedValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Address is a postal address classified by type.
type Address struct {
	Street string `json:"street,omitempty"`
	City   string `json:"city,omitempty"`
	State  string `json:"state,omitempty"`
	Zip    string `json:"zip,omitempty"`
	Type   string `json:"type"`
}

// MaxPerType bounds emails and phone numbers per type.
const MaxPerType = 3

// MaxPhoneLength bounds the stored phone number column.
const MaxPhoneLength = 30

// MaxEmailLength bounds the stored email column.
const MaxEmailLength = 255

// ContactTypes is the allow-list for email and phone number types.
var ContactTypes = []string{"work", "home", "mobile", "other"}

// AddressTypes is the allow-list for address types.
var AddressTypes = []string{"work", "home", "other"}

// Clone returns a deep copy so in-memory stores never hand out aliased
// slices.
func (c *Contact) Clone() *Contact {
	cp := *c
	cp.Emails = append([]TypedValue(nil), c.Emails...)
	cp.PhoneNumbers = append([]TypedValue(nil), c.PhoneNumbers...)
	cp.Addresses = append([]Address(nil), c.Addresses...)
	cp.Tags = append([]string(nil), c.Tags...)
	return &cp
}
