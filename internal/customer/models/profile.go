package models

import (
	"time"

	id "onboarding/pkg/domain"
)

// Address is a US postal address value object.
type Address struct {
	Street  string `json:"street"`
	Unit    string `json:"unit,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
}

// Profile holds regulated personal data. It is keyed by customer ID and is
// independent of the Customer aggregate.
//
// Invariants:
//   - SSNEncrypted is a field cipher blob; plaintext SSN is never stored
//   - SSNLastFour equals the last four characters of the encrypted SSN
type Profile struct {
	CustomerID   id.CustomerID
	FirstName    string
	LastName     string
	DateOfBirth  time.Time
	SSNEncrypted []byte
	SSNLastFour  string
	Address      Address
	Phone        string
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// ProfileFields are the validated inputs for a full profile write.
type ProfileFields struct {
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	Address     Address
	Phone       string
}

// NewProfile builds a profile for first submission.
func NewProfile(customerID id.CustomerID, fields ProfileFields, ssnEncrypted []byte, ssnLastFour string, now time.Time) *Profile {
	return &Profile{
		CustomerID:   customerID,
		FirstName:    fields.FirstName,
		LastName:     fields.LastName,
		DateOfBirth:  fields.DateOfBirth,
		SSNEncrypted: ssnEncrypted,
		SSNLastFour:  ssnLastFour,
		Address:      fields.Address,
		Phone:        fields.Phone,
		CreatedAt:    now,
	}
}

// Replace overwrites every submitted field in place and stamps UpdatedAt.
func (p *Profile) Replace(fields ProfileFields, ssnEncrypted []byte, ssnLastFour string, now time.Time) {
	p.FirstName = fields.FirstName
	p.LastName = fields.LastName
	p.DateOfBirth = fields.DateOfBirth
	p.SSNEncrypted = ssnEncrypted
	p.SSNLastFour = ssnLastFour
	p.Address = fields.Address
	p.Phone = fields.Phone
	p.UpdatedAt = &now
}

func (p *Profile) UpdateAddress(address Address, now time.Time) {
	p.Address = address
	p.UpdatedAt = &now
}

func (p *Profile) UpdatePhone(phone string, now time.Time) {
	p.Phone = phone
	p.UpdatedAt = &now
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.SSNEncrypted = append([]byte(nil), p.SSNEncrypted...)
	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}

// LastFour returns the trailing four characters of an SSN.
func LastFour(ssn string) string {
	if len(ssn) <= 4 {
		return ssn
	}
	return ssn[len(ssn)-4:]
}

// MaskSSN renders an SSN for audit records without revealing more than the last four.
func MaskSSN(ssn string) string {
	if ssn == "" {
		return ""
	}
	return "***-**-" + LastFour(ssn)
}
