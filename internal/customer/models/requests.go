package models

import (
	"regexp"
	"strings"
	"time"

	dErrors "onboarding/pkg/domain-errors"
)

// DateLayout is the wire format for dates of birth.
const DateLayout = "2006-01-02"

const (
	minNameLength = 2
	maxNameLength = 100
	maxFieldLen   = 255
	maxPhoneLen   = 20
	adultAge      = 18
)

var (
	namePattern = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	ssnPattern  = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
	zipPattern  = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

var usStates = map[string]struct{}{}

func init() {
	for _, s := range strings.Fields(`AL AK AZ AR CA CO CT DE FL GA HI ID IL IN IA KS KY LA ME MD
		MA MI MN MS MO MT NE NV NH NJ NM NY NC ND OH OK OR PA RI SC SD TN TX UT VT VA WA WV WI WY DC`) {
		usStates[s] = struct{}{}
	}
}

type RegistrationRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *RegistrationRequest) Normalize() {
	if r == nil {
		return
	}
	r.Email = NormalizeEmail(r.Email)
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

func (r *VerifyEmailRequest) Normalize() {
	if r == nil {
		return
	}
	r.Token = strings.TrimSpace(r.Token)
}

type ResendVerificationRequest struct {
	Email string `json:"email"`
}

func (r *ResendVerificationRequest) Normalize() {
	if r == nil {
		return
	}
	r.Email = NormalizeEmail(r.Email)
}

type AddressRequest struct {
	Street  string `json:"street"`
	Unit    string `json:"unit,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
}

func (a *AddressRequest) normalize() {
	a.Street = strings.TrimSpace(a.Street)
	a.Unit = strings.TrimSpace(a.Unit)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.ToUpper(strings.TrimSpace(a.State))
	a.ZipCode = strings.TrimSpace(a.ZipCode)
}

func (a *AddressRequest) validate() error {
	if len(a.Street) > maxFieldLen || len(a.Unit) > maxFieldLen || len(a.City) > maxFieldLen {
		return dErrors.New(dErrors.CodeValidation, "address fields must be 255 characters or less")
	}
	if a.Street == "" {
		return dErrors.New(dErrors.CodeValidation, "street is required")
	}
	if a.City == "" {
		return dErrors.New(dErrors.CodeValidation, "city is required")
	}
	if _, ok := usStates[a.State]; !ok {
		return dErrors.New(dErrors.CodeValidation, "state must be a valid US state code")
	}
	if !zipPattern.MatchString(a.ZipCode) {
		return dErrors.New(dErrors.CodeValidation, "zip code must be NNNNN or NNNNN-NNNN")
	}
	return nil
}

func (a *AddressRequest) ToAddress() Address {
	return Address{Street: a.Street, Unit: a.Unit, City: a.City, State: a.State, ZipCode: a.ZipCode}
}

// ProfileRequest is a full profile submission. SSN is plaintext here and
// must not be logged.
type ProfileRequest struct {
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	DateOfBirth string         `json:"date_of_birth"`
	SSN         string         `json:"ssn"`
	Address     AddressRequest `json:"address"`
	Phone       string         `json:"phone,omitempty"`
}

func (r *ProfileRequest) Normalize() {
	if r == nil {
		return
	}
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	r.SSN = strings.TrimSpace(r.SSN)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address.normalize()
}

// Validate checks the request against now. Order: Size -> Required -> Syntax -> Semantic.
func (r *ProfileRequest) Validate(now time.Time) error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Phone) > maxPhoneLen {
		return dErrors.New(dErrors.CodeValidation, "phone must be 20 characters or less")
	}
	if err := validateName("first name", r.FirstName); err != nil {
		return err
	}
	if err := validateName("last name", r.LastName); err != nil {
		return err
	}
	if r.DateOfBirth == "" {
		return dErrors.New(dErrors.CodeValidation, "date of birth is required")
	}
	if r.SSN == "" {
		return dErrors.New(dErrors.CodeValidation, "ssn is required")
	}
	if !ssnPattern.MatchString(r.SSN) {
		return dErrors.New(dErrors.CodeValidation, "ssn must be in format XXX-XX-XXXX")
	}
	if r.SSN == "000-00-0000" {
		return dErrors.New(dErrors.CodeValidation, "ssn is not valid")
	}
	dob, err := r.ParsedDateOfBirth()
	if err != nil {
		return err
	}
	if dob.After(now) {
		return dErrors.New(dErrors.CodeValidation, "date of birth cannot be in the future")
	}
	if !isAdult(dob, now) {
		return dErrors.New(dErrors.CodeValidation, "customer must be at least 18 years old")
	}
	return r.Address.validate()
}

// ParsedDateOfBirth parses DateOfBirth using DateLayout.
func (r *ProfileRequest) ParsedDateOfBirth() (time.Time, error) {
	dob, err := time.Parse(DateLayout, r.DateOfBirth)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "date of birth must be YYYY-MM-DD")
	}
	return dob, nil
}

// Fields converts a validated request into profile fields.
func (r *ProfileRequest) Fields() ProfileFields {
	dob, _ := r.ParsedDateOfBirth()
	return ProfileFields{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		DateOfBirth: dob,
		Address:     r.Address.ToAddress(),
		Phone:       r.Phone,
	}
}

// ProfileUpdateRequest changes contact details on an existing profile.
// Nil fields are left untouched.
type ProfileUpdateRequest struct {
	Address *AddressRequest `json:"address,omitempty"`
	Phone   *string         `json:"phone,omitempty"`
}

func (r *ProfileUpdateRequest) Normalize() {
	if r == nil {
		return
	}
	if r.Address != nil {
		r.Address.normalize()
	}
	if r.Phone != nil {
		p := strings.TrimSpace(*r.Phone)
		r.Phone = &p
	}
}

func (r *ProfileUpdateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Address == nil && r.Phone == nil {
		return dErrors.New(dErrors.CodeValidation, "address or phone is required")
	}
	if r.Phone != nil && len(*r.Phone) > maxPhoneLen {
		return dErrors.New(dErrors.CodeValidation, "phone must be 20 characters or less")
	}
	if r.Address != nil {
		return r.Address.validate()
	}
	return nil
}

func validateName(field, name string) error {
	if name == "" {
		return dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if n := len([]rune(name)); n < minNameLength || n > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, field+" must be between 2 and 100 characters")
	}
	if !namePattern.MatchString(name) {
		return dErrors.New(dErrors.CodeValidation, field+" contains invalid characters")
	}
	return nil
}

func isAdult(dob, now time.Time) bool {
	return !dob.AddDate(adultAge, 0, 0).After(now)
}
