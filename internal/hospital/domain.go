// internal/hospital/domain.go
package hospital

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"bloodbank/internal/apperr"
)

const minPasskeyLength = 8

var ErrHospitalNotFound = fmt.Errorf("%w: hospital", apperr.ErrNotFound)

// Hospital is a facility that collects and transfuses blood.
type Hospital struct {
	ID         uuid.UUID `json:"hospital_id" db:"hospital_id"`
	Name       string    `json:"name" db:"name"`
	Type       *string   `json:"type,omitempty" db:"type"`
	Phone      string    `json:"phone" db:"phone"`
	Email      *string   `json:"email,omitempty" db:"email"`
	Address    string    `json:"address" db:"address"`
	City       string    `json:"city" db:"city"`
	State      string    `json:"state" db:"state"`
	PostalCode string    `json:"postal_code" db:"postal_code"`
	Version    int       `json:"version" db:"version"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Credential is the stored form of a hospital passkey.
type Credential struct {
	HospitalID uuid.UUID `db:"hospital_id"`
	Hash       string    `db:"passkey_hash"`
	Salt       string    `db:"passkey_salt"`
}

type CreateRequest struct {
	Name       string  `json:"name"`
	Type       *string `json:"type,omitempty"`
	Phone      string  `json:"phone"`
	Email      *string `json:"email,omitempty"`
	Address    string  `json:"address"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Passkey    string  `json:"passkey"`
}

// UpdateRequest changes only the fields that are set.
type UpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Type       *string `json:"type,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Email      *string `json:"email,omitempty"`
	Address    *string `json:"address,omitempty"`
	City       *string `json:"city,omitempty"`
	State      *string `json:"state,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
	Passkey    *string `json:"passkey,omitempty"`
}

func (r CreateRequest) Validate() error {
	required := map[string]string{
		"name": r.Name, "phone": r.Phone, "address": r.Address,
		"city": r.City, "state": r.State, "postal_code": r.PostalCode,
	}
	for field, v := range required {
		if strings.TrimSpace(v) == "" {
			return apperr.Invalidf("%s is required", field)
		}
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	return validatePasskey(r.Passkey)
}

// Apply copies the set fields onto h after validating them.
func (r UpdateRequest) Apply(h *Hospital) error {
	set := func(dst *string, v *string, field string) error {
		if v == nil {
			return nil
		}
		if strings.TrimSpace(*v) == "" {
			return apperr.Invalidf("%s must not be empty", field)
		}
		*dst = strings.TrimSpace(*v)
		return nil
	}
	for _, f := range []struct {
		dst   *string
		v     *string
		field string
	}{
		{&h.Name, r.Name, "name"},
		{&h.Phone, r.Phone, "phone"},
		{&h.Address, r.Address, "address"},
		{&h.City, r.City, "city"},
		{&h.State, r.State, "state"},
		{&h.PostalCode, r.PostalCode, "postal_code"},
	} {
		if err := set(f.dst, f.v, f.field); err != nil {
			return err
		}
	}
	if r.Type != nil {
		h.Type = r.Type
	}
	if r.Email != nil {
		if err := validateEmail(r.Email); err != nil {
			return err
		}
		h.Email = r.Email
	}
	if r.Passkey != nil {
		return validatePasskey(*r.Passkey)
	}
	return nil
}

func validateEmail(email *string) error {
	if email == nil || *email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(*email); err != nil {
		return apperr.Invalidf("invalid email %q", *email)
	}
	return nil
}

func validatePasskey(passkey string) error {
	if len(passkey) < minPasskeyLength {
		return apperr.Invalidf("passkey must be at least %d characters", minPasskeyLength)
	}
	return nil
}

// HospitalRegisteredEvent is recorded when a hospital is created.
type HospitalRegisteredEvent struct {
	ID   uuid.UUID `json:"hospital_id"`
	Name string    `json:"name"`
	City string    `json:"city"`
}

// HospitalUpdatedEvent is recorded on every change, including passkey rotation.
type HospitalUpdatedEvent struct {
	ID             uuid.UUID `json:"hospital_id"`
	Name           string    `json:"name"`
	PasskeyRotated bool      `json:"passkey_rotated"`
}

type HospitalDeletedEvent struct {
	ID uuid.UUID `json:"hospital_id"`
}
