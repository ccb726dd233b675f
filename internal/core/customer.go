package core

import (
	"fmt"
	"net/mail"
	"strings"
)

// CustomerInfo is the buyer's contact and delivery details.
type CustomerInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Barangay  string `json:"barangay,omitempty"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
}

// Normalize trims every field and defaults the country.
func (c *CustomerInfo) Normalize() {
	for _, f := range []*string{&c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address,
		&c.City, &c.State, &c.Barangay, &c.ZipCode, &c.Country} {
		*f = strings.TrimSpace(*f)
	}
	c.Email = strings.ToLower(c.Email)
	if c.Country == "" {
		c.Country = "Philippines"
	}
}

// HasAddress reports whether enough of the address is present to quote shipping and deliver.
func (c CustomerInfo) HasAddress() bool {
	return c.Address != "" && c.City != "" && c.State != ""
}

// Validate checks the fields required before an order can be submitted.
func (c CustomerInfo) Validate() error {
	required := []struct {
		name, value string
	}{
		{"first name", c.FirstName},
		{"last name", c.LastName},
		{"email", c.Email},
		{"phone", c.Phone},
		{"address", c.Address},
		{"city", c.City},
		{"state/province", c.State},
		{"zip code", c.ZipCode},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, field.name)
		}
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return fmt.Errorf("%w: invalid email %q", ErrValidation, c.Email)
	}
	return nil
}

// FullName joins first and last name.
func (c CustomerInfo) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// FormattedAddress renders the single-line delivery address stored on the order.
func (c CustomerInfo) FormattedAddress() string {
	parts := make([]string, 0, 6)
	for _, p := range []string{c.Address, c.Barangay, c.City, c.State, c.ZipCode, c.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
