package types

import "strings"

// Address is the shipping address snapshot frozen onto an order. Stored as
// jsonb; the engine never geocodes or normalizes it beyond trimming.
type Address struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// Normalize trims whitespace on every field.
func (a Address) Normalize() Address {
	return Address{
		Name:    strings.TrimSpace(a.Name),
		Email:   strings.TrimSpace(a.Email),
		Phone:   strings.TrimSpace(a.Phone),
		Street:  strings.TrimSpace(a.Street),
		City:    strings.TrimSpace(a.City),
		State:   strings.TrimSpace(a.State),
		ZipCode: strings.TrimSpace(a.ZipCode),
		Country: strings.TrimSpace(a.Country),
	}
}

// IsComplete reports whether every required field is present.
func (a Address) IsComplete() bool {
	n := a.Normalize()
	return n.Name != "" && n.Email != "" && n.Street != "" &&
		n.City != "" && n.State != "" && n.ZipCode != "" && n.Country != ""
}
