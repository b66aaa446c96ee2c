// Package models provides the canonical data model shared across Hearth.
// Every connector standardizes its source-specific payload into a
// PropertyRecord before the record enters deduplication or storage.
package models

import (
	"fmt"
	"strings"

	"github.com/hearthdata/hearth/pkg/errors"
)

// Address holds the structured address components of a property.
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// String renders the address in "street, city, state zip" form.
func (a Address) String() string {
	parts := make([]string, 0, 3)
	if a.Street != "" {
		parts = append(parts, a.Street)
	}
	if a.City != "" {
		parts = append(parts, a.City)
	}
	tail := strings.TrimSpace(a.State + " " + a.Zip)
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, ", ")
}

// IsEmpty reports whether no component of the address is set.
func (a Address) IsEmpty() bool {
	return a.Street == "" && a.City == "" && a.State == "" && a.Zip == ""
}

// PropertyRecord is the standardized shape a connector produces for one
// listing. Metadata carries the untouched original payload for downstream
// consumers that need source-specific fields.
type PropertyRecord struct {
	ExternalID string                 `json:"external_id"`
	Source     string                 `json:"source"`
	Address    Address                `json:"address"`
	Price      float64                `json:"price"`
	Bedrooms   int                    `json:"bedrooms"`
	Bathrooms  float64                `json:"bathrooms"`
	SquareFeet int                    `json:"square_feet"`
	Status     string                 `json:"status"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Validate enforces the invariants required before a record may enter
// deduplication: a non-empty external ID and a non-empty address. Records
// failing validation are dropped by callers, not retried.
func (r *PropertyRecord) Validate() error {
	if r == nil {
		return errors.New(errors.ErrorTypeValidation, "record is nil")
	}
	if strings.TrimSpace(r.ExternalID) == "" {
		return errors.New(errors.ErrorTypeValidation, "record is missing external_id")
	}
	if r.Address.IsEmpty() {
		return errors.New(errors.ErrorTypeValidation,
			fmt.Sprintf("record %s is missing address", r.ExternalID))
	}
	return nil
}

// Field returns the value of a named top-level field, used by key-based
// deduplication. The second return is false for unknown field names.
func (r *PropertyRecord) Field(name string) (interface{}, bool) {
	switch name {
	case "external_id":
		return r.ExternalID, true
	case "source":
		return r.Source, true
	case "street":
		return r.Address.Street, true
	case "city":
		return r.Address.City, true
	case "state":
		return r.Address.State, true
	case "zip":
		return r.Address.Zip, true
	case "price":
		return r.Price, true
	case "bedrooms":
		return r.Bedrooms, true
	case "bathrooms":
		return r.Bathrooms, true
	case "square_feet":
		return r.SquareFeet, true
	case "status":
		return r.Status, true
	default:
		return nil, false
	}
}
