package asset

import (
	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/gateway"
)

// Asset is a piece of hospital equipment tracked by the inventory screens.
type Asset struct {
	ID           string  `json:"id,omitempty"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	SerialNumber string  `json:"serialNumber,omitempty"`
	Location     string  `json:"location,omitempty"`
	Status       string  `json:"status,omitempty"`
	PurchaseDate string  `json:"purchaseDate,omitempty"`
	Cost         float64 `json:"cost,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

const (
	StatusAvailable   = "available"
	StatusInUse       = "in-use"
	StatusMaintenance = "maintenance"
	StatusRetired     = "retired"
)

func (a *Asset) Validate() error {
	var c domain.Checker
	c.Required("name", a.Name)
	c.Required("category", a.Category)
	c.OneOf("status", a.Status, StatusAvailable, StatusInUse, StatusMaintenance, StatusRetired)
	c.Check(a.Cost >= 0, "cost must not be negative")
	return c.Err()
}

func (a *Asset) Payload(files []gateway.File) (gateway.Payload, error) {
	if err := domain.OnlyFiles(files); err != nil {
		return nil, err
	}
	if a.Status == "" {
		a.Status = StatusAvailable
	}
	return domain.JSONBody(a)
}
