package healthpackage

import (
	"fmt"

	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/gateway"
)

// Multipart part names the backend expects.
const (
	DTOPart  = "healthPackage"
	IconPart = "icon"
)

// HealthPackage is a bundle of tests sold at a fixed price.
type HealthPackage struct {
	ID            string   `json:"id,omitempty"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Price         float64  `json:"price"`
	DiscountPrice float64  `json:"discountPrice,omitempty"`
	Tests         []string `json:"tests,omitempty"`
	Active        bool     `json:"active"`
	IconURL       string   `json:"iconUrl,omitempty"`
}

func (h *HealthPackage) Validate() error {
	var c domain.Checker
	c.Required("name", h.Name)
	c.Check(h.Price > 0, "price must be positive")
	c.Check(h.DiscountPrice >= 0 && h.DiscountPrice <= h.Price,
		"discountPrice must be between 0 and price")
	for i, t := range h.Tests {
		c.Required(fmt.Sprintf("tests[%d]", i), t)
	}
	return c.Err()
}

// Payload always sends multipart: the model as the healthPackage JSON part
// plus an optional icon file. The backend assigns IconURL.
func (h *HealthPackage) Payload(files []gateway.File) (gateway.Payload, error) {
	if err := domain.OnlyFiles(files, IconPart); err != nil {
		return nil, err
	}
	dto := *h
	dto.IconURL = ""
	return domain.MultipartBody(DTOPart, &dto, files)
}

// EffectivePrice is what a patient pays.
func (h HealthPackage) EffectivePrice() float64 {
	if h.DiscountPrice > 0 {
		return h.DiscountPrice
	}
	return h.Price
}
