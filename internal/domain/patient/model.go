package patient

import (
	"strings"

	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/gateway"
)

// Patient is the lookup view of a registered patient, used to pick the
// subject of a certificate or booking.
type Patient struct {
	ID          string `json:"id,omitempty"`
	MRN         string `json:"mrn,omitempty"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Gender      string `json:"gender,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// FullName joins the non-empty name parts.
func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Validate accepts anything; lookups are never submitted.
func (p *Patient) Validate() error { return nil }

func (p *Patient) Payload([]gateway.File) (gateway.Payload, error) {
	return nil, domain.ErrReadOnly
}

// Mother is a patient registered on the maternity ward.
type Mother struct {
	Patient
	Husband       string `json:"husbandName,omitempty"`
	BloodGroup    string `json:"bloodGroup,omitempty"`
	AdmissionDate string `json:"admissionDate,omitempty"`
}
