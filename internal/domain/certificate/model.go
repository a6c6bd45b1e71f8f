package certificate

import (
	"time"

	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/gateway"
)

const dateLayout = "2006-01-02"

type Birth struct {
	ID                string  `json:"id,omitempty"`
	CertificateNumber string  `json:"certificateNumber,omitempty"`
	ChildName         string  `json:"childName"`
	Gender            string  `json:"gender"`
	DateOfBirth       string  `json:"dateOfBirth"`
	TimeOfBirth       string  `json:"timeOfBirth,omitempty"`
	PlaceOfBirth      string  `json:"placeOfBirth,omitempty"`
	WeightKg          float64 `json:"weightKg,omitempty"`
	MotherID          string  `json:"motherId"`
	MotherName        string  `json:"motherName,omitempty"`
	FatherName        string  `json:"fatherName,omitempty"`
	AttendingDoctor   string  `json:"attendingDoctor,omitempty"`
}

func (b *Birth) Validate() error {
	var c domain.Checker
	c.Required("childName", b.ChildName)
	c.Required("gender", b.Gender)
	c.Required("dateOfBirth", b.DateOfBirth)
	c.Required("motherId", b.MotherID)
	c.OneOf("gender", b.Gender, "male", "female", "other")
	checkDate(&c, "dateOfBirth", b.DateOfBirth)
	if b.TimeOfBirth != "" {
		_, err := time.Parse("15:04", b.TimeOfBirth)
		c.Check(err == nil, "timeOfBirth must be HH:MM, got %q", b.TimeOfBirth)
	}
	c.Check(b.WeightKg >= 0 && b.WeightKg < 10, "weightKg must be between 0 and 10")
	return c.Err()
}

func (b *Birth) Payload(files []gateway.File) (gateway.Payload, error) {
	if err := domain.OnlyFiles(files); err != nil {
		return nil, err
	}
	return domain.JSONBody(b)
}

type Death struct {
	ID                string `json:"id,omitempty"`
	CertificateNumber string `json:"certificateNumber,omitempty"`
	PatientID         string `json:"patientId"`
	DeceasedName      string `json:"deceasedName"`
	Age               int    `json:"age,omitempty"`
	Gender            string `json:"gender,omitempty"`
	DateOfDeath       string `json:"dateOfDeath"`
	TimeOfDeath       string `json:"timeOfDeath,omitempty"`
	PlaceOfDeath      string `json:"placeOfDeath,omitempty"`
	CauseOfDeath      string `json:"causeOfDeath"`
	CertifiedBy       string `json:"certifiedBy,omitempty"`
}

func (d *Death) Validate() error {
	var c domain.Checker
	c.Required("patientId", d.PatientID)
	c.Required("deceasedName", d.DeceasedName)
	c.Required("dateOfDeath", d.DateOfDeath)
	c.Required("causeOfDeath", d.CauseOfDeath)
	c.OneOf("gender", d.Gender, "male", "female", "other")
	checkDate(&c, "dateOfDeath", d.DateOfDeath)
	c.Check(d.Age >= 0, "age must not be negative")
	return c.Err()
}

func (d *Death) Payload(files []gateway.File) (gateway.Payload, error) {
	if err := domain.OnlyFiles(files); err != nil {
		return nil, err
	}
	return domain.JSONBody(d)
}

// checkDate accepts empty values; Required reports those.
func checkDate(c *domain.Checker, field, value string) {
	if value == "" {
		return
	}
	d, err := time.Parse(dateLayout, value)
	c.Check(err == nil, "%s must be YYYY-MM-DD, got %q", field, value)
	if err == nil {
		c.Check(!d.After(time.Now().UTC()), "%s must not be in the future", field)
	}
}
