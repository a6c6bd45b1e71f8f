package bloodbank

import (
	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/gateway"
)

// Donor is a registered blood donor.
type Donor struct {
	ID               string `json:"id,omitempty"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	BloodGroup       string `json:"bloodGroup"`
	Gender           string `json:"gender,omitempty"`
	Age              int    `json:"age,omitempty"`
	Phone            string `json:"phone"`
	Email            string `json:"email,omitempty"`
	Address          string `json:"address,omitempty"`
	LastDonationDate string `json:"lastDonationDate,omitempty"`
	UnitsDonated     int    `json:"unitsDonated,omitempty"`
}

var BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

const (
	minDonorAge = 18
	maxDonorAge = 65
)

func (d *Donor) Validate() error {
	var c domain.Checker
	c.Required("firstName", d.FirstName)
	c.Required("lastName", d.LastName)
	c.Required("bloodGroup", d.BloodGroup)
	c.Required("phone", d.Phone)
	c.OneOf("bloodGroup", d.BloodGroup, BloodGroups...)
	c.OneOf("gender", d.Gender, "male", "female", "other")
	if d.Age != 0 {
		c.Check(d.Age >= minDonorAge && d.Age <= maxDonorAge,
			"age must be between %d and %d, got %d", minDonorAge, maxDonorAge, d.Age)
	}
	c.Check(d.UnitsDonated >= 0, "unitsDonated must not be negative")
	return c.Err()
}

func (d *Donor) Payload(files []gateway.File) (gateway.Payload, error) {
	if err := domain.OnlyFiles(files); err != nil {
		return nil, err
	}
	return domain.JSONBody(d)
}

// canReceive maps a recipient group to the donor groups whose red cells it
// accepts.
var canReceive = map[string][]string{
	"O-":  {"O-"},
	"O+":  {"O-", "O+"},
	"A-":  {"O-", "A-"},
	"A+":  {"O-", "O+", "A-", "A+"},
	"B-":  {"O-", "B-"},
	"B+":  {"O-", "O+", "B-", "B+"},
	"AB-": {"O-", "A-", "B-", "AB-"},
	"AB+": {"O-", "O+", "A-", "A+", "B-", "B+", "AB-", "AB+"},
}

// CompatibleWith reports whether a recipient of group recipient can take red
// cells from this donor.
func (d Donor) CompatibleWith(recipient string) bool {
	for _, g := range canReceive[recipient] {
		if g == d.BloodGroup {
			return true
		}
	}
	return false
}
