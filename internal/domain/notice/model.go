package notice

import (
	"time"

	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/gateway"
)

const (
	DTOPart        = "notice"
	AttachmentPart = "attachment"

	dateLayout = "2006-01-02"
)

// Audiences a notice can target.
const (
	AudienceAll      = "all"
	AudienceStaff    = "staff"
	AudiencePatients = "patients"
)

// Notice is a dated announcement on the hospital notice board.
type Notice struct {
	ID            string `json:"id,omitempty"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Audience      string `json:"audience,omitempty"`
	PublishDate   string `json:"publishDate"`
	ExpiryDate    string `json:"expiryDate,omitempty"`
	AttachmentURL string `json:"attachmentUrl,omitempty"`
}

func (n *Notice) Validate() error {
	var c domain.Checker
	c.Required("title", n.Title)
	c.Required("description", n.Description)
	c.Required("publishDate", n.PublishDate)
	c.OneOf("audience", n.Audience, AudienceAll, AudienceStaff, AudiencePatients)

	publish, perr := parseDate(n.PublishDate)
	c.Check(n.PublishDate == "" || perr == nil, "publishDate must be YYYY-MM-DD, got %q", n.PublishDate)
	if n.ExpiryDate != "" {
		expiry, eerr := parseDate(n.ExpiryDate)
		c.Check(eerr == nil, "expiryDate must be YYYY-MM-DD, got %q", n.ExpiryDate)
		if perr == nil && eerr == nil {
			c.Check(!expiry.Before(publish), "expiryDate must not precede publishDate")
		}
	}
	return c.Err()
}

func (n *Notice) Payload(files []gateway.File) (gateway.Payload, error) {
	if err := domain.OnlyFiles(files, AttachmentPart); err != nil {
		return nil, err
	}
	dto := *n
	dto.AttachmentURL = ""
	if dto.Audience == "" {
		dto.Audience = AudienceAll
	}
	return domain.MultipartBody(DTOPart, &dto, files)
}

// VisibleOn reports whether the notice is on the board at day. Notices with
// unparsable dates are never visible.
func (n Notice) VisibleOn(day time.Time) bool {
	publish, err := parseDate(n.PublishDate)
	if err != nil {
		return false
	}
	day = day.UTC().Truncate(24 * time.Hour)
	if day.Before(publish) {
		return false
	}
	if n.ExpiryDate == "" {
		return true
	}
	expiry, err := parseDate(n.ExpiryDate)
	return err == nil && !day.After(expiry)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}
