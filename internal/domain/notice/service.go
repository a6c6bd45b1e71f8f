package notice

import (
	"time"

	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/store"
)

var Descriptor = store.Descriptor{Name: "notices", Path: "notices"}

type Service struct {
	*domain.Collection[Notice, *Notice]
}

func NewService(gw store.Gateway, opts ...store.Option) *Service {
	return &Service{domain.NewCollection[Notice](store.NewContainer(Descriptor, gw, opts...))}
}

// Board returns the loaded notices visible on day for audience. Notices for
// everyone are always included.
func (s *Service) Board(day time.Time, audience string) ([]Notice, error) {
	all, err := s.Items()
	if err != nil {
		return nil, err
	}
	var out []Notice
	for _, n := range all {
		if !n.VisibleOn(day) {
			continue
		}
		if n.Audience == "" || n.Audience == AudienceAll || n.Audience == audience {
			out = append(out, n)
		}
	}
	return out, nil
}
