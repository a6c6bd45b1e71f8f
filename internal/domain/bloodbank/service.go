package bloodbank

import (
	"context"
	"net/url"

	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/store"
)

var Descriptor = store.Descriptor{Name: "donors", Path: "blood-bank/donors"}

type Service struct {
	*domain.Collection[Donor, *Donor]
}

func NewService(gw store.Gateway, opts ...store.Option) *Service {
	return &Service{domain.NewCollection[Donor](store.NewContainer(Descriptor, gw, opts...))}
}

// ListByGroup asks the backend for donors of one blood group.
func (s *Service) ListByGroup(ctx context.Context, group string) error {
	return s.List(ctx, url.Values{"bloodGroup": {group}})
}

// DonorsFor returns the loaded donors whose blood a recipient of the given
// group can receive, in collection order.
func (s *Service) DonorsFor(recipient string) ([]Donor, error) {
	all, err := s.Items()
	if err != nil {
		return nil, err
	}
	var out []Donor
	for _, d := range all {
		if d.CompatibleWith(recipient) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Stock counts loaded donors per blood group.
func (s *Service) Stock() (map[string]int, error) {
	all, err := s.Items()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(BloodGroups))
	for _, g := range BloodGroups {
		out[g] = 0
	}
	for _, d := range all {
		out[d.BloodGroup]++
	}
	return out, nil
}
