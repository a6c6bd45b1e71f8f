package asset

import (
	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/store"
)

var Descriptor = store.Descriptor{Name: "assets", Path: "assets"}

type Service struct {
	*domain.Collection[Asset, *Asset]
}

func NewService(gw store.Gateway, opts ...store.Option) *Service {
	return &Service{domain.NewCollection[Asset](store.NewContainer(Descriptor, gw, opts...))}
}

// ByStatus returns the loaded assets with the given status.
func (s *Service) ByStatus(status string) ([]Asset, error) {
	all, err := s.Items()
	if err != nil {
		return nil, err
	}
	var out []Asset
	for _, a := range all {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}
