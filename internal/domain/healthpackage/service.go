package healthpackage

import (
	"sort"

	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/store"
)

var Descriptor = store.Descriptor{Name: "health-packages", Path: "health-packages"}

type Service struct {
	*domain.Collection[HealthPackage, *HealthPackage]
}

func NewService(gw store.Gateway, opts ...store.Option) *Service {
	return &Service{domain.NewCollection[HealthPackage](store.NewContainer(Descriptor, gw, opts...))}
}

// Catalog returns the active packages, cheapest first.
func (s *Service) Catalog() ([]HealthPackage, error) {
	all, err := s.Items()
	if err != nil {
		return nil, err
	}
	var out []HealthPackage
	for _, h := range all {
		if h.Active {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectivePrice() < out[j].EffectivePrice()
	})
	return out, nil
}
