package patient

import (
	"context"
	"net/url"
	"strings"

	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/store"
)

// SearchParam is the query parameter lookups filter on.
const SearchParam = "search"

var (
	Descriptor       = store.Descriptor{Name: "patients", Path: "patients"}
	MotherDescriptor = store.Descriptor{Name: "mothers", Path: "patients/mothers"}
)

type Service struct {
	*domain.Collection[Patient, *Patient]
}

func NewService(gw store.Gateway, opts ...store.Option) *Service {
	return &Service{domain.NewLookup[Patient](store.NewContainer(Descriptor, gw, opts...))}
}

// Search asks the backend for patients matching query. An empty query
// lists everyone.
func (s *Service) Search(ctx context.Context, query string) error {
	return s.List(ctx, searchFilter(query))
}

type MotherService struct {
	*domain.Collection[Mother, *Mother]
}

func NewMotherService(gw store.Gateway, opts ...store.Option) *MotherService {
	return &MotherService{domain.NewLookup[Mother](store.NewContainer(MotherDescriptor, gw, opts...))}
}

func (s *MotherService) Search(ctx context.Context, query string) error {
	return s.List(ctx, searchFilter(query))
}

func searchFilter(query string) url.Values {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	return url.Values{SearchParam: {query}}
}
