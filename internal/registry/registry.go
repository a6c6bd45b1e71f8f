// Package registry assembles every hospital collection over one gateway and
// registers their containers with a hub.
package registry

import (
	"fmt"
	"sort"

	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/domain/asset"
	"github.com/ehr/hms/internal/domain/bloodbank"
	"github.com/ehr/hms/internal/domain/certificate"
	"github.com/ehr/hms/internal/domain/healthpackage"
	"github.com/ehr/hms/internal/domain/notice"
	"github.com/ehr/hms/internal/domain/patient"
	"github.com/ehr/hms/internal/platform/store"
)

// Registry holds the typed services and their untyped bindings.
type Registry struct {
	Hub *store.Hub

	Assets         *asset.Service
	Donors         *bloodbank.Service
	HealthPackages *healthpackage.Service
	Notices        *notice.Service
	Births         *certificate.BirthService
	Deaths         *certificate.DeathService
	Patients       *patient.Service
	Mothers        *patient.MotherService

	bindings map[string]domain.Binding
}

func New(gw store.Gateway, opts ...store.Option) (*Registry, error) {
	r := &Registry{
		Hub:            store.NewHub(),
		Assets:         asset.NewService(gw, opts...),
		Donors:         bloodbank.NewService(gw, opts...),
		HealthPackages: healthpackage.NewService(gw, opts...),
		Notices:        notice.NewService(gw, opts...),
		Births:         certificate.NewBirthService(gw, opts...),
		Deaths:         certificate.NewDeathService(gw, opts...),
		Patients:       patient.NewService(gw, opts...),
		Mothers:        patient.NewMotherService(gw, opts...),
		bindings:       make(map[string]domain.Binding),
	}
	for _, b := range []domain.Binding{
		r.Assets, r.Donors, r.HealthPackages, r.Notices,
		r.Births, r.Deaths, r.Patients, r.Mothers,
	} {
		c := b.Container()
		if err := r.Hub.Register(c); err != nil {
			return nil, fmt.Errorf("register %s: %w", c.Name(), err)
		}
		r.bindings[c.Name()] = b
	}
	return r, nil
}

// Binding returns the collection registered under name.
func (r *Registry) Binding(name string) (domain.Binding, bool) {
	b, ok := r.bindings[name]
	return b, ok
}

// Names lists the collections alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
