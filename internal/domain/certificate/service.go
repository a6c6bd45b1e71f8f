package certificate

import (
	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/store"
)

var (
	BirthDescriptor = store.Descriptor{Name: "birth-certificates", Path: "certificates/birth"}
	DeathDescriptor = store.Descriptor{Name: "death-certificates", Path: "certificates/death"}
)

type BirthService struct {
	*domain.Collection[Birth, *Birth]
}

func NewBirthService(gw store.Gateway, opts ...store.Option) *BirthService {
	return &BirthService{domain.NewCollection[Birth](store.NewContainer(BirthDescriptor, gw, opts...))}
}

// ForMother returns the loaded birth certificates that name motherID.
func (s *BirthService) ForMother(motherID string) ([]Birth, error) {
	all, err := s.Items()
	if err != nil {
		return nil, err
	}
	var out []Birth
	for _, b := range all {
		if b.MotherID == motherID {
			out = append(out, b)
		}
	}
	return out, nil
}

type DeathService struct {
	*domain.Collection[Death, *Death]
}

func NewDeathService(gw store.Gateway, opts ...store.Option) *DeathService {
	return &DeathService{domain.NewCollection[Death](store.NewContainer(DeathDescriptor, gw, opts...))}
}

// ForPatient returns the certificate issued for patientID, if loaded.
func (s *DeathService) ForPatient(patientID string) (*Death, error) {
	all, err := s.Items()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].PatientID == patientID {
			return &all[i], nil
		}
	}
	return nil, nil
}
