// Package sandbox runs a synthetic hospital administration backend for demos
// and local development. It produces reproducible data for every collection
// the console manages and serves it with the same envelope quirks as the
// real backend.
package sandbox

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/ehr/hms/pkg/resource"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume of generated data.
type SeedConfig struct {
	Assets         int   `json:"assets"`
	Donors         int   `json:"donors"`
	HealthPackages int   `json:"healthPackages"`
	Notices        int   `json:"notices"`
	Patients       int   `json:"patients"`
	Mothers        int   `json:"mothers"`
	Births         int   `json:"births"`
	Deaths         int   `json:"deaths"`
	Seed           int64 `json:"seed"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Assets:         25,
		Donors:         40,
		HealthPackages: 6,
		Notices:        8,
		Patients:       50,
		Mothers:        10,
		Births:         8,
		Deaths:         4,
		Seed:           42,
	}
}

// Collection paths, relative to the backend root.
const (
	PathAssets         = "assets"
	PathDonors         = "blood-bank/donors"
	PathHealthPackages = "health-packages"
	PathNotices        = "notices"
	PathPatients       = "patients"
	PathMothers        = "patients/mothers"
	PathBirths         = "certificates/birth"
	PathDeaths         = "certificates/death"
)

// Paths lists every collection the sandbox serves.
var Paths = []string{
	PathAssets, PathDonors, PathHealthPackages, PathNotices,
	PathPatients, PathMothers, PathBirths, PathDeaths,
}

// ---------------------------------------------------------------------------
// Pools
// ---------------------------------------------------------------------------

var (
	firstNamesMale = []string{
		"James", "Robert", "John", "Michael", "David", "William", "Richard",
		"Joseph", "Thomas", "Daniel", "Matthew", "Anthony", "Arjun", "Ravi",
	}
	firstNamesFemale = []string{
		"Mary", "Patricia", "Jennifer", "Linda", "Elizabeth", "Susan",
		"Sarah", "Karen", "Emily", "Priya", "Anita", "Maria", "Fatima",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Garcia", "Miller",
		"Davis", "Rodriguez", "Khan", "Patel", "Sharma", "Nguyen", "Lee",
	}

	assetKinds = []struct{ name, category string }{
		{"Ventilator", "icu"}, {"Patient Monitor", "icu"}, {"Infusion Pump", "ward"},
		{"Defibrillator", "emergency"}, {"X-Ray Unit", "radiology"},
		{"Ultrasound Scanner", "radiology"}, {"Hospital Bed", "ward"},
		{"Wheelchair", "ward"}, {"Autoclave", "theatre"}, {"Anaesthesia Machine", "theatre"},
	}
	assetStatuses = []string{"available", "available", "available", "in-use", "maintenance", "retired"}
	locations     = []string{"ICU", "Ward A", "Ward B", "Emergency", "Radiology", "Theatre 1", "Store"}

	bloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

	packages = []struct {
		name  string
		tests []string
		price float64
	}{
		{"Basic Health Check", []string{"CBC", "Blood Sugar", "Urine Routine"}, 1500},
		{"Cardiac Care", []string{"ECG", "Lipid Profile", "2D Echo"}, 4500},
		{"Diabetes Screening", []string{"HbA1c", "Fasting Sugar", "PP Sugar"}, 1200},
		{"Women's Wellness", []string{"Pap Smear", "Thyroid Profile", "CBC"}, 3200},
		{"Senior Citizen", []string{"CBC", "Kidney Function", "Liver Function", "ECG"}, 3800},
		{"Executive Full Body", []string{"CBC", "Lipid Profile", "Thyroid Profile", "Vitamin D"}, 6500},
	}

	noticeTitles = []string{
		"OPD timings revised", "Blood donation camp", "Fire drill on Friday",
		"New MRI wing opens", "Visitor policy update", "Staff vaccination drive",
		"Parking lot maintenance", "Holiday schedule",
	}
	audiences = []string{"all", "staff", "patients"}

	causesOfDeath = []string{
		"Cardiac arrest", "Respiratory failure", "Septic shock", "Stroke", "Multi-organ failure",
	}
	doctors = []string{"Dr. Mehta", "Dr. Okafor", "Dr. Chen", "Dr. Alvarez", "Dr. Rossi"}
)

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic synthetic entities.
type DataGenerator struct {
	rng *rand.Rand
	ids map[string]int
	now time.Time
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
		ids: make(map[string]int),
		now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (g *DataGenerator) nextID(path string) int {
	g.ids[path]++
	return g.ids[path]
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

// dateWithin returns a date up to days before the generator's reference day.
func (g *DataGenerator) dateWithin(days int) string {
	return g.now.AddDate(0, 0, -g.rng.Intn(days+1)).Format("2006-01-02")
}

func (g *DataGenerator) randomDate(minYear, maxYear int) string {
	y := minYear + g.rng.Intn(maxYear-minYear+1)
	m := 1 + g.rng.Intn(12)
	d := 1 + g.rng.Intn(28)
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

func (g *DataGenerator) randomPhone() string {
	return fmt.Sprintf("+91 %05d %05d", 10000+g.rng.Intn(90000), g.rng.Intn(100000))
}

func (g *DataGenerator) person() (first, last, gender string) {
	if g.rng.Intn(2) == 0 {
		return g.pick(firstNamesMale), g.pick(lastNames), "male"
	}
	return g.pick(firstNamesFemale), g.pick(lastNames), "female"
}

func (g *DataGenerator) GenerateAsset() resource.Entity {
	kind := assetKinds[g.rng.Intn(len(assetKinds))]
	id := g.nextID(PathAssets)
	return resource.Entity{
		"id":           id,
		"name":         kind.name,
		"category":     kind.category,
		"serialNumber": fmt.Sprintf("SN-%06d", g.rng.Intn(1000000)),
		"location":     g.pick(locations),
		"status":       g.pick(assetStatuses),
		"purchaseDate": g.randomDate(2015, 2024),
		"cost":         float64(500+g.rng.Intn(50000)) * 10,
	}
}

func (g *DataGenerator) GenerateDonor() resource.Entity {
	first, last, gender := g.person()
	return resource.Entity{
		"id":               g.nextID(PathDonors),
		"firstName":        first,
		"lastName":         last,
		"gender":           gender,
		"bloodGroup":       g.pick(bloodGroups),
		"age":              18 + g.rng.Intn(48),
		"phone":            g.randomPhone(),
		"email":            fmt.Sprintf("%s.%s@example.com", first, last),
		"lastDonationDate": g.dateWithin(365),
		"unitsDonated":     g.rng.Intn(12),
	}
}

// GenerateHealthPackage walks the package catalogue in order and wraps
// around when asked for more.
func (g *DataGenerator) GenerateHealthPackage() resource.Entity {
	id := g.nextID(PathHealthPackages)
	p := packages[(id-1)%len(packages)]
	e := resource.Entity{
		"id":          id,
		"name":        p.name,
		"description": fmt.Sprintf("%d tests", len(p.tests)),
		"price":       p.price,
		"tests":       append([]string(nil), p.tests...),
		"active":      g.rng.Intn(5) != 0,
		"iconUrl":     fmt.Sprintf("/files/health-packages/%d.png", id),
	}
	if g.rng.Intn(2) == 0 {
		e["discountPrice"] = p.price * 0.8
	}
	return e
}

func (g *DataGenerator) GenerateNotice() resource.Entity {
	id := g.nextID(PathNotices)
	publish := g.dateWithin(60)
	p, _ := time.Parse("2006-01-02", publish)
	return resource.Entity{
		"id":          id,
		"title":       noticeTitles[(id-1)%len(noticeTitles)],
		"description": "Please refer to the attached circular.",
		"audience":    g.pick(audiences),
		"publishDate": publish,
		"expiryDate":  p.AddDate(0, 0, 7+g.rng.Intn(60)).Format("2006-01-02"),
	}
}

func (g *DataGenerator) GeneratePatient() resource.Entity {
	first, last, gender := g.person()
	id := g.nextID(PathPatients)
	return resource.Entity{
		"id":          id,
		"mrn":         fmt.Sprintf("MRN-%08d", g.rng.Intn(100000000)),
		"firstName":   first,
		"lastName":    last,
		"gender":      gender,
		"dateOfBirth": g.randomDate(1940, 2020),
		"phone":       g.randomPhone(),
	}
}

func (g *DataGenerator) GenerateMother() resource.Entity {
	id := g.nextID(PathMothers)
	husband, _, _ := g.person()
	return resource.Entity{
		"id":            id,
		"mrn":           fmt.Sprintf("MRN-%08d", g.rng.Intn(100000000)),
		"firstName":     g.pick(firstNamesFemale),
		"lastName":      g.pick(lastNames),
		"gender":        "female",
		"dateOfBirth":   g.randomDate(1985, 2003),
		"phone":         g.randomPhone(),
		"husbandName":   husband,
		"bloodGroup":    g.pick(bloodGroups),
		"admissionDate": g.dateWithin(30),
	}
}

func (g *DataGenerator) GenerateBirth(mother resource.Entity) resource.Entity {
	id := g.nextID(PathBirths)
	first, _, gender := g.person()
	motherID, _ := mother.ID(resource.DefaultIDField)
	return resource.Entity{
		"id":                id,
		"certificateNumber": fmt.Sprintf("BC-%d-%05d", g.now.Year(), id),
		"childName":         fmt.Sprintf("%s %v", first, mother["lastName"]),
		"gender":            gender,
		"dateOfBirth":       g.dateWithin(30),
		"timeOfBirth":       fmt.Sprintf("%02d:%02d", g.rng.Intn(24), g.rng.Intn(60)),
		"weightKg":          float64(25+g.rng.Intn(20)) / 10,
		"motherId":          motherID,
		"motherName":        fmt.Sprintf("%v %v", mother["firstName"], mother["lastName"]),
		"fatherName":        mother["husbandName"],
		"attendingDoctor":   g.pick(doctors),
	}
}

func (g *DataGenerator) GenerateDeath(patient resource.Entity) resource.Entity {
	id := g.nextID(PathDeaths)
	patientID, _ := patient.ID(resource.DefaultIDField)
	return resource.Entity{
		"id":                id,
		"certificateNumber": fmt.Sprintf("DC-%d-%05d", g.now.Year(), id),
		"patientId":         patientID,
		"deceasedName":      fmt.Sprintf("%v %v", patient["firstName"], patient["lastName"]),
		"gender":            patient["gender"],
		"age":               40 + g.rng.Intn(50),
		"dateOfDeath":       g.dateWithin(90),
		"causeOfDeath":      g.pick(causesOfDeath),
		"certifiedBy":       g.pick(doctors),
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// SeedResult summarizes a seed run.
type SeedResult struct {
	Counts   map[string]int `json:"counts"`
	Total    int            `json:"total"`
	Duration time.Duration  `json:"duration"`
}

// Seeder generates a complete, internally consistent data set: births
// reference seeded mothers and deaths reference seeded patients.
type Seeder struct {
	generator *DataGenerator
	config    SeedConfig
	mu        sync.RWMutex
	resources map[string][]resource.Entity
}

func NewSeeder(config SeedConfig) *Seeder {
	return &Seeder{
		generator: NewDataGenerator(config.Seed),
		config:    config,
		resources: make(map[string][]resource.Entity),
	}
}

// Generate replaces any previously generated data.
func (s *Seeder) Generate() *SeedResult {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generator = NewDataGenerator(s.config.Seed)
	g := s.generator
	out := make(map[string][]resource.Entity, len(Paths))
	repeat := func(path string, n int, gen func() resource.Entity) {
		out[path] = make([]resource.Entity, 0, n)
		for i := 0; i < n; i++ {
			out[path] = append(out[path], gen())
		}
	}

	repeat(PathAssets, s.config.Assets, g.GenerateAsset)
	repeat(PathDonors, s.config.Donors, g.GenerateDonor)
	repeat(PathHealthPackages, s.config.HealthPackages, g.GenerateHealthPackage)
	repeat(PathNotices, s.config.Notices, g.GenerateNotice)
	repeat(PathPatients, s.config.Patients, g.GeneratePatient)
	repeat(PathMothers, s.config.Mothers, g.GenerateMother)

	births, deaths := s.config.Births, s.config.Deaths
	if len(out[PathMothers]) == 0 {
		births = 0
	}
	if len(out[PathPatients]) == 0 {
		deaths = 0
	}
	repeat(PathBirths, births, func() resource.Entity {
		return g.GenerateBirth(out[PathMothers][g.rng.Intn(len(out[PathMothers]))])
	})
	repeat(PathDeaths, deaths, func() resource.Entity {
		return g.GenerateDeath(out[PathPatients][g.rng.Intn(len(out[PathPatients]))])
	})

	s.resources = out
	result := &SeedResult{Counts: make(map[string]int, len(out))}
	for path, items := range out {
		result.Counts[path] = len(items)
		result.Total += len(items)
	}
	result.Duration = time.Since(start)
	return result
}

// GetResources returns the generated entities for a collection path.
func (s *Seeder) GetResources(path string) []resource.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resources[path]
}

// ExportNDJSON writes one seeded collection as newline-delimited JSON.
func (s *Seeder) ExportNDJSON(w io.Writer, path string) error {
	s.mu.RLock()
	items := s.resources[path]
	s.mu.RUnlock()
	return writeNDJSON(w, path, items)
}

func writeNDJSON(w io.Writer, path string, items []resource.Entity) error {
	enc := json.NewEncoder(w)
	for _, e := range items {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encoding %s: %w", path, err)
		}
	}
	return nil
}
