package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"resource-jobs/internal/domain/job"
)

type sampleEmployer struct {
	Name     string
	Location string
	Sector   string
}

var sampleEmployers = []sampleEmployer{
	{"Suncor Energy", "Fort McMurray, AB", job.SectorOilGas},
	{"Cenovus Energy", "Calgary, AB", job.SectorOilGas},
	{"Precision Drilling", "Nisku, AB", job.SectorOilGas},
	{"Teck Resources", "Sparwood, BC", job.SectorMining},
	{"Agnico Eagle", "Rankin Inlet, NU", job.SectorMining},
	{"Cameco", "Saskatoon, SK", job.SectorMining},
	{"Vale Canada", "Sudbury, ON", job.SectorMining},
	{"West Fraser", "Quesnel, BC", job.SectorForestry},
	{"Canfor", "Prince George, BC", job.SectorForestry},
	{"Resolute Forest Products", "Thunder Bay, ON", job.SectorForestry},
	{"Mowi Canada West", "Campbell River, BC", job.SectorFishing},
	{"Cooke Aquaculture", "Saint John, NB", job.SectorFishing},
	{"Ocean Choice International", "St. John's, NL", job.SectorFishing},
	{"Nutrien Ag Solutions", "Regina, SK", job.SectorAgriculture},
	{"Richardson International", "Winnipeg, MB", job.SectorAgriculture},
	{"BC Hydro", "Vancouver, BC", job.SectorRenewables},
	{"Northland Power", "Toronto, ON", job.SectorRenewables},
	{"Innergex", "Longueuil, QC", job.SectorRenewables},
	{"Stantec", "Edmonton, AB", job.SectorEnvironmental},
	{"WSP Canada", "Yellowknife, NT", job.SectorEnvironmental},
}

type sampleRole struct {
	Titles   []string
	MinLow   int
	MinHigh  int
	Spread   int
	Rotation bool
}

var sampleRoles = map[string]sampleRole{
	job.SectorOilGas: {
		Titles:   []string{"Drilling Supervisor", "Pipeline Operator", "Process Engineer", "Floorhand", "HSE Advisor"},
		MinLow:   70000, MinHigh: 110000, Spread: 40000, Rotation: true,
	},
	job.SectorMining: {
		Titles:   []string{"Mining Engineer", "Underground Miner", "Haul Truck Operator", "Mill Operator", "Geologist"},
		MinLow:   65000, MinHigh: 105000, Spread: 45000, Rotation: true,
	},
	job.SectorForestry: {
		Titles:   []string{"Forestry Technician", "Sawmill Supervisor", "Log Truck Driver", "Silviculture Forester"},
		MinLow:   50000, MinHigh: 80000, Spread: 30000,
	},
	job.SectorFishing: {
		Titles:   []string{"Aquaculture Technician", "Deckhand", "Fish Plant Supervisor", "Marine Biologist"},
		MinLow:   40000, MinHigh: 65000, Spread: 25000,
	},
	job.SectorAgriculture: {
		Titles:   []string{"Agronomist", "Farm Equipment Operator", "Grain Elevator Manager", "Crop Advisor"},
		MinLow:   45000, MinHigh: 75000, Spread: 30000,
	},
	job.SectorRenewables: {
		Titles:   []string{"Wind Turbine Technician", "Solar Installer", "Hydro Plant Operator", "Electrical Engineer"},
		MinLow:   60000, MinHigh: 95000, Spread: 35000,
	},
	job.SectorEnvironmental: {
		Titles:   []string{"Environmental Scientist", "Reclamation Specialist", "Water Quality Technician"},
		MinLow:   55000, MinHigh: 85000, Spread: 30000,
	},
}

// SampleSource generates plausible postings without touching the network.
// Useful for seeding a fresh database and exercising the full ingest path.
type SampleSource struct {
	rng *rand.Rand
	now func() time.Time
}

func NewSampleSource() *SampleSource {
	return &SampleSource{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
}

func (s *SampleSource) Tag() string { return job.SourceSample }

func (s *SampleSource) Scrape(ctx context.Context) ([]job.Posting, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	out := make([]job.Posting, 0, len(sampleEmployers)*3)
	for _, emp := range sampleEmployers {
		role, ok := sampleRoles[emp.Sector]
		if !ok || len(role.Titles) == 0 {
			continue
		}
		n := 2 + s.rng.Intn(3)
		perm := s.rng.Perm(len(role.Titles))
		for i := 0; i < n && i < len(perm); i++ {
			title := role.Titles[perm[i]]
			min := role.MinLow + s.rng.Intn(role.MinHigh-role.MinLow+1)
			max := min + 10000 + s.rng.Intn(role.Spread)
			posted := s.now().AddDate(0, 0, -s.rng.Intn(30))
			rotational := role.Rotation && s.rng.Intn(2) == 0

			slug := strings.ToLower(strings.ReplaceAll(emp.Name+"-"+title, " ", "-"))
			p := job.Posting{
				Source:     job.SourceSample,
				ExternalID: fmt.Sprintf("sample-%s", slug),
				Title:      title,
				Company:    emp.Name,
				Location:   emp.Location,
				Sector:     emp.Sector,
				JobType:    job.JobTypeFullTime,
				SalaryMin:  min,
				SalaryMax:  max,
				SalaryRaw:  fmt.Sprintf("$%d - $%d", min, max),
				Description: fmt.Sprintf("%s is hiring a %s based in %s. Competitive compensation and benefits.",
					emp.Name, title, emp.Location),
				URL:        fmt.Sprintf("https://example.org/jobs/%s", slug),
				Rotational: rotational,
				PostedAt:   &posted,
			}
			out = append(out, p)
		}
	}
	return out, nil
}
