package job

import (
	"time"

	"github.com/google/uuid"
)

// Source tags accepted by the run trigger. "all", "clear" and "cleanup" are
// pseudo-sources handled by the orchestrator, not adapters.
const (
	SourceDiscover   = "discover"
	SourceCompanies  = "companies"
	SourceWorkday    = "workday"
	SourceLever      = "lever"
	SourceGreenhouse = "greenhouse"
	SourceIndeed     = "indeed"
	SourceRigzone    = "rigzone"
	SourceInfomine   = "infomine"
	SourceSample     = "sample"

	SelectorAll     = "all"
	SelectorClear   = "clear"
	SelectorCleanup = "cleanup"
)

// Sector buckets for natural-resource postings.
const (
	SectorMining        = "mining"
	SectorOilGas        = "oil_gas"
	SectorForestry      = "forestry"
	SectorFishing       = "fishing"
	SectorAgriculture   = "agriculture"
	SectorRenewables    = "renewable_energy"
	SectorEnvironmental = "environmental"
	SectorGeneralLabor  = "general_labor"
)

const (
	JobTypeFullTime   = "full_time"
	JobTypePartTime   = "part_time"
	JobTypeContract   = "contract"
	JobTypeInternship = "internship"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

type Posting struct {
	ID           uuid.UUID  `json:"id"`
	Source       string     `json:"source"`
	ExternalID   string     `json:"externalId"`
	Title        string     `json:"title"`
	Company      string     `json:"company"`
	Location     string     `json:"location"`
	City         string     `json:"city"`
	Province     string     `json:"province"`
	Region       string     `json:"region"`
	Sector       string     `json:"sector"`
	JobType      string     `json:"jobType"`
	SalaryMin    int        `json:"salaryMin"`
	SalaryMax    int        `json:"salaryMax"`
	SalaryRaw    string     `json:"salaryRaw"`
	Description  string     `json:"description"`
	Requirements []string   `json:"requirements"`
	URL          string     `json:"url"`
	Remote       bool       `json:"remote"`
	Rotational   bool       `json:"rotational"`
	IsActive     bool       `json:"isActive"`
	PostedAt     *time.Time `json:"postedAt"`
	ScrapedAt    time.Time  `json:"scrapedAt"`
}

type ScrapeRun struct {
	ID          uuid.UUID  `json:"id"`
	Source      string     `json:"source"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt"`
	Status      string     `json:"status"`
	JobsFound   int        `json:"jobsFound"`
	JobsAdded   int        `json:"jobsAdded"`
	JobsUpdated int        `json:"jobsUpdated"`
	Error       string     `json:"error,omitempty"`
}

type SourceResult struct {
	Source      string `json:"source"`
	Status      string `json:"status"`
	JobsFound   int    `json:"jobsFound"`
	JobsAdded   int    `json:"jobsAdded"`
	JobsUpdated int    `json:"jobsUpdated"`
	Error       string `json:"error,omitempty"`
}

type RunSummary struct {
	SourcesRun       int            `json:"sourcesRun"`
	SourcesSucceeded int            `json:"sourcesSucceeded"`
	SourcesFailed    int            `json:"sourcesFailed"`
	TotalJobsFound   int            `json:"totalJobsFound"`
	TotalJobsAdded   int            `json:"totalJobsAdded"`
	TotalJobsUpdated int            `json:"totalJobsUpdated"`
	TotalDurationMS  int64          `json:"totalDurationMs"`
	Results          []SourceResult `json:"results"`
}

// AdapterTags lists every scrapeable source in the order "all" runs them.
func AdapterTags() []string {
	return []string{
		SourceDiscover,
		SourceCompanies,
		SourceWorkday,
		SourceLever,
		SourceGreenhouse,
		SourceIndeed,
		SourceRigzone,
		SourceInfomine,
		SourceSample,
	}
}
