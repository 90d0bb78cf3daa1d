package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"resource-jobs/internal/domain/job"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 5000
	maxRequirements   = 10
)

var (
	titlePrefixRe = regexp.MustCompile(`(?i)^(careers?|jobs?|opportunities|positions?)\s*:?\s*`)
	titleSuffixRe = regexp.MustCompile(`(?i)\s*[-|:\x{2013}\x{2014}]\s*(careers?|jobs?|opportunities|positions?)\s*$`)
	spaceRe       = regexp.MustCompile(`\s+`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
)

// titleDenylist entries match as case-insensitive substrings, so "View all
// positions" is rejected just like a bare "View All".
var titleDenylist = []string{
	"view all",
	"see all",
	"all jobs",
	"all positions",
	"all openings",
	"board of directors",
	"privacy policy",
	"terms of service",
	"learn more",
	"read more",
	"apply now",
}

// CleanTitle strips listing-page boilerplate from a raw title. Applying it to
// its own output is a no-op.
func CleanTitle(raw string) string {
	t := spaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")
	t = titlePrefixRe.ReplaceAllString(t, "")
	t = titleSuffixRe.ReplaceAllString(t, "")
	t = strings.TrimSpace(t)
	if r := []rune(t); len(r) > maxTitleLen {
		t = strings.TrimSpace(string(r[:maxTitleLen]))
	}
	return t
}

// ValidTitle rejects navigation chrome and degenerate titles.
func ValidTitle(title string) bool {
	t := strings.TrimSpace(title)
	if len([]rune(t)) < 3 {
		return false
	}
	lower := strings.ToLower(t)
	for _, phrase := range titleDenylist {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	return true
}

// provinceTable maps lowercased province names, abbreviations and major
// resource-town names to 2-letter codes.
var provinceTable = []struct {
	key  string
	code string
}{
	{"newfoundland and labrador", "NL"},
	{"british columbia", "BC"},
	{"prince edward island", "PE"},
	{"northwest territories", "NT"},
	{"new brunswick", "NB"},
	{"newfoundland", "NL"},
	{"nova scotia", "NS"},
	{"saskatchewan", "SK"},
	{"alberta", "AB"},
	{"manitoba", "MB"},
	{"nunavut", "NU"},
	{"ontario", "ON"},
	{"quebec", "QC"},
	{"québec", "QC"},
	{"yukon", "YT"},
	{"fort mcmurray", "AB"},
	{"grande prairie", "AB"},
	{"calgary", "AB"},
	{"edmonton", "AB"},
	{"prince george", "BC"},
	{"fort st. john", "BC"},
	{"kamloops", "BC"},
	{"vancouver", "BC"},
	{"victoria", "BC"},
	{"thunder bay", "ON"},
	{"sudbury", "ON"},
	{"timmins", "ON"},
	{"toronto", "ON"},
	{"ottawa", "ON"},
	{"rouyn-noranda", "QC"},
	{"val-d'or", "QC"},
	{"saguenay", "QC"},
	{"montreal", "QC"},
	{"montréal", "QC"},
	{"saskatoon", "SK"},
	{"regina", "SK"},
	{"estevan", "SK"},
	{"winnipeg", "MB"},
	{"thompson", "MB"},
	{"halifax", "NS"},
	{"st. john's", "NL"},
	{"labrador city", "NL"},
	{"fredericton", "NB"},
	{"moncton", "NB"},
	{"saint john", "NB"},
	{"charlottetown", "PE"},
	{"whitehorse", "YT"},
	{"yellowknife", "NT"},
	{"iqaluit", "NU"},
}

var provinceAbbrev = map[string]string{
	"ab": "AB", "bc": "BC", "mb": "MB", "nb": "NB", "nl": "NL",
	"ns": "NS", "nt": "NT", "nu": "NU", "on": "ON", "pe": "PE",
	"pei": "PE", "qc": "QC", "sk": "SK", "yt": "YT",
}

// ParseLocation infers (city, province, region) from a free-form location
// string. Unknown locations get province "" and region "Canada".
func ParseLocation(location string) (city, province, region string) {
	loc := spaceRe.ReplaceAllString(strings.TrimSpace(location), " ")
	if loc == "" {
		return "", "", "Canada"
	}

	parts := strings.Split(loc, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	// drop a trailing "Canada"
	if len(parts) > 1 && strings.EqualFold(parts[len(parts)-1], "canada") {
		parts = parts[:len(parts)-1]
	}

	city = parts[0]
	if strings.EqualFold(city, "canada") {
		city = ""
	}

	if len(parts) > 1 {
		last := strings.ToLower(parts[len(parts)-1])
		if code, ok := provinceAbbrev[last]; ok {
			return city, code, code
		}
		for _, e := range provinceTable {
			if last == e.key {
				return city, e.code, e.code
			}
		}
	}

	lower := strings.ToLower(loc)
	for _, e := range provinceTable {
		if strings.Contains(lower, e.key) {
			return city, e.code, e.code
		}
	}
	return city, "", "Canada"
}

// sectorKeywords scores postings into natural-resource sectors. Order breaks
// ties.
var sectorKeywords = []struct {
	sector   string
	keywords []string
}{
	{job.SectorMining, []string{
		"mining", "mine", "mineral", "ore", "geology", "geologist", "underground",
		"open pit", "quarry", "potash", "uranium", "gold", "copper", "nickel", "diamond", "smelter",
	}},
	{job.SectorOilGas, []string{
		"oil", "gas", "petroleum", "pipeline", "drilling", "rig", "refinery", "lng",
		"oilfield", "wellsite", "frac", "upstream", "downstream", "oilsands", "oil sands",
	}},
	{job.SectorForestry, []string{
		"forestry", "forest", "logging", "lumber", "sawmill", "timber", "wood products",
		"silviculture", "pulp", "paper mill",
	}},
	{job.SectorFishing, []string{
		"fishing", "fishery", "fisheries", "aquaculture", "seafood", "hatchery", "vessel", "deckhand",
	}},
	{job.SectorAgriculture, []string{
		"agriculture", "farm", "farming", "agronomy", "agronomist", "crop", "livestock",
		"grain", "dairy", "ranch", "greenhouse grower",
	}},
	{job.SectorRenewables, []string{
		"renewable", "solar", "wind turbine", "wind farm", "hydroelectric", "geothermal",
		"biomass", "clean energy", "battery", "carbon capture",
	}},
	{job.SectorEnvironmental, []string{
		"environmental", "environment", "ecology", "ecologist", "conservation",
		"remediation", "reclamation", "sustainability", "water treatment", "wildlife",
	}},
}

// Sector picks the best-scoring sector for a posting, defaulting to
// general_labor when nothing matches.
func Sector(title, description string) string {
	text := strings.ToLower(title + " " + description)
	best := job.SectorGeneralLabor
	bestScore := 0
	for _, entry := range sectorKeywords {
		score := 0
		for _, kw := range entry.keywords {
			score += strings.Count(text, kw)
		}
		if score > bestScore {
			bestScore = score
			best = entry.sector
		}
	}
	return best
}

var (
	salaryRangeRe  = regexp.MustCompile(`(?i)\$\s*([\d][\d,]*(?:\.\d+)?)\s*(k)?(?:\s*(?:-|to|\x{2013})\s*\$?\s*([\d][\d,]*(?:\.\d+)?)\s*(k)?)?`)
	salaryHourlyRe = regexp.MustCompile(`(?i)(/\s*h(ou)?r|per\s+hour|hourly)`)
)

// ParseSalary extracts an annualized CAD range; hourly figures are scaled to
// a 2080-hour year.
func ParseSalary(text string) (min, max int, raw string) {
	m := salaryRangeRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, ""
	}
	raw = strings.TrimSpace(m[0])
	hourly := salaryHourlyRe.MatchString(text)

	min = salaryNumber(m[1], m[2] != "", hourly)
	if m[3] != "" {
		max = salaryNumber(m[3], m[4] != "", hourly)
	} else {
		max = min
	}
	if max < min {
		min, max = max, min
	}
	return min, max, raw
}

func salaryNumber(s string, thousands, hourly bool) int {
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	if thousands {
		f *= 1000
	}
	if hourly || f < 500 {
		f *= 2080
	}
	return int(f)
}

// ParseJobType maps commitment wording to a job type, defaulting to
// full_time.
func ParseJobType(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "intern") || strings.Contains(t, "co-op") || strings.Contains(t, "coop"):
		return job.JobTypeInternship
	case strings.Contains(t, "contract") || strings.Contains(t, "temporary") || strings.Contains(t, "seasonal"):
		return job.JobTypeContract
	case strings.Contains(t, "part-time") || strings.Contains(t, "part time"):
		return job.JobTypePartTime
	default:
		return job.JobTypeFullTime
	}
}

func IsRemote(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "remote") ||
		strings.Contains(t, "work from home") ||
		strings.Contains(t, "telecommute")
}

// IsRotational flags fly-in fly-out and camp-based work.
func IsRotational(text string) bool {
	t := strings.ToLower(text)
	for _, kw := range []string{"fly-in", "fly in", "fifo", "camp-based", "camp based", "rotational", "rotation schedule", "14/14", "21/7"} {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

var htmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&#x27;", "'",
	"&nbsp;", " ",
	"&rsquo;", "'",
	"&ndash;", "-",
	"&mdash;", "-",
)

func StripHTML(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = htmlEntities.Replace(s)
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

var requirementHeaderRe = regexp.MustCompile(`(?i)^(requirements?|qualifications?|what you bring|must have|you have)\b`)

// ExtractRequirements pulls bullet-style lines following a requirements
// heading.
func ExtractRequirements(description string) []string {
	lines := strings.Split(description, "\n")
	out := make([]string, 0, maxRequirements)
	inSection := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if requirementHeaderRe.MatchString(line) {
			inSection = true
			continue
		}
		if !inSection {
			continue
		}
		item := strings.TrimLeft(line, "-*• \t")
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if len(item) > 300 {
			// past the bullet list
			break
		}
		out = append(out, item)
		if len(out) >= maxRequirements {
			break
		}
	}
	return out
}

// Apply runs the full normalization pipeline in place. It reports false when
// the posting should be silently dropped.
func Apply(p *job.Posting) bool {
	if p == nil {
		return false
	}

	p.Title = CleanTitle(p.Title)
	if !ValidTitle(p.Title) {
		return false
	}
	p.Company = strings.TrimSpace(p.Company)
	if p.Company == "" {
		return false
	}

	p.Location = spaceRe.ReplaceAllString(strings.TrimSpace(p.Location), " ")
	p.City, p.Province, p.Region = ParseLocation(p.Location)

	if strings.Contains(p.Description, "<") {
		p.Description = StripHTML(p.Description)
	}
	if len(p.Description) > maxDescriptionLen {
		p.Description = p.Description[:maxDescriptionLen]
	}

	if p.Sector == "" {
		p.Sector = Sector(p.Title, p.Description)
	}
	if p.JobType == "" {
		p.JobType = ParseJobType(p.Title + " " + p.Description)
	}
	if p.SalaryRaw == "" && p.SalaryMin == 0 {
		p.SalaryMin, p.SalaryMax, p.SalaryRaw = ParseSalary(p.Description)
	}
	if !p.Remote {
		p.Remote = IsRemote(p.Location + " " + p.Title)
	}
	if !p.Rotational {
		p.Rotational = IsRotational(p.Title + " " + p.Description)
	}
	if len(p.Requirements) == 0 {
		p.Requirements = ExtractRequirements(p.Description)
	}

	if p.ScrapedAt.IsZero() {
		p.ScrapedAt = time.Now().UTC()
	}
	p.IsActive = true
	return true
}
