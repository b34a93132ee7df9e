package analysis

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/JakeFAU/company-analyzer/internal/company"
	"github.com/JakeFAU/company-analyzer/internal/store"
)

// Request asks for one analysis.
type Request struct {
	URL               string
	IncludeEnrichment bool
	ForceRefresh      bool
}

// Request validation errors.
var (
	ErrURLRequired = eris.New("url is required")
	ErrInvalidURL  = eris.New("url must be an absolute http or https URL")
)

// NewRequest trims rawURL and checks that it is an absolute http(s) URL with
// a host.
func NewRequest(rawURL string, includeEnrichment, forceRefresh bool) (Request, error) {
	req := Request{
		URL:               strings.TrimSpace(rawURL),
		IncludeEnrichment: includeEnrichment,
		ForceRefresh:      forceRefresh,
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate reports whether URL can be analyzed.
func (r Request) Validate() error {
	if r.URL == "" {
		return ErrURLRequired
	}
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// CompanyProfile is the public projection of company.Data. Absent scalars
// encode as null and lists are always arrays.
type CompanyProfile struct {
	Name               *string  `json:"name"`
	Description        *string  `json:"description"`
	Industry           *string  `json:"industry"`
	Website            *string  `json:"website"`
	EmployeeCount      *int     `json:"employee_count"`
	EmployeeCountRange *string  `json:"employee_count_range"`
	FundingStage       *string  `json:"funding_stage"`
	TotalFunding       *float64 `json:"total_funding"`
	Headquarters       *string  `json:"headquarters"`
	Locations          []string `json:"locations"`
	TechStack          []string `json:"tech_stack"`
	Benefits           []string `json:"benefits"`
	CultureKeywords    []string `json:"culture_keywords"`
	LinkedInURL        *string  `json:"linkedin_url"`
	TwitterURL         *string  `json:"twitter_url"`
	LogoURL            *string  `json:"logo_url"`
	FoundedYear        *int     `json:"founded_year"`
}

// Response is the result of an analysis, fresh or cached.
type Response struct {
	ProfileID         uuid.UUID      `json:"profile_id"`
	SourceURL         string         `json:"source_url"`
	CompanyProfile    CompanyProfile `json:"company_profile"`
	CompletenessScore float64        `json:"completeness_score"`
	ConfidenceScore   float64        `json:"confidence_score"`
	AnalysisTimestamp time.Time      `json:"analysis_timestamp"`
	ProcessingTimeMs  int64          `json:"processing_time_ms"`
	EnrichmentSources []string       `json:"enrichment_sources"`
	EnrichmentErrors  []string       `json:"enrichment_errors"`
	MarkdownReport    string         `json:"markdown_report"`
}

// ToResponse projects a stored profile into the public shape.
func ToResponse(p store.Profile) Response {
	return Response{
		ProfileID:         p.ID,
		SourceURL:         p.SourceURL,
		CompanyProfile:    projectCompany(p.Company),
		CompletenessScore: p.CompletenessScore,
		ConfidenceScore:   p.ConfidenceScore,
		AnalysisTimestamp: p.AnalysisTimestamp,
		ProcessingTimeMs:  p.ProcessingTimeMs,
		EnrichmentSources: nonNil(p.EnrichmentSources),
		EnrichmentErrors:  nonNil(p.EnrichmentErrors),
		MarkdownReport:    p.MarkdownReport,
	}
}

func projectCompany(d company.Data) CompanyProfile {
	d = d.Clone()
	return CompanyProfile{
		Name:               d.Name,
		Description:        d.Description,
		Industry:           d.Industry,
		Website:            d.Website,
		EmployeeCount:      d.EmployeeCount,
		EmployeeCountRange: d.EmployeeCountRange,
		FundingStage:       d.FundingStage,
		TotalFunding:       d.TotalFunding,
		Headquarters:       d.Headquarters,
		Locations:          nonNil(d.Locations),
		TechStack:          nonNil(d.TechStack),
		Benefits:           nonNil(d.Benefits),
		CultureKeywords:    nonNil(d.CultureKeywords),
		LinkedInURL:        d.LinkedInURL,
		TwitterURL:         d.TwitterURL,
		LogoURL:            d.LogoURL,
		FoundedYear:        d.FoundedYear,
	}
}

func nonNil(list []string) []string {
	out := make([]string, len(list))
	copy(out, list)
	return out
}
