// Package company defines the record of facts gathered about one company.
package company

import "strings"

// Data is the Company Data Record. Scalar fields are pointers so that an
// absent value is distinguishable from a zero value; list fields are absent
// when empty.
type Data struct {
	Name               *string  `json:"name,omitempty"`
	Description        *string  `json:"description,omitempty"`
	Industry           *string  `json:"industry,omitempty"`
	Website            *string  `json:"website,omitempty"`
	EmployeeCount      *int     `json:"employee_count,omitempty"`
	EmployeeCountRange *string  `json:"employee_count_range,omitempty"`
	FundingStage       *string  `json:"funding_stage,omitempty"`
	TotalFunding       *float64 `json:"total_funding,omitempty"`
	Headquarters       *string  `json:"headquarters,omitempty"`
	Locations          []string `json:"locations,omitempty"`
	TechStack          []string `json:"tech_stack,omitempty"`
	Benefits           []string `json:"benefits,omitempty"`
	CultureKeywords    []string `json:"culture_keywords,omitempty"`
	LinkedInURL        *string  `json:"linkedin_url,omitempty"`
	TwitterURL         *string  `json:"twitter_url,omitempty"`
	LogoURL            *string  `json:"logo_url,omitempty"`
	FoundedYear        *int     `json:"founded_year,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// FillMissing copies into d every field of other that d does not yet have.
// Merging pages in order with FillMissing gives first-non-null-wins.
func (d *Data) FillMissing(other Data) {
	fill(&d.Name, other.Name)
	fill(&d.Description, other.Description)
	fill(&d.Industry, other.Industry)
	fill(&d.Website, other.Website)
	fill(&d.EmployeeCount, other.EmployeeCount)
	fill(&d.EmployeeCountRange, other.EmployeeCountRange)
	fill(&d.FundingStage, other.FundingStage)
	fill(&d.TotalFunding, other.TotalFunding)
	fill(&d.Headquarters, other.Headquarters)
	fillList(&d.Locations, other.Locations)
	fillList(&d.TechStack, other.TechStack)
	fillList(&d.Benefits, other.Benefits)
	fillList(&d.CultureKeywords, other.CultureKeywords)
	fill(&d.LinkedInURL, other.LinkedInURL)
	fill(&d.TwitterURL, other.TwitterURL)
	fill(&d.LogoURL, other.LogoURL)
	fill(&d.FoundedYear, other.FoundedYear)
}

// Overlay writes every non-null field of other over d. Null fields in other
// never clear a value d already holds.
func (d *Data) Overlay(other Data) {
	overlay(&d.Name, other.Name)
	overlay(&d.Description, other.Description)
	overlay(&d.Industry, other.Industry)
	overlay(&d.Website, other.Website)
	overlay(&d.EmployeeCount, other.EmployeeCount)
	overlay(&d.EmployeeCountRange, other.EmployeeCountRange)
	overlay(&d.FundingStage, other.FundingStage)
	overlay(&d.TotalFunding, other.TotalFunding)
	overlay(&d.Headquarters, other.Headquarters)
	overlayList(&d.Locations, other.Locations)
	overlayList(&d.TechStack, other.TechStack)
	overlayList(&d.Benefits, other.Benefits)
	overlayList(&d.CultureKeywords, other.CultureKeywords)
	overlay(&d.LinkedInURL, other.LinkedInURL)
	overlay(&d.TwitterURL, other.TwitterURL)
	overlay(&d.LogoURL, other.LogoURL)
	overlay(&d.FoundedYear, other.FoundedYear)
}

// PopulatedCount returns the number of fields that are present.
func (d Data) PopulatedCount() int {
	n := 0
	for _, present := range []bool{
		d.Name != nil,
		d.Description != nil,
		d.Industry != nil,
		d.Website != nil,
		d.EmployeeCount != nil,
		d.EmployeeCountRange != nil,
		d.FundingStage != nil,
		d.TotalFunding != nil,
		d.Headquarters != nil,
		len(d.Locations) > 0,
		len(d.TechStack) > 0,
		len(d.Benefits) > 0,
		len(d.CultureKeywords) > 0,
		d.LinkedInURL != nil,
		d.TwitterURL != nil,
		d.LogoURL != nil,
		d.FoundedYear != nil,
	} {
		if present {
			n++
		}
	}
	return n
}

// IsEmpty reports whether no field is present.
func (d Data) IsEmpty() bool {
	return d.PopulatedCount() == 0
}

// Clone returns a deep copy of d.
func (d Data) Clone() Data {
	out := Data{}
	out.Overlay(d)
	return out
}

// HasText reports whether s is present and not blank.
func HasText(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// Deref returns the pointed-to value or the zero value.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func fill[T any](dst **T, src *T) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
	}
}

func overlay[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func fillList(dst *[]string, src []string) {
	if len(*dst) == 0 && len(src) > 0 {
		*dst = append([]string(nil), src...)
	}
}

func overlayList(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = append([]string(nil), src...)
	}
}
