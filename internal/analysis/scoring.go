package analysis

import "github.com/JakeFAU/company-analyzer/internal/company"

type weightedField struct {
	weight   float64
	achieved func(company.Data) bool
}

func positive(p *int) bool {
	return p != nil && *p > 0
}

// completenessChecklist weights sum to 1.0.
var completenessChecklist = []weightedField{
	{0.20, func(d company.Data) bool { return company.HasText(d.Name) }},
	{0.15, func(d company.Data) bool { return company.HasText(d.Description) }},
	{0.10, func(d company.Data) bool { return company.HasText(d.Industry) }},
	{0.10, func(d company.Data) bool { return company.HasText(d.Website) }},
	{0.10, func(d company.Data) bool { return positive(d.EmployeeCount) }},
	{0.05, func(d company.Data) bool { return company.HasText(d.EmployeeCountRange) }},
	{0.05, func(d company.Data) bool { return company.HasText(d.FundingStage) }},
	{0.10, func(d company.Data) bool { return company.HasText(d.Headquarters) }},
	{0.05, func(d company.Data) bool { return company.HasText(d.LinkedInURL) }},
	{0.05, func(d company.Data) bool { return positive(d.FoundedYear) }},
	{0.05, func(d company.Data) bool { return len(d.TechStack) > 0 }},
}

// Completeness is the weighted fraction of the checklist fields d carries.
func Completeness(d company.Data) float64 {
	var total, achieved float64
	for _, f := range completenessChecklist {
		total += f.weight
		if f.achieved(d) {
			achieved += f.weight
		}
	}
	if total == 0 {
		return 0
	}
	return achieved / total
}

// Confidence starts at 0.6 and adds up to 0.2 for data richness and up to
// 0.2 for enrichment sources.
func Confidence(d company.Data, sources int) float64 {
	richness := min(0.2, 0.02*float64(d.PopulatedCount()))
	enrichment := min(0.2, 0.1*float64(sources))
	return min(1.0, 0.6+richness+enrichment)
}
