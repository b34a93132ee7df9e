// Package report renders company analyses as markdown documents.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JakeFAU/company-analyzer/internal/company"
	"github.com/nao1215/markdown"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const footer = "*This report was generated automatically by Job URL Analyzer. Data accuracy may vary.*"

// Clock supplies the render time.
type Clock interface {
	Now() time.Time
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

// Input is everything one report is rendered from.
type Input struct {
	Data         company.Data
	Completeness float64
	Confidence   float64
	Sources      []string
	Errors       []string
}

// Renderer builds the analysis report. Rendering is pure apart from the clock.
type Renderer struct {
	clock Clock
}

// NewRenderer returns a Renderer. A nil clock uses the system clock.
func NewRenderer(clock Clock) *Renderer {
	if clock == nil {
		clock = utcClock{}
	}
	return &Renderer{clock: clock}
}

// Render returns the markdown report for in.
func (r *Renderer) Render(in Input) string {
	now := r.clock.Now().UTC()
	d := in.Data
	md := markdown.NewMarkdown(io.Discard)

	name := company.Deref(d.Name)
	if !company.HasText(d.Name) {
		name = "Unknown Company"
	}
	md.H1(name + " - Company Analysis Report")
	md.PlainText(markdown.Italic("Generated on " + now.Format("2006-01-02 15:04:05") + " UTC"))
	md.PlainText("")

	md.H2("Executive Summary")
	md.PlainText(ExecutiveSummary(d, now))
	md.PlainText("")

	writeOverview(md, d)
	writeSizeAndFunding(md, d)
	writeLocation(md, d)
	writeTechAndCulture(md, d)
	writeSocial(md, d)
	writeQuality(md, in)

	md.HorizontalRule()
	md.PlainText(footer)
	return md.String()
}

func field(label, value string) string {
	return markdown.Bold(label+":") + " " + value
}

func writeOverview(md *markdown.Markdown, d company.Data) {
	if !company.HasText(d.Description) && !company.HasText(d.Industry) && !positive(d.FoundedYear) {
		return
	}
	md.H2("Company Overview")
	if company.HasText(d.Description) {
		md.PlainText(field("Description", *d.Description))
		md.PlainText("")
	}

	var items []string
	if company.HasText(d.Industry) {
		items = append(items, field("Industry", *d.Industry))
	}
	if positive(d.FoundedYear) {
		items = append(items, field("Founded", fmt.Sprint(*d.FoundedYear)))
	}
	if company.HasText(d.Website) {
		items = append(items, field("Website", *d.Website))
	}
	if len(items) > 0 {
		for _, item := range items {
			md.PlainText(item)
		}
		md.PlainText("")
	}
}

func writeSizeAndFunding(md *markdown.Markdown, d company.Data) {
	hasFunding := d.TotalFunding != nil && *d.TotalFunding != 0
	if !positive(d.EmployeeCount) && !company.HasText(d.EmployeeCountRange) &&
		!company.HasText(d.FundingStage) && !hasFunding {
		return
	}
	md.H2("Size & Funding")
	switch {
	case positive(d.EmployeeCount):
		md.PlainText(field("Employee Count", Thousands(*d.EmployeeCount)))
	case company.HasText(d.EmployeeCountRange):
		md.PlainText(field("Employee Range", *d.EmployeeCountRange))
	}
	if company.HasText(d.FundingStage) {
		md.PlainText(field("Funding Stage", *d.FundingStage))
	}
	if hasFunding {
		md.PlainText(field("Total Funding", Millions(*d.TotalFunding)))
	}
	md.PlainText("")
}

func writeLocation(md *markdown.Markdown, d company.Data) {
	if !company.HasText(d.Headquarters) && len(d.Locations) == 0 {
		return
	}
	md.H2("Location")
	if company.HasText(d.Headquarters) {
		md.PlainText(field("Headquarters", *d.Headquarters))
	}
	if len(d.Locations) > 0 {
		md.PlainText(markdown.Bold("Other Locations:"))
		md.BulletList(d.Locations...)
	}
	md.PlainText("")
}

func writeTechAndCulture(md *markdown.Markdown, d company.Data) {
	if len(d.TechStack) == 0 && len(d.Benefits) == 0 && len(d.CultureKeywords) == 0 {
		return
	}
	md.H2("Technology & Culture")
	if len(d.TechStack) > 0 {
		md.PlainText(markdown.Bold("Technology Stack:"))
		md.BulletList(d.TechStack...)
		md.PlainText("")
	}
	if len(d.Benefits) > 0 {
		md.PlainText(markdown.Bold("Benefits & Perks:"))
		md.BulletList(d.Benefits...)
		md.PlainText("")
	}
	if len(d.CultureKeywords) > 0 {
		md.PlainText(markdown.Bold("Culture Keywords:"))
		md.PlainText(strings.Join(d.CultureKeywords, ", "))
		md.PlainText("")
	}
}

func writeSocial(md *markdown.Markdown, d company.Data) {
	if !company.HasText(d.LinkedInURL) && !company.HasText(d.TwitterURL) {
		return
	}
	md.H2("Social Presence")
	if company.HasText(d.LinkedInURL) {
		md.PlainText(field("LinkedIn", *d.LinkedInURL))
	}
	if company.HasText(d.TwitterURL) {
		md.PlainText(field("Twitter", *d.TwitterURL))
	}
	md.PlainText("")
}

func writeQuality(md *markdown.Markdown, in Input) {
	md.H2("Analysis Quality")
	md.PlainText(field("Data Completeness", Percent(in.Completeness)))
	md.PlainText(field("Confidence Score", Percent(in.Confidence)))
	if len(in.Sources) > 0 {
		md.PlainText(field("Enrichment Sources", strings.Join(in.Sources, ", ")))
	}
	if len(in.Errors) > 0 {
		md.PlainText(markdown.Bold("Enrichment Issues:"))
		md.BulletList(in.Errors...)
	}
	md.PlainText("")
}

// ExecutiveSummary is the opening paragraph of the report. Company age is
// measured against now.
func ExecutiveSummary(d company.Data, now time.Time) string {
	var parts []string

	switch {
	case company.HasText(d.Description):
		parts = append(parts, *d.Description)
	case company.HasText(d.Name):
		parts = append(parts, *d.Name+" is a company")
	default:
		parts = append(parts, "This company is a company")
	}

	var details []string
	if company.HasText(d.Industry) {
		details = append(details, "in the "+strings.ToLower(*d.Industry)+" industry")
	}
	if positive(d.FoundedYear) {
		age := now.Year() - *d.FoundedYear
		details = append(details, fmt.Sprintf("founded %d years ago (%d)", age, *d.FoundedYear))
	}
	if company.HasText(d.Headquarters) {
		details = append(details, "headquartered in "+*d.Headquarters)
	}
	if len(details) > 0 {
		parts = append(parts, strings.Join(details, " "))
	}

	switch {
	case positive(d.EmployeeCount):
		parts = append(parts, "The company has approximately "+Thousands(*d.EmployeeCount)+" employees")
	case company.HasText(d.EmployeeCountRange):
		parts = append(parts, "The company has "+*d.EmployeeCountRange+" employees")
	}

	hasFunding := d.TotalFunding != nil && *d.TotalFunding != 0
	switch {
	case company.HasText(d.FundingStage) && hasFunding:
		parts = append(parts, fmt.Sprintf("and has raised %s in %s funding",
			Millions(*d.TotalFunding), strings.ToLower(*d.FundingStage)))
	case company.HasText(d.FundingStage):
		parts = append(parts, "and is at the "+strings.ToLower(*d.FundingStage)+" stage")
	case hasFunding:
		parts = append(parts, "and has raised "+Millions(*d.TotalFunding)+" in funding")
	}

	return strings.Join(parts, ". ") + "."
}

// Thousands formats n with comma grouping.
func Thousands(n int) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

// Millions formats an amount already expressed in millions of USD.
func Millions(v float64) string {
	return fmt.Sprintf("$%.1fM", v)
}

// Percent formats a 0..1 score with one decimal.
func Percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func positive(p *int) bool {
	return p != nil && *p > 0
}
