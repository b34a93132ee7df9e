// Package extractor pulls company facts out of a page with heuristic rules.
//
// Every rule is an independent function over one parsed document. Rules never
// share state; the first value a rule finds is folded into the output record
// and absent results are left unset.
package extractor

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/company-analyzer/internal/company"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Thresholds applied by the description, name and headquarters rules.
const (
	minMetaDescriptionLen  = 50
	minAboutDescriptionLen = 100
	maxDescriptionLen      = 500
	maxHeadingNameLen      = 100
	maxHeadquartersLen     = 200
	maxLocations           = 5
	minFoundedYear         = 1800
	maxFoundedYear         = 2025
)

var (
	employeeCountPattern = regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{3})+|\d+)\s*(?:employees?|staff|people|team members?)\b`)
	fundingPattern       = regexp.MustCompile(`(?i)\$(\d+(?:\.\d+)?)\s*(million|billion|m|b|k)s?\b`)
	locationPattern      = regexp.MustCompile(`\b[A-Z][a-z]+,\s*[A-Z]{2}\b`)
	foundedPatterns      = []*regexp.Regexp{
		regexp.MustCompile(`(?i)founded in (\d{4})`),
		regexp.MustCompile(`(?i)since (\d{4})`),
		regexp.MustCompile(`(?i)established in (\d{4})`),
		regexp.MustCompile(`(?i)started in (\d{4})`),
	}
)

var titleSuffixes = []string{" - Careers", " - Jobs", " | Careers", " | Jobs", " Careers", " Jobs"}

var descriptionSelectors = []string{
	".about", ".company-description", ".overview",
	`[class*="about"]`, `[class*="description"]`, `[class*="overview"]`,
}

var headquartersSelectors = []string{
	".address", ".location", ".headquarters",
	`[class*="address"]`, `[class*="location"]`, `[class*="office"]`,
}

var logoSelectors = []string{
	`img[class*="logo"]`, `img[alt*="logo"]`, ".logo img", "header img",
}

var industryKeywords = []string{
	"technology", "software", "fintech", "healthcare", "biotech",
	"e-commerce", "retail", "manufacturing", "consulting",
	"marketing", "advertising", "real estate", "education",
	"automotive", "aerospace", "energy", "telecommunications",
}

type employeeRange struct {
	label    string
	keywords []string
}

var employeeRanges = []employeeRange{
	{"1-10", []string{"1-10", "startup", "small team"}},
	{"11-50", []string{"11-50", "small company"}},
	{"51-200", []string{"51-200", "medium company"}},
	{"201-500", []string{"201-500", "growing company"}},
	{"501-1000", []string{"501-1000", "large company"}},
	{"1000+", []string{"1000+", "enterprise", "large corporation"}},
}

var fundingStages = []string{
	"seed", "series a", "series b", "series c", "series d",
	"pre-seed", "angel", "ipo", "acquired", "public",
}

var techKeywords = []string{
	"python", "javascript", "react", "nodejs", "java", "go",
	"kubernetes", "docker", "aws", "azure", "gcp", "postgresql",
	"mongodb", "redis", "elasticsearch", "kafka", "spark",
}

var benefitKeywords = []string{
	"health insurance", "dental", "vision", "401k", "retirement",
	"remote work", "flexible hours", "unlimited pto", "equity",
	"stock options", "gym membership", "free lunch",
}

var cultureKeywords = []string{
	"innovative", "collaborative", "fast-paced", "startup culture",
	"work-life balance", "diversity", "inclusion", "agile",
	"remote-first", "mission-driven", "customer-focused",
}

// page is one parsed document plus its flattened text.
type page struct {
	doc     *goquery.Document
	text    string
	lower   string
	baseURL string
}

type rule func(p *page, out *company.Data)

// rules run in this order; each sets at most one field.
var rules = []rule{
	func(p *page, out *company.Data) { out.Name = extractName(p) },
	func(p *page, out *company.Data) { out.Description = extractDescription(p) },
	func(p *page, out *company.Data) { out.Industry = firstKeyword(p.lower, industryKeywords) },
	func(p *page, out *company.Data) { out.Website = company.Ptr(p.baseURL) },
	func(p *page, out *company.Data) { out.EmployeeCount = extractEmployeeCount(p.text) },
	func(p *page, out *company.Data) { out.EmployeeCountRange = extractEmployeeRange(p.lower) },
	func(p *page, out *company.Data) { out.FundingStage = firstKeyword(p.lower, fundingStages) },
	func(p *page, out *company.Data) { out.TotalFunding = extractFundingAmount(p.text) },
	func(p *page, out *company.Data) { out.Headquarters = extractHeadquarters(p) },
	func(p *page, out *company.Data) { out.Locations = extractLocations(p.text) },
	func(p *page, out *company.Data) { out.TechStack = allKeywords(p.lower, techKeywords) },
	func(p *page, out *company.Data) { out.Benefits = allKeywords(p.lower, benefitKeywords) },
	func(p *page, out *company.Data) { out.CultureKeywords = allKeywords(p.lower, cultureKeywords) },
	func(p *page, out *company.Data) { out.LinkedInURL = extractSocialLink(p, "linkedin.com") },
	func(p *page, out *company.Data) { out.TwitterURL = extractSocialLink(p, "twitter.com") },
	func(p *page, out *company.Data) { out.LogoURL = extractLogoURL(p) },
	func(p *page, out *company.Data) { out.FoundedYear = extractFoundedYear(p.text) },
}

// Extractor runs the rule set. It holds no state and is safe for concurrent use.
type Extractor struct{}

// New returns an Extractor.
func New() Extractor {
	return Extractor{}
}

// Extract parses body and applies every rule. baseURL becomes the website and
// anchors relative logo paths.
func (Extractor) Extract(body, baseURL string) (company.Data, error) {
	return Extract(body, baseURL)
}

// Extract is the package-level form of Extractor.Extract.
func Extract(body, baseURL string) (company.Data, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return company.Data{}, fmt.Errorf("parse html: %w", err)
	}
	text := doc.Text()
	p := &page{
		doc:     doc,
		text:    text,
		lower:   strings.ToLower(text),
		baseURL: baseURL,
	}
	var out company.Data
	for _, apply := range rules {
		apply(p, &out)
	}
	return out, nil
}

func extractName(p *page) *string {
	if title := strings.TrimSpace(p.doc.Find("title").First().Text()); title != "" {
		for _, suffix := range titleSuffixes {
			if strings.HasSuffix(title, suffix) {
				return company.Ptr(strings.TrimSpace(strings.TrimSuffix(title, suffix)))
			}
		}
		return company.Ptr(title)
	}

	var heading *string
	p.doc.Find("h1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text != "" && utf8.RuneCountInString(text) < maxHeadingNameLen {
			heading = company.Ptr(text)
			return false
		}
		return true
	})
	if heading != nil {
		return heading
	}

	return metaContent(p.doc, `meta[property="og:title"]`, 1)
}

func extractDescription(p *page) *string {
	if desc := metaContent(p.doc, `meta[name="description"]`, minMetaDescriptionLen); desc != nil {
		return desc
	}
	if desc := metaContent(p.doc, `meta[property="og:description"]`, minMetaDescriptionLen); desc != nil {
		return desc
	}
	for _, selector := range descriptionSelectors {
		var found *string
		p.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if utf8.RuneCountInString(text) >= minAboutDescriptionLen {
				found = company.Ptr(truncateRunes(text, maxDescriptionLen))
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// metaContent returns the trimmed content attribute of the first element
// matching selector when it has at least minLen characters.
func metaContent(doc *goquery.Document, selector string, minLen int) *string {
	content, ok := doc.Find(selector).First().Attr("content")
	if !ok {
		return nil
	}
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) < minLen {
		return nil
	}
	return company.Ptr(content)
}

// extractEmployeeCount returns the largest head count mentioned.
func extractEmployeeCount(text string) *int {
	var best *int
	for _, match := range employeeCountPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(strings.ReplaceAll(match[1], ",", ""))
		if err != nil {
			continue
		}
		if best == nil || n > *best {
			best = company.Ptr(n)
		}
	}
	return best
}

func extractEmployeeRange(lower string) *string {
	for _, r := range employeeRanges {
		for _, keyword := range r.keywords {
			if strings.Contains(lower, keyword) {
				return company.Ptr(r.label)
			}
		}
	}
	return nil
}

// extractFundingAmount returns the first dollar amount, normalized to millions.
func extractFundingAmount(text string) *float64 {
	match := fundingPattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	amount, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil
	}
	switch strings.ToLower(match[2]) {
	case "billion", "b":
		amount *= 1000
	case "k":
		amount /= 1000
	}
	return company.Ptr(amount)
}

func extractHeadquarters(p *page) *string {
	for _, selector := range headquartersSelectors {
		var found *string
		p.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if text != "" && utf8.RuneCountInString(text) < maxHeadquartersLen {
				found = company.Ptr(text)
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// extractLocations returns distinct "City, ST" strings from the first
// five matches, in order of appearance.
func extractLocations(text string) []string {
	matches := locationPattern.FindAllString(text, maxLocations)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

func extractSocialLink(p *page, domain string) *string {
	var link *string
	p.doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if strings.Contains(href, domain) {
			link = company.Ptr(href)
			return false
		}
		return true
	})
	return link
}

func extractLogoURL(p *page) *string {
	base, err := url.Parse(p.baseURL)
	if err != nil {
		return nil
	}
	for _, selector := range logoSelectors {
		src, _ := p.doc.Find(selector).First().Attr("src")
		if src == "" {
			continue
		}
		ref, err := url.Parse(src)
		if err != nil {
			continue
		}
		return company.Ptr(base.ResolveReference(ref).String())
	}
	return nil
}

// extractFoundedYear tries each phrasing in order; a phrasing whose first
// year is implausible yields to the next one.
func extractFoundedYear(text string) *int {
	for _, pattern := range foundedPatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		year, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if year >= minFoundedYear && year <= maxFoundedYear {
			return company.Ptr(year)
		}
	}
	return nil
}

func firstKeyword(lower string, keywords []string) *string {
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return company.Ptr(titleCase(keyword))
		}
	}
	return nil
}

func allKeywords(lower string, keywords []string) []string {
	var found []string
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			found = append(found, titleCase(keyword))
		}
	}
	return found
}

// titleCase builds a fresh Caser per call; a Caser is not safe to share.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
