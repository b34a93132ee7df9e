package enricher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/company-analyzer/internal/company"
	"github.com/JakeFAU/company-analyzer/internal/retry"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	crunchbaseName           = "crunchbase"
	crunchbaseDefaultBaseURL = "https://api.crunchbase.com/api/v4"
	crunchbaseKeyHeader      = "X-cb-user-key"
	crunchbaseNotFound       = "Company not found in Crunchbase"
	maxResponseBytes         = 2 << 20
)

var (
	crunchbaseSearchFields = []string{"identifier", "name", "short_description", "website"}
	crunchbaseDetailFields = []string{
		"name", "short_description", "long_description", "website",
		"num_employees_enum", "funding_stage", "funding_total", "founded_on",
		"headquarters_location", "categories", "linkedin", "twitter", "logo_url",
	}
)

// CrunchbaseOptions configures CrunchbaseProvider.
type CrunchbaseOptions struct {
	Enabled bool
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Retry   retry.Policy
}

// CrunchbaseProvider looks companies up in the Crunchbase v4 API.
type CrunchbaseProvider struct {
	opts   CrunchbaseOptions
	client *http.Client
	logger *zap.Logger
}

// NewCrunchbaseProvider builds the provider. A nil client gets one with
// opts.Timeout applied.
func NewCrunchbaseProvider(opts CrunchbaseOptions, client *http.Client, logger *zap.Logger) *CrunchbaseProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = crunchbaseDefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CrunchbaseProvider{opts: opts, client: client, logger: logger}
}

// Name implements Provider.
func (p *CrunchbaseProvider) Name() string { return crunchbaseName }

// Enabled implements Provider.
func (p *CrunchbaseProvider) Enabled() bool { return p.opts.Enabled && p.opts.APIKey != "" }

// CanEnrich implements Provider.
func (p *CrunchbaseProvider) CanEnrich(data company.Data) bool {
	return p.Enabled() && (company.HasText(data.Name) || company.HasText(data.Website))
}

// Enrich implements Provider.
func (p *CrunchbaseProvider) Enrich(ctx context.Context, data company.Data) (Result, error) {
	start := time.Now()

	query := strings.TrimSpace(company.Deref(data.Name))
	if query == "" {
		query = strings.TrimSpace(company.Deref(data.Website))
	}

	uuid, err := p.search(ctx, query)
	if errors.Is(err, ErrCompanyNotFound) {
		return failure(crunchbaseName, crunchbaseNotFound, start), nil
	}
	if err != nil {
		return Result{}, err
	}

	props, err := p.details(ctx, uuid)
	if err != nil {
		return Result{}, err
	}
	return success(crunchbaseName, data, props.toData(), start), nil
}

type searchRequest struct {
	FieldIDs []string `json:"field_ids"`
	Query    string   `json:"query,omitempty"`
}

type searchResponse struct {
	Entities []struct {
		UUID       string `json:"uuid"`
		Properties struct {
			Identifier struct {
				UUID string `json:"uuid"`
			} `json:"identifier"`
		} `json:"properties"`
	} `json:"entities"`
}

func (p *CrunchbaseProvider) search(ctx context.Context, query string) (string, error) {
	payload, err := json.Marshal(searchRequest{FieldIDs: crunchbaseSearchFields, Query: query})
	if err != nil {
		return "", eris.Wrap(err, "encode search request")
	}

	var resp searchResponse
	endpoint := p.opts.BaseURL + "/searches/organizations"
	if err := p.call(ctx, http.MethodPost, endpoint, payload, &resp); err != nil {
		return "", eris.Wrap(err, "search organizations")
	}
	if len(resp.Entities) == 0 {
		return "", ErrCompanyNotFound
	}
	first := resp.Entities[0]
	id := first.UUID
	if id == "" {
		id = first.Properties.Identifier.UUID
	}
	if id == "" {
		return "", ErrCompanyNotFound
	}
	return id, nil
}

func (p *CrunchbaseProvider) details(ctx context.Context, id string) (organization, error) {
	endpoint := fmt.Sprintf("%s/entities/organizations/%s?%s",
		p.opts.BaseURL,
		url.PathEscape(id),
		url.Values{"field_ids": {strings.Join(crunchbaseDetailFields, ",")}}.Encode(),
	)
	var resp struct {
		Properties organization `json:"properties"`
	}
	if err := p.call(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return organization{}, eris.Wrap(err, "fetch organization")
	}
	return resp.Properties, nil
}

// call performs one API request with retries and decodes the JSON body into out.
func (p *CrunchbaseProvider) call(ctx context.Context, method, endpoint string, body []byte, out any) error {
	policy := p.opts.Retry
	policy.OnRetry = func(attempt int, err error) {
		p.logger.Warn("retrying crunchbase request",
			zap.String("method", method),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	raw, err := retry.DoVal(ctx, policy, func(ctx context.Context) ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, eris.Wrap(err, "build request")
		}
		req.Header.Set(crunchbaseKeyHeader, p.opts.APIKey)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close() //nolint:errcheck // read-only body

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, eris.Wrap(err, "read response")
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		statusErr := eris.Errorf("unexpected status %d", resp.StatusCode)
		if retry.IsTransientStatus(resp.StatusCode) {
			return nil, retry.Transient(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

// valueString decodes either a bare JSON string or an object carrying the
// string under "value", both of which appear in Crunchbase payloads.
type valueString string

func (v *valueString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = valueString(s)
		return nil
	}
	var wrapped struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return err
	}
	if len(wrapped.Value) == 0 || wrapped.Value[0] != '"' {
		return nil
	}
	var s string
	if err := json.Unmarshal(wrapped.Value, &s); err != nil {
		return err
	}
	*v = valueString(s)
	return nil
}

type organization struct {
	Name                 valueString `json:"name"`
	ShortDescription     valueString `json:"short_description"`
	LongDescription      valueString `json:"long_description"`
	Website              valueString `json:"website"`
	NumEmployeesEnum     valueString `json:"num_employees_enum"`
	FundingStage         valueString `json:"funding_stage"`
	HeadquartersLocation valueString `json:"headquarters_location"`
	FoundedOn            valueString `json:"founded_on"`
	LinkedIn             valueString `json:"linkedin"`
	Twitter              valueString `json:"twitter"`
	LogoURL              valueString `json:"logo_url"`
	FundingTotal         *struct {
		ValueUSD *float64 `json:"value_usd"`
	} `json:"funding_total"`
	Categories []struct {
		Value string `json:"value"`
	} `json:"categories"`
}

func (o organization) toData() company.Data {
	var d company.Data
	d.Name = optional(o.Name)
	d.Description = optional(o.ShortDescription)
	if d.Description == nil {
		d.Description = optional(o.LongDescription)
	}
	d.Website = optional(o.Website)
	d.EmployeeCountRange = optional(o.NumEmployeesEnum)
	d.FundingStage = optional(o.FundingStage)
	if o.FundingTotal != nil && o.FundingTotal.ValueUSD != nil {
		d.TotalFunding = company.Ptr(*o.FundingTotal.ValueUSD / 1_000_000)
	}
	if founded := string(o.FoundedOn); len(founded) >= 4 {
		var year int
		if _, err := fmt.Sscanf(founded[:4], "%d", &year); err == nil {
			d.FoundedYear = &year
		}
	}
	d.Headquarters = optional(o.HeadquartersLocation)
	if len(o.Categories) > 0 && o.Categories[0].Value != "" {
		d.Industry = company.Ptr(o.Categories[0].Value)
	}
	d.LinkedInURL = optional(o.LinkedIn)
	if handle := strings.TrimPrefix(string(o.Twitter), "@"); handle != "" {
		d.TwitterURL = company.Ptr("https://twitter.com/" + handle)
	}
	d.LogoURL = optional(o.LogoURL)
	return d
}

func optional(v valueString) *string {
	if strings.TrimSpace(string(v)) == "" {
		return nil
	}
	return company.Ptr(string(v))
}
