// Package jira fetches tickets from Jira Cloud over the REST v3 API.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/drewdunne/prwatch/internal/fault"
)

const service = "jira"

// domainPattern accepts Jira Cloud site hosts only.
var domainPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+\.atlassian\.net$`)

// Credentials authenticate against one Jira site.
type Credentials struct {
	Domain string
	Email  string
	Token  string
}

// Ticket is the part of an issue the correlation pipeline uses.
type Ticket struct {
	ID          string
	Summary     string
	Description string
}

// ValidateDomain rejects anything that is not a Jira Cloud host.
func ValidateDomain(domain string) error {
	if !domainPattern.MatchString(domain) {
		return fault.New(fault.ErrInvalidConfig, service, fmt.Sprintf("invalid domain %q: want <site>.atlassian.net", domain))
	}
	return nil
}

func (c Credentials) check() error {
	if err := ValidateDomain(c.Domain); err != nil {
		return err
	}
	if c.Email == "" || c.Token == "" {
		return fault.New(fault.ErrMissingCredential, service, "email and API token are required")
	}
	return nil
}

// Client talks to Jira. It holds no credentials; each call supplies them.
type Client struct {
	baseURL string
	client  *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL sends requests to url instead of https://{domain} (for testing).
// Domains are still validated.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// New creates a Jira client.
func New(opts ...Option) *Client {
	c := &Client{
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) endpoint(domain, path string) string {
	if c.baseURL != "" {
		return c.baseURL + path
	}
	return "https://" + domain + path
}

func (c *Client) get(ctx context.Context, creds Credentials, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(creds.Domain, path), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(creds.Email, creds.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fault.Unavailable(service, err)
	}
	return resp, nil
}

// FetchTicket retrieves the summary and description of issue id.
func (c *Client) FetchTicket(ctx context.Context, creds Credentials, id string) (*Ticket, error) {
	if err := creds.check(); err != nil {
		return nil, err
	}

	resp, err := c.get(ctx, creds, "/rest/api/3/issue/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		ferr := fault.FromStatus(service, resp.StatusCode, errorMessage(body))
		if resp.StatusCode == http.StatusNotFound {
			ferr.Kind = fault.ErrTicketNotFound
		}
		return nil, ferr
	}

	var issue issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return nil, &fault.Error{Kind: fault.ErrUpstreamUnavailable, Service: service, Status: resp.StatusCode, Message: "decoding issue", Err: err}
	}

	return &Ticket{
		ID:          id,
		Summary:     issue.Fields.Summary,
		Description: flattenDescription(issue.Fields.Description),
	}, nil
}

// ValidateCredential probes the current-user endpoint. A non-2xx answer means
// the credentials are not usable and is reported as false, not as an error.
func (c *Client) ValidateCredential(ctx context.Context, creds Credentials) (bool, error) {
	if err := creds.check(); err != nil {
		return false, err
	}

	resp, err := c.get(ctx, creds, "/rest/api/3/myself")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}

type issueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string          `json:"summary"`
		Description json.RawMessage `json:"description"`
	} `json:"fields"`
}

type errorResponse struct {
	ErrorMessages []string `json:"errorMessages"`
}

func errorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && len(er.ErrorMessages) > 0 {
		return strings.Join(er.ErrorMessages, "; ")
	}
	return strings.TrimSpace(string(body))
}
