// Package dhis is a minimal DHIS2 Web API client covering what the import
// pipeline needs: connectivity checks, duplicate queries on the subject
// identifier data element, and event creation.
package dhis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/openvital/smartva-bridge/internal/pkg/httpretry"
)

// Config holds everything the client needs to talk to one DHIS2 instance.
type Config struct {
	BaseURL    string
	APIVersion string
	Username   string
	Password   string

	// Token auth via the client-credentials grant, used instead of basic
	// auth when TokenURL is set.
	TokenURL     string
	ClientID     string
	ClientSecret string

	Program     string
	RootOrgUnit string
	// SIDElement is the data element UID holding the study identifier;
	// duplicate queries filter on it.
	SIDElement string

	Timeout    time.Duration
	MaxRetries int
}

// Client is a DHIS2 Web API client.
type Client struct {
	cfg        Config
	apiBase    string
	basicAuth  bool
	httpClient httpretry.HTTPDoer
}

// NewClient creates a new DHIS2 API client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	inner := &http.Client{Timeout: cfg.Timeout}
	basicAuth := true
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		inner = cc.Client(context.Background())
		inner.Timeout = cfg.Timeout
		basicAuth = false
	}

	return &Client{
		cfg:        cfg,
		apiBase:    strings.TrimRight(cfg.BaseURL, "/") + "/api/" + cfg.APIVersion,
		basicAuth:  basicAuth,
		httpClient: httpretry.NewRetryClient(inner, cfg.MaxRetries),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// doRequest performs an authenticated request and returns the raw status
// and body. Transport failures are the only error case; HTTP error statuses
// are left to the caller, which may need the body to classify them.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, payload []byte) (int, []byte, error) {
	fullURL := c.apiBase + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.basicAuth {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}

	return resp.StatusCode, body, nil
}

// get performs a GET and decodes a 200 response into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	status, body, err := c.doRequest(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", status, excerpt(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// Ping fetches /system/info, verifying connectivity and credentials.
func (c *Client) Ping(ctx context.Context) (*SystemInfo, error) {
	var info SystemInfo
	if err := c.get(ctx, "/system/info", nil, &info); err != nil {
		return nil, fmt.Errorf("fetching system info: %w", err)
	}
	return &info, nil
}

// IsDuplicate reports whether an event carrying the given study identifier
// already exists anywhere under the root org unit. Query failures are
// returned as errors, never folded into the boolean.
func (c *Client) IsDuplicate(ctx context.Context, sid string) (bool, error) {
	params := url.Values{}
	params.Set("program", c.cfg.Program)
	params.Set("orgUnit", c.cfg.RootOrgUnit)
	params.Set("ouMode", "DESCENDANTS")
	params.Set("filter", fmt.Sprintf("%s:eq:%s", c.cfg.SIDElement, sid))
	params.Set("fields", "event")
	params.Set("pageSize", "1")

	var resp eventList
	if err := c.get(ctx, "/events", params, &resp); err != nil {
		return false, fmt.Errorf("querying events for sid %s: %w", sid, err)
	}
	return len(resp.Events) > 0, nil
}

// PostEvent submits one event. On acceptance it returns the server-side
// event UID. Any rejection, whether an HTTP error status or an ERROR
// summary inside a 200, comes back as an *ImportError.
func (c *Client) PostEvent(ctx context.Context, ev Event) (string, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("encoding event: %w", err)
	}

	status, body, err := c.doRequest(ctx, http.MethodPost, "/events", nil, payload)
	if err != nil {
		return "", fmt.Errorf("posting event: %w", err)
	}

	var resp importResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if status >= 200 && status < 300 {
			return "", fmt.Errorf("parsing import response: %w", err)
		}
		return "", &ImportError{Status: status, Reason: excerpt(body), Payload: payload}
	}

	summary := resp.Response.first()
	accepted := status >= 200 && status < 300 &&
		(resp.Response == nil || resp.Response.Status == "SUCCESS" || resp.Response.Status == "OK") &&
		(summary == nil || summary.Status == "SUCCESS")
	if accepted {
		if summary != nil {
			return summary.Reference, nil
		}
		return "", nil
	}

	ie := &ImportError{Status: status, Payload: payload}
	if summary != nil {
		ie.Reason = summary.Description
		ie.Conflicts = summary.Conflicts
	}
	if ie.Reason == "" {
		ie.Reason = resp.Message
	}
	if ie.Reason == "" {
		ie.Reason = excerpt(body)
	}
	return "", ie
}

// excerpt flattens a response body into a short single-line string for
// error messages.
func excerpt(body []byte) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
