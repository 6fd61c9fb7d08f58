// Package apptrust implements the Trust Registry client over the AppTrust
// REST API using bearer-token authentication.
package apptrust

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bookverse/platform/internal/log"
	"github.com/bookverse/platform/internal/registry"
)

// DefaultTimeout bounds a single registry request.
const DefaultTimeout = 30 * time.Second

// defaultListLimit is the page size requested when listing versions.
const defaultListLimit = 1000

// Config holds the connection parameters for an AppTrust instance.
type Config struct {
	// BaseURL is the API root, e.g. https://company.jfrog.io/apptrust/api/v1.
	BaseURL string
	// Token is the bearer token used on every request.
	Token string
	// Timeout bounds each request; DefaultTimeout when zero.
	Timeout time.Duration
}

// Client talks to the AppTrust REST API. It implements registry.Client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ registry.Client = (*Client)(nil)

// New creates a client from the given config.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("registry base URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("registry token is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    trimTrailingSlash(cfg.BaseURL),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

type listVersionsResponse struct {
	Versions []registry.Version `json:"versions"`
}

// ListVersions fetches all versions of the application, requesting
// newest-created-first. Callers re-sort by SemVer themselves.
func (c *Client) ListVersions(ctx context.Context, appKey string) ([]registry.Version, error) {
	path := "/applications/" + url.PathEscape(appKey) + "/versions"
	query := url.Values{
		"limit":     {strconv.Itoa(defaultListLimit)},
		"order_by":  {"created"},
		"order_asc": {"false"},
	}

	var resp listVersionsResponse
	if err := c.do(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
		return nil, err
	}

	log.Debug(log.CatRegistry, "listed versions", "app", appKey, "count", len(resp.Versions))
	return resp.Versions, nil
}

type patchVersionRequest struct {
	Tag              *string             `json:"tag,omitempty"`
	Properties       map[string][]string `json:"properties,omitempty"`
	DeleteProperties []string            `json:"delete_properties,omitempty"`
}

// PatchVersion mutates tag and/or properties on one version.
func (c *Client) PatchVersion(ctx context.Context, appKey, version string, p registry.Patch) error {
	path := "/applications/" + url.PathEscape(appKey) + "/versions/" + url.PathEscape(version)
	body := patchVersionRequest{
		Tag:              p.Tag,
		Properties:       p.SetProperties,
		DeleteProperties: p.DeleteProperties,
	}

	if err := c.do(ctx, http.MethodPatch, path, nil, body, nil); err != nil {
		return err
	}

	log.Debug(log.CatRegistry, "patched version", "app", appKey, "version", version)
	return nil
}

// GetVersionContent fetches a version's sources and releasables.
func (c *Client) GetVersionContent(ctx context.Context, appKey, version string) (registry.VersionContent, error) {
	path := "/applications/" + url.PathEscape(appKey) + "/versions/" + url.PathEscape(version) + "/content"
	query := url.Values{"include": {"releasables"}}

	var content registry.VersionContent
	if err := c.do(ctx, http.MethodGet, path, query, nil, &content); err != nil {
		return registry.VersionContent{}, err
	}
	return content, nil
}

type createVersionRequest struct {
	Version string               `json:"version"`
	Tag     string               `json:"tag,omitempty"`
	Sources createVersionSources `json:"sources"`
}

type createVersionSources struct {
	Versions []registry.SourceVersion `json:"versions"`
}

// CreateVersion creates a new aggregate version under the application.
func (c *Client) CreateVersion(ctx context.Context, appKey string, req registry.CreateVersionRequest) error {
	path := "/applications/" + url.PathEscape(appKey) + "/versions"
	body := createVersionRequest{
		Version: req.Version,
		Tag:     req.Tag,
		Sources: createVersionSources{Versions: req.Sources},
	}

	if err := c.do(ctx, http.MethodPost, path, nil, body, nil); err != nil {
		return err
	}

	log.Info(log.CatRegistry, "created version", "app", appKey, "version", req.Version)
	return nil
}

// do executes one request, mapping transport failures to
// registry.ErrUnavailable and 404 responses to registry.ErrNotFound.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.ErrorErr(log.CatRegistry, "request failed", err, "method", method, "url", target)
		return fmt.Errorf("%w: %s %s: %v", registry.ErrUnavailable, method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", registry.ErrNotFound, method, target)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %s %s: HTTP %d: %s",
			registry.ErrUnavailable, method, target, resp.StatusCode, bodyExcerpt(resp.Body))
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("registry rejected %s %s: HTTP %d: %s",
			method, target, resp.StatusCode, bodyExcerpt(resp.Body))
	}

	if out == nil {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", registry.ErrUnavailable, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding registry response for %s %s: %w", method, target, err)
	}
	return nil
}

// bodyExcerpt reads up to 500 bytes of an error body for diagnostics.
func bodyExcerpt(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 500))
	if err != nil || len(raw) == 0 {
		return "<no body>"
	}
	return string(raw)
}
