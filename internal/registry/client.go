package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/oshokin/archpack/internal/domain/artifact"
	"github.com/oshokin/archpack/internal/version"
)

const (
	// DefaultBaseURL is the public GitHub API endpoint.
	DefaultBaseURL = "https://api.github.com"

	maxErrorBody   = 64 << 10
	maxFetchedBody = 1 << 20
)

// Reader lists releases and downloads their assets.
type Reader interface {
	Release(ctx context.Context, tag string) (*artifact.Release, error)
	Tags(ctx context.Context, limit int) ([]string, error)
	Download(ctx context.Context, asset artifact.Asset, dest string, progress func(delta int64)) (int64, error)
	Fetch(ctx context.Context, asset artifact.Asset) ([]byte, error)
}

// Publisher creates releases and uploads assets.
type Publisher interface {
	CheckAuth(ctx context.Context) error
	EnsureRelease(ctx context.Context, tag string) (*artifact.Release, error)
	Upload(ctx context.Context, release *artifact.Release, path string, clobber bool) (artifact.Asset, error)
	DeleteAsset(ctx context.Context, id int64) error
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, DefaultBaseURL when empty.
	BaseURL string
	// Repository is the "owner/repo" that holds the releases.
	Repository string
	// Token authenticates requests; reads of public repositories work without it.
	Token string
	// Timeout bounds connection setup and response headers when HTTPClient is nil.
	// Bodies are not bounded so large downloads are only limited by the context.
	Timeout time.Duration
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Client implements Reader and Publisher over the GitHub REST API.
type Client struct {
	// baseURL is the API root without trailing slash.
	baseURL string
	// owner and repo identify the repository.
	owner, repo string
	// token is sent as a bearer token when set.
	token string
	// httpClient performs the requests.
	httpClient *http.Client
}

var (
	_ Reader    = (*Client)(nil)
	_ Publisher = (*Client)(nil)
)

// NewClient validates the config and creates a client.
func NewClient(cfg Config) (*Client, error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(cfg.Repository), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRepository, cfg.Repository)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(cfg.Timeout)
	}

	return &Client{
		baseURL:    baseURL,
		owner:      owner,
		repo:       repo,
		token:      cfg.Token,
		httpClient: httpClient,
	}, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
		transport.TLSHandshakeTimeout = timeout
		transport.ResponseHeaderTimeout = timeout
	}

	return &http.Client{Transport: transport}
}

// Repository returns the "owner/repo" name.
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

func (c *Client) repoURL(suffix string) string {
	return c.baseURL + "/repos/" + c.owner + "/" + c.repo + suffix
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", version.UserAgent())

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return req, nil
}

// send performs the request and converts transport failures and non-2xx statuses.
// The caller closes the body of a successful response.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, req.Method, req.URL.Redacted(), err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return nil, parseAPIError(resp.StatusCode, body)
	}

	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, in, out any) error {
	var body io.Reader

	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		body = bytes.NewReader(encoded)
	}

	req, err := c.newRequest(ctx, method, url, body)
	if err != nil {
		return err
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", url, err)
	}

	return nil
}
