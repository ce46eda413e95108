package gitlab_http

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/davarch/ci-board/internal/domain"
)

// APIError carries the GitLab HTTP status so callers can map not-found and
// auth failures to their own responses.
type APIError struct {
	StatusCode int
	Status     string
}

func (e *APIError) Error() string {
	return "gitlab " + e.Status
}

type Client struct {
	mu      sync.RWMutex
	baseUrl string
	token   string

	hc *http.Client
}

func New(baseUrl string, token string, timeout time.Duration) *Client {
	tr := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseUrl: trimSlash(baseUrl),
		token:   token,
		hc:      &http.Client{Transport: tr, Timeout: timeout},
	}
}

// UpdateCredentials swaps the base URL and token, used on config reload.
func (c *Client) UpdateCredentials(baseUrl, token string) {
	c.mu.Lock()
	c.baseUrl = trimSlash(baseUrl)
	c.token = token
	c.mu.Unlock()
}

func (c *Client) credentials() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseUrl, c.token
}

type projectDTO struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
	Visibility        string `json:"visibility"`
	DefaultBranch     string `json:"default_branch"`
	Description       string `json:"description"`
}

type branchDTO struct {
	Name   string `json:"name"`
	Commit struct {
		ID string `json:"id"`
	} `json:"commit"`
	Default bool `json:"default"`
}

func (c *Client) Project(ctx context.Context, path string) (domain.GitLabProject, error) {
	base, _ := c.credentials()
	var dto projectDTO
	err := c.getJSON(ctx, fmt.Sprintf("%s/api/v4/projects/%s", base, url.PathEscape(path)), &dto)
	if err != nil {
		return domain.GitLabProject{}, err
	}
	return mapProject(dto), nil
}

func (c *Client) Branches(ctx context.Context, projectID int64) ([]domain.Branch, error) {
	base, _ := c.credentials()
	var dtos []branchDTO
	err := c.getJSON(ctx, fmt.Sprintf("%s/api/v4/projects/%d/repository/branches", base, projectID), &dtos)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Branch, 0, len(dtos))
	for _, b := range dtos {
		out = append(out, domain.Branch{
			Name:     b.Name,
			CommitID: b.Commit.ID,
			Default:  b.Default,
		})
	}
	return out, nil
}

// SearchProjects returns the projects whose name or full path starts with
// the pattern. GitLab's search matches substrings, so the prefix filter is
// applied on top of the API response.
func (c *Client) SearchProjects(ctx context.Context, pattern string) ([]domain.GitLabProject, error) {
	base, _ := c.credentials()
	var dtos []projectDTO
	err := c.getJSON(ctx, fmt.Sprintf("%s/api/v4/projects?search=%s", base, url.QueryEscape(pattern)), &dtos)
	if err != nil {
		return nil, err
	}

	var out []domain.GitLabProject
	for _, p := range dtos {
		if strings.HasPrefix(p.Name, pattern) || strings.HasPrefix(p.PathWithNamespace, pattern) {
			out = append(out, mapProject(p))
		}
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	op := func() error {
		_, token := c.credentials()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("PRIVATE-TOKEN", token)

		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}

		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusTooManyRequests {
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if sec, _ := strconv.Atoi(ra); sec > 0 {
					select {
					case <-time.After(time.Duration(sec) * time.Second):
					case <-ctx.Done():
						return ctx.Err()
					}
					return fmt.Errorf("retry after due to 429")
				}
			}

			return fmt.Errorf("gitlab 429")
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("gitlab %s", resp.Status)
		}

		if resp.StatusCode >= 300 {
			return backoff.Permanent(&APIError{StatusCode: resp.StatusCode, Status: resp.Status})
		}

		return json.NewDecoder(resp.Body).Decode(out)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 300 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 5 * time.Second

	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

func mapProject(dto projectDTO) domain.GitLabProject {
	return domain.GitLabProject{
		ID:                dto.ID,
		Name:              dto.Name,
		PathWithNamespace: dto.PathWithNamespace,
		WebURL:            dto.WebURL,
		Visibility:        dto.Visibility,
		DefaultBranch:     dto.DefaultBranch,
		Description:       dto.Description,
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
