// Package github implements vcs.Provider against the GitHub REST and
// GraphQL APIs: rate-limited commit/PR listing and patch retrieval over
// go-github, plus a GraphQL blame query with range coalescing (blame.go).
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v57/github"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/graphforge/codegraph/internal/config"
	"github.com/graphforge/codegraph/internal/errs"
	"github.com/graphforge/codegraph/internal/vcs"
)

// Client is a GitHub-backed vcs.Provider for one repository at one ref.
type Client struct {
	owner, repo string
	ref         string
	token       string

	rest        *gogithub.Client
	rateLimiter *rate.Limiter
	httpClient  *http.Client

	blameCache       *cache.Cache
	coalesceGapLines int
}

// NewClient builds a Client scoped to owner/repo at ref. The blame query
// treats an empty ref or "HEAD" as "main".
func NewClient(owner, repo, ref string, cfg config.GitHubConfig, blame config.BlameConfig) *Client {
	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = 1
	}
	gap := blame.CoalesceGapLines
	if gap <= 0 {
		gap = 5
	}
	ttl := blame.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	rest := gogithub.NewClient(nil)
	if cfg.Token != "" {
		rest = rest.WithAuthToken(cfg.Token)
	}

	return &Client{
		owner: owner, repo: repo, ref: ref, token: cfg.Token,
		rest:             rest,
		rateLimiter:      rate.NewLimiter(rate.Limit(rateLimit), 1),
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		blameCache:       cache.New(ttl, ttl*2),
		coalesceGapLines: gap,
	}
}

func (c *Client) FetchCommits(ctx context.Context, since time.Time) ([]vcs.Commit, error) {
	opts := &gogithub.CommitsListOptions{
		SHA:         c.ref,
		Since:       since,
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	var out []vcs.Commit
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, errs.ExternalError(err, "github: rate limiter")
		}
		commits, resp, err := c.rest.Repositories.ListCommits(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, errs.ExternalError(err, "github: list commits")
		}
		for _, commit := range commits {
			mc := vcs.Commit{
				SHA:       commit.GetSHA(),
				Author:    commit.GetCommit().GetAuthor().GetName(),
				Message:   commit.GetCommit().GetMessage(),
				Timestamp: commit.GetCommit().GetAuthor().GetDate().Time,
			}
			for _, p := range commit.Parents {
				mc.ParentSHAs = append(mc.ParentSHAs, p.GetSHA())
			}
			out = append(out, mc)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *Client) FetchPullRequests(ctx context.Context, state string) ([]vcs.PullRequest, error) {
	opts := &gogithub.PullRequestListOptions{
		State:       state,
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	var out []vcs.PullRequest
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, errs.ExternalError(err, "github: rate limiter")
		}
		prs, resp, err := c.rest.PullRequests.List(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, errs.ExternalError(err, "github: list pull requests")
		}
		for _, pr := range prs {
			mpr := vcs.PullRequest{
				Number: pr.GetNumber(), Title: pr.GetTitle(), Body: pr.GetBody(),
				Author: pr.GetUser().GetLogin(), State: pr.GetState(),
				BaseBranch: pr.GetBase().GetRef(), HeadBranch: pr.GetHead().GetRef(),
				CreatedAt: pr.GetCreatedAt().Time,
			}
			if pr.MergedAt != nil {
				t := pr.MergedAt.Time
				mpr.MergedAt = &t
			}
			if pr.ClosedAt != nil {
				t := pr.ClosedAt.Time
				mpr.ClosedAt = &t
			}
			out = append(out, mpr)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *Client) CommitPatch(ctx context.Context, sha string) (string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", errs.ExternalError(err, "github: rate limiter")
	}
	commit, _, err := c.rest.Repositories.GetCommitRaw(ctx, c.owner, c.repo, sha, gogithub.RawOptions{Type: gogithub.Diff})
	if err != nil {
		return "", errs.ExternalError(err, "github: get commit patch")
	}
	return commit, nil
}

func (c *Client) FileAtRef(ctx context.Context, path, ref string) (string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", errs.ExternalError(err, "github: rate limiter")
	}
	content, _, resp, err := c.rest.Repositories.GetContents(ctx, c.owner, c.repo, path, &gogithub.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", errs.ExternalError(err, "github: get contents")
	}
	if content == nil {
		return "", nil
	}
	return content.GetContent()
}

// normalizeFilePath makes a node path relative to the repository root: the
// file:// scheme is stripped, and an absolute path is cut down to start at
// the repository-name component when one appears in it (a node indexed from
// an absolute checkout path keeps "<repo>/..." as its prefix). Other
// absolute paths just lose their leading slash. Pass repoName "" when no
// repository context exists, e.g. when filtering a patch that already names
// its files repo-relatively.
func normalizeFilePath(p, repoName string) string {
	clean := strings.TrimPrefix(p, "file://")
	if !strings.HasPrefix(clean, "/") {
		return clean
	}
	if repoName != "" {
		if idx := strings.Index(clean, "/"+repoName+"/"); idx != -1 {
			return clean[idx+1:]
		}
	}
	return strings.TrimPrefix(clean, "/")
}

// executeGraphQL runs a GraphQL request against the v4 API using a plain
// http.Client; go-github only covers the REST v3 surface, and the blame
// query is the sole GraphQL call, so the request is built by hand.
func (c *Client) executeGraphQL(ctx context.Context, query string, variables map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(map[string]interface{}{"query": query, "variables": variables})
	if err != nil {
		return nil, errs.InternalErrorf("github: marshal graphql request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.github.com/graphql", bytes.NewReader(body))
	if err != nil {
		return nil, errs.InternalErrorf("github: build graphql request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, errs.ExternalError(err, "github: rate limiter")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.ExternalError(err, "github: graphql request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.ExternalError(err, "github: read graphql response")
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errs.ExternalError(err, "github: decode graphql response")
	}
	return parsed, nil
}
