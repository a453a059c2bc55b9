// Package vcs defines the version-control contract the blame engine and
// integration-node source program against, the way internal/graph
// defines a store-agnostic contract for the graph backend.
package vcs

import (
	"context"
	"time"
)

// LineRange is an inclusive 1-indexed line span.
type LineRange struct {
	Start int
	End   int
}

// PullRequestInfo is the subset of a pull request's metadata attached to a
// blame commit when GitHub can associate one.
type PullRequestInfo struct {
	Number   int
	Title    string
	URL      string
	Author   string
	MergedAt *time.Time
	State    string
	Body     string
}

// BlameCommit is one commit's contribution to a blamed range, consolidated
// by SHA so a commit that touches several of the range's lines appears once
// with every line range it owns.
type BlameCommit struct {
	SHA         string
	Message     string
	Author      string
	AuthorEmail string
	AuthorLogin string
	Timestamp   time.Time
	URL         string
	Additions   int
	Deletions   int
	LineRanges  []LineRange
	PullRequest *PullRequestInfo
}

// CodeRange identifies the span of a single graph node's declaration inside
// a file, the unit the blame engine attributes commits to.
type CodeRange struct {
	NodeID    string
	Path      string
	StartLine int
	EndLine   int
}

// Commit is a single commit's metadata, independent of any blame attribution.
type Commit struct {
	SHA        string
	Author     string
	Message    string
	Timestamp  time.Time
	ParentSHAs []string
}

// PullRequest is a merged or open pull request as returned by the REST list
// endpoints, the source integration nodes are built from.
type PullRequest struct {
	Number     int
	Title      string
	Body       string
	Author     string
	State      string
	BaseBranch string
	HeadBranch string
	CreatedAt  time.Time
	MergedAt   *time.Time
	ClosedAt   *time.Time
}

// Provider is the version-control contract: blame attribution, commit/PR
// listing, and patch retrieval, all scoped to one ref. Concrete
// implementations are per-vendor (GitHub today); nothing outside this
// package and its implementations may assume a vendor.
type Provider interface {
	// BlameRanges returns the commits that last touched each line range in
	// ranges, coalesced (ranges within the gap threshold merged into one
	// query) and keyed back out per node by CodeRange.NodeID.
	BlameRanges(ctx context.Context, path string, ranges []CodeRange) (map[string][]BlameCommit, error)

	// FetchCommits lists commits on the provider's configured ref since the
	// given time, in the order the provider's API returns them.
	FetchCommits(ctx context.Context, since time.Time) ([]Commit, error)

	// FetchPullRequests lists pull requests in the given state ("all",
	// "open", "closed").
	FetchPullRequests(ctx context.Context, state string) ([]PullRequest, error)

	// CommitPatch returns the full unified diff for a commit.
	CommitPatch(ctx context.Context, sha string) (string, error)

	// FileAtRef returns a file's content as of ref, or "" if it doesn't
	// exist there (e.g. added after ref).
	FileAtRef(ctx context.Context, path, ref string) (string, error)
}
