package github

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/graphforge/codegraph/internal/errs"
	"github.com/graphforge/codegraph/internal/telemetry"
	"github.com/graphforge/codegraph/internal/vcs"
)

// commitSHAPattern recognizes a full or short commit SHA, distinguishing
// it from a branch/tag name, which decides which of the two GraphQL query
// shapes to build.
var commitSHAPattern = regexp.MustCompile(`^[a-fA-F0-9]{7,40}$`)

const blameByObjectQuery = `
query ($owner: String!, $name: String!, $oid: GitObjectID!, $path: String!) {
  repository(owner: $owner, name: $name) {
    object(oid: $oid) {
      ... on Commit {
        blame(path: $path) {
          ranges {
            startingLine
            endingLine
            commit {
              oid
              committedDate
              message
              additions
              deletions
              author { name email user { login } }
              url
              associatedPullRequests(first: 1) {
                nodes { number title bodyText url author { login } mergedAt state }
              }
            }
          }
        }
      }
    }
  }
}`

const blameByRefQuery = `
query ($owner: String!, $name: String!, $ref: String!, $path: String!) {
  repository(owner: $owner, name: $name) {
    ref(qualifiedName: $ref) {
      target {
        ... on Commit {
          blame(path: $path) {
            ranges {
              startingLine
              endingLine
              commit {
                oid
                committedDate
                message
                additions
                deletions
                author { name email user { login } }
                url
                associatedPullRequests(first: 1) {
                  nodes { number title bodyText url author { login } mergedAt state }
                }
              }
            }
          }
        }
      }
    }
  }
}`

// buildBlameQuery selects the object(oid:) shape for a commit SHA ref or
// the ref(qualifiedName:) shape for a branch/tag name.
func (c *Client) buildBlameQuery(path, ref string) (string, map[string]interface{}) {
	clean := normalizeFilePath(path, c.repo)
	refName := ref
	if refName == "" || refName == "HEAD" {
		refName = "main"
	}

	if commitSHAPattern.MatchString(refName) {
		return blameByObjectQuery, map[string]interface{}{
			"owner": c.owner, "name": c.repo, "oid": refName, "path": clean,
		}
	}
	return blameByRefQuery, map[string]interface{}{
		"owner": c.owner, "name": c.repo, "ref": refName, "path": clean,
	}
}

// parseBlameResponse walks blame.ranges and consolidates by commit SHA: a
// commit that owns several ranges in the file gets one BlameCommit with
// every owned range, not one entry per range.
func parseBlameResponse(resp map[string]interface{}) ([]vcs.BlameCommit, error) {
	if errsRaw, ok := resp["errors"]; ok {
		return nil, errs.ExternalErrorf(fmt.Errorf("%v", errsRaw), "github: graphql blame query returned errors")
	}

	data, _ := resp["data"].(map[string]interface{})
	repoData, _ := data["repository"].(map[string]interface{})

	var blameData map[string]interface{}
	if ref, ok := repoData["ref"].(map[string]interface{}); ok && ref != nil {
		target, _ := ref["target"].(map[string]interface{})
		blameData, _ = target["blame"].(map[string]interface{})
	} else if obj, ok := repoData["object"].(map[string]interface{}); ok && obj != nil {
		blameData, _ = obj["blame"].(map[string]interface{})
	}
	if blameData == nil {
		return nil, errs.InternalErrorf("github: blame data missing from graphql response")
	}

	ranges, _ := blameData["ranges"].([]interface{})

	var commits []vcs.BlameCommit
	seen := map[string]int{}

	for _, rawRange := range ranges {
		r, ok := rawRange.(map[string]interface{})
		if !ok {
			continue
		}
		commitData, _ := r["commit"].(map[string]interface{})
		sha, _ := commitData["oid"].(string)
		if sha == "" {
			continue
		}
		lr := vcs.LineRange{Start: intOf(r["startingLine"]), End: intOf(r["endingLine"])}

		if idx, ok := seen[sha]; ok {
			commits[idx].LineRanges = append(commits[idx].LineRanges, lr)
			continue
		}

		seen[sha] = len(commits)
		commits = append(commits, vcs.BlameCommit{
			SHA:         sha,
			Message:     stringOf(commitData["message"]),
			Author:      authorNameOf(commitData),
			AuthorEmail: authorFieldOf(commitData, "email"),
			AuthorLogin: authorLoginOf(commitData),
			Timestamp:   timeOf(commitData["committedDate"]),
			URL:         stringOf(commitData["url"]),
			Additions:   intOf(commitData["additions"]),
			Deletions:   intOf(commitData["deletions"]),
			LineRanges:  []vcs.LineRange{lr},
			PullRequest: prInfoOf(commitData),
		})
	}

	return commits, nil
}

// BlameRanges implements vcs.Provider: merges overlapping/nearby ranges
// (within coalesceGapLines), issues one blame query per merged range,
// caches by (path, range, ref), and re-attributes each merged range's
// commits back to the individual CodeRanges whose span overlaps.
func (c *Client) BlameRanges(ctx context.Context, path string, ranges []vcs.CodeRange) (map[string][]vcs.BlameCommit, error) {
	merged := mergeLineRanges(ranges, c.coalesceGapLines)

	results := make(map[string][]vcs.BlameCommit, len(ranges))
	for _, group := range merged {
		commits, err := c.blameForRange(ctx, path, group.start, group.end)
		if err != nil {
			return nil, err
		}
		for _, node := range group.nodes {
			var attributed []vcs.BlameCommit
			for _, commit := range commits {
				if rangesOverlap(commit.LineRanges, node.StartLine, node.EndLine) {
					attributed = append(attributed, commit)
				}
			}
			results[node.NodeID] = attributed
		}
	}
	return results, nil
}

func (c *Client) blameForRange(ctx context.Context, path string, start, end int) ([]vcs.BlameCommit, error) {
	cacheKey := fmt.Sprintf("%s:%d-%d@%s", path, start, end, c.ref)
	if cached, ok := c.blameCache.Get(cacheKey); ok {
		telemetry.Default().RecordBlameCacheLookup(ctx, true)
		return cached.([]vcs.BlameCommit), nil
	}
	telemetry.Default().RecordBlameCacheLookup(ctx, false)

	queryStart := time.Now()
	query, vars := c.buildBlameQuery(path, c.ref)
	resp, err := c.executeGraphQL(ctx, query, vars)
	telemetry.Default().BlameQueryDuration.Record(ctx, time.Since(queryStart).Seconds())
	if err != nil {
		return nil, err
	}
	commits, err := parseBlameResponse(resp)
	if err != nil {
		return nil, err
	}

	c.blameCache.SetDefault(cacheKey, commits)
	return commits, nil
}

type mergedRange struct {
	start, end int
	nodes      []vcs.CodeRange
}

// mergeLineRanges sorts nodes by start line and folds any node starting
// within gapLines of the current range's end into that range, so nearby
// nodes share one blame query.
func mergeLineRanges(nodes []vcs.CodeRange, gapLines int) []mergedRange {
	if len(nodes) == 0 {
		return nil
	}
	sorted := append([]vcs.CodeRange(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartLine < sorted[j].StartLine })

	var merged []mergedRange
	current := mergedRange{start: sorted[0].StartLine, end: sorted[0].EndLine, nodes: []vcs.CodeRange{sorted[0]}}
	for _, n := range sorted[1:] {
		if n.StartLine <= current.end+gapLines {
			if n.EndLine > current.end {
				current.end = n.EndLine
			}
			current.nodes = append(current.nodes, n)
		} else {
			merged = append(merged, current)
			current = mergedRange{start: n.StartLine, end: n.EndLine, nodes: []vcs.CodeRange{n}}
		}
	}
	merged = append(merged, current)
	return merged
}

// rangesOverlap reports whether any of the commit's owned ranges intersects
// [start, end].
func rangesOverlap(ranges []vcs.LineRange, start, end int) bool {
	for _, r := range ranges {
		if !(r.End < start || r.Start > end) {
			return true
		}
	}
	return false
}

func intOf(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func stringOf(v interface{}) string {
	s, _ := v.(string)
	return s
}

func timeOf(v interface{}) time.Time {
	s, _ := v.(string)
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func authorFieldOf(commitData map[string]interface{}, field string) string {
	author, _ := commitData["author"].(map[string]interface{})
	if author == nil {
		return ""
	}
	return stringOf(author[field])
}

func authorNameOf(commitData map[string]interface{}) string {
	if name := authorFieldOf(commitData, "name"); name != "" {
		return name
	}
	return "Unknown"
}

func authorLoginOf(commitData map[string]interface{}) string {
	author, _ := commitData["author"].(map[string]interface{})
	if author == nil {
		return ""
	}
	user, _ := author["user"].(map[string]interface{})
	if user == nil {
		return ""
	}
	return stringOf(user["login"])
}

func prInfoOf(commitData map[string]interface{}) *vcs.PullRequestInfo {
	assoc, _ := commitData["associatedPullRequests"].(map[string]interface{})
	if assoc == nil {
		return nil
	}
	nodes, _ := assoc["nodes"].([]interface{})
	if len(nodes) == 0 {
		return nil
	}
	pr, _ := nodes[0].(map[string]interface{})
	if pr == nil {
		return nil
	}
	author, _ := pr["author"].(map[string]interface{})
	login := ""
	if author != nil {
		login = stringOf(author["login"])
	}
	info := &vcs.PullRequestInfo{
		Number: intOf(pr["number"]),
		Title:  stringOf(pr["title"]),
		URL:    stringOf(pr["url"]),
		Author: login,
		State:  stringOf(pr["state"]),
		Body:   stringOf(pr["bodyText"]),
	}
	if mergedAt := stringOf(pr["mergedAt"]); mergedAt != "" {
		if t, err := time.Parse(time.RFC3339, mergedAt); err == nil {
			info.MergedAt = &t
		}
	}
	return info
}
