package github

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphforge/codegraph/internal/vcs"
)

func TestBuildBlameQuery_DispatchesByRefShape(t *testing.T) {
	c := &Client{owner: "acme", repo: "widgets"}

	query, vars := c.buildBlameQuery("/src/main.go", "a1b2c3d4e5f6")
	require.Equal(t, blameByObjectQuery, query)
	require.Equal(t, "a1b2c3d4e5f6", vars["oid"])
	require.Equal(t, "src/main.go", vars["path"], "leading slash stripped")

	query, vars = c.buildBlameQuery("src/main.go", "feature/my-branch")
	require.Equal(t, blameByRefQuery, query)
	require.Equal(t, "feature/my-branch", vars["ref"])

	_, vars = c.buildBlameQuery("src/main.go", "HEAD")
	require.Equal(t, "main", vars["ref"], "HEAD defaults to main")
}

func TestNormalizeFilePath(t *testing.T) {
	require.Equal(t, "internal/foo.go", normalizeFilePath("file://internal/foo.go", "widgets"),
		"file:// scheme stripped from ingested node paths")
	require.Equal(t, "widgets/src/main.go", normalizeFilePath("file:///home/user/widgets/src/main.go", "widgets"),
		"absolute checkout path cut down to the repository-name prefix")
	require.Equal(t, "src/main.go", normalizeFilePath("/src/main.go", "widgets"),
		"absolute path without the repo component loses its leading slash")
	require.Equal(t, "src/main.go", normalizeFilePath("src/main.go", ""),
		"already-relative paths pass through")
}

func TestParseBlameResponse_ConsolidatesByCommitSHA(t *testing.T) {
	resp := map[string]interface{}{
		"data": map[string]interface{}{
			"repository": map[string]interface{}{
				"object": map[string]interface{}{
					"blame": map[string]interface{}{
						"ranges": []interface{}{
							map[string]interface{}{
								"startingLine": float64(1), "endingLine": float64(5),
								"commit": map[string]interface{}{
									"oid": "sha1", "message": "first", "url": "u1", "committedDate": "2024-01-01T00:00:00Z",
									"author": map[string]interface{}{"name": "alice"},
								},
							},
							map[string]interface{}{
								"startingLine": float64(6), "endingLine": float64(10),
								"commit": map[string]interface{}{
									"oid": "sha1", "message": "first", "url": "u1", "committedDate": "2024-01-01T00:00:00Z",
									"author": map[string]interface{}{"name": "alice"},
								},
							},
							map[string]interface{}{
								"startingLine": float64(11), "endingLine": float64(15),
								"commit": map[string]interface{}{
									"oid": "sha2", "message": "second", "url": "u2", "committedDate": "2024-02-01T00:00:00Z",
									"author": map[string]interface{}{"name": "bob"},
								},
							},
						},
					},
				},
			},
		},
	}

	commits, err := parseBlameResponse(resp)
	require.NoError(t, err)
	require.Len(t, commits, 2, "two ranges for sha1 consolidate into one commit entry")

	var sha1 vcs.BlameCommit
	for _, c := range commits {
		if c.SHA == "sha1" {
			sha1 = c
		}
	}
	require.Len(t, sha1.LineRanges, 2)
}

func TestMergeLineRanges_FoldsWithinGap(t *testing.T) {
	nodes := []vcs.CodeRange{
		{NodeID: "a", StartLine: 1, EndLine: 10},
		{NodeID: "b", StartLine: 13, EndLine: 20}, // within 5-line gap of a's end
		{NodeID: "c", StartLine: 40, EndLine: 50}, // far away, separate range
	}

	merged := mergeLineRanges(nodes, 5)
	require.Len(t, merged, 2)
	require.Equal(t, 1, merged[0].start)
	require.Equal(t, 20, merged[0].end)
	require.Len(t, merged[0].nodes, 2)
	require.Equal(t, 40, merged[1].start)
}

// Ranges [10,20], [14,24], [25,29] overlap or sit within the 5-line gap,
// so they merge into one blame query spanning [10,29].
func TestMergeLineRanges_SingleQuerySpan(t *testing.T) {
	nodes := []vcs.CodeRange{
		{NodeID: "n1", StartLine: 10, EndLine: 20},
		{NodeID: "n2", StartLine: 14, EndLine: 24},
		{NodeID: "n3", StartLine: 25, EndLine: 29},
	}

	merged := mergeLineRanges(nodes, 5)
	require.Len(t, merged, 1)
	require.Equal(t, 10, merged[0].start)
	require.Equal(t, 29, merged[0].end)
	require.Len(t, merged[0].nodes, 3)
}

func TestMergeLineRanges_MergingMergedListIsStable(t *testing.T) {
	nodes := []vcs.CodeRange{
		{NodeID: "a", StartLine: 1, EndLine: 10},
		{NodeID: "b", StartLine: 13, EndLine: 20},
		{NodeID: "c", StartLine: 40, EndLine: 50},
	}

	first := mergeLineRanges(nodes, 5)

	// Re-merge the merged spans: the result must have the same shape.
	var asRanges []vcs.CodeRange
	for _, m := range first {
		asRanges = append(asRanges, vcs.CodeRange{NodeID: m.nodes[0].NodeID, StartLine: m.start, EndLine: m.end})
	}
	second := mergeLineRanges(asRanges, 5)

	require.Len(t, second, len(first))
	for i := range first {
		require.Equal(t, first[i].start, second[i].start)
		require.Equal(t, first[i].end, second[i].end)
	}
}

func TestExtractRelevantPatch_KeepsOnlyOverlappingHunks(t *testing.T) {
	patch := `diff --git a/src/main.go b/src/main.go
index 111..222 100644
--- a/src/main.go
+++ b/src/main.go
@@ -1,3 +1,3 @@
-old line 1
+new line 1
 line 2
@@ -50,2 +50,2 @@
-old line 50
+new line 50
 line 51
diff --git a/other.go b/other.go
index 333..444 100644
--- a/other.go
+++ b/other.go
@@ -1,1 +1,1 @@
-x
+y
`

	out := ExtractRelevantPatch(patch, "src/main.go", 1, 3)
	require.Contains(t, out, "new line 1")
	require.NotContains(t, out, "new line 50")
	require.NotContains(t, out, "other.go")
}

func TestExtractRelevantPatch_EmptyInputs(t *testing.T) {
	require.Equal(t, "", ExtractRelevantPatch("", "path.go", 1, 2))
	require.Equal(t, "", ExtractRelevantPatch("diff", "", 1, 2))
}
