package github

import (
	"regexp"
	"strconv"
	"strings"
)

var hunkHeaderPattern = regexp.MustCompile(`^@@ -(\d+),?(\d*) \+(\d+),?(\d*) @@`)

// ExtractRelevantPatch walks a unified diff line by line and keeps only
// the hunks for filePath whose new-file line range overlaps
// [startLine, endLine], preserving the file header for the first kept
// hunk so the output remains a valid patch fragment.
func ExtractRelevantPatch(fullPatch, filePath string, startLine, endLine int) string {
	if fullPatch == "" || filePath == "" {
		return ""
	}
	cleanPath := normalizeFilePath(filePath, "")

	lines := strings.Split(fullPatch, "\n")
	var relevantHunks []string
	var currentHunk []string
	var fileHeader []string
	inRelevantFile := false

	i := 0
	for i < len(lines) {
		line := lines[i]

		switch {
		case strings.HasPrefix(line, "diff --git"):
			if inRelevantFile && len(currentHunk) > 0 {
				relevantHunks = append(relevantHunks, strings.Join(currentHunk, "\n"))
			}
			currentHunk = nil

			parts := strings.Fields(line)
			if len(parts) >= 4 {
				fileA := strings.TrimPrefix(parts[2], "a/")
				fileB := strings.TrimPrefix(parts[3], "b/")
				if strings.Contains(fileA, cleanPath) || strings.Contains(fileB, cleanPath) ||
					strings.Contains(cleanPath, fileA) || strings.Contains(cleanPath, fileB) {
					inRelevantFile = true
					fileHeader = []string{line}
					j := i + 1
					for j < len(lines) && !strings.HasPrefix(lines[j], "@@") {
						if hasAnyPrefix(lines[j], "index ", "---", "+++", "new file", "deleted file") {
							fileHeader = append(fileHeader, lines[j])
						}
						j++
					}
					i = j - 1
				} else {
					inRelevantFile = false
				}
			}

		case strings.HasPrefix(line, "@@") && inRelevantFile:
			if m := hunkHeaderPattern.FindStringSubmatch(line); m != nil {
				newStart, _ := strconv.Atoi(m[3])
				newCount := 1
				if m[4] != "" {
					newCount, _ = strconv.Atoi(m[4])
				}
				newEnd := newStart + newCount - 1

				if !(newEnd < startLine || newStart > endLine) {
					if len(currentHunk) == 0 && len(fileHeader) > 0 {
						currentHunk = append(currentHunk, fileHeader...)
						fileHeader = nil
					}
					currentHunk = append(currentHunk, line)

					j := i + 1
					for j < len(lines) && !hasAnyPrefix(lines[j], "@@", "diff --git") {
						currentHunk = append(currentHunk, lines[j])
						j++
					}
					i = j - 1
				} else {
					j := i + 1
					for j < len(lines) && !hasAnyPrefix(lines[j], "@@", "diff --git") {
						j++
					}
					i = j - 1
				}
			}
		}

		i++
	}

	if inRelevantFile && len(currentHunk) > 0 {
		relevantHunks = append(relevantHunks, strings.Join(currentHunk, "\n"))
	}

	return strings.Join(relevantHunks, "\n")
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
