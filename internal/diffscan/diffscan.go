// Package diffscan parses unified diffs into the facts the review
// pipeline needs: changed file paths, a language guess, and a
// sanitized copy of the diff text.
package diffscan

import (
	"sort"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// Files extracts the changed file paths from a unified diff. Renames
// contribute both names; /dev/null never appears. Returns nil when
// the diff cannot be parsed.
func Files(diff string) []string {
	parsed, _, err := gitdiff.Parse(strings.NewReader(diff))
	if err != nil {
		return nil
	}

	set := make(map[string]struct{})
	for _, f := range parsed {
		if f.OldName != "" {
			set[f.OldName] = struct{}{}
		}
		if f.NewName != "" {
			set[f.NewName] = struct{}{}
		}
	}

	files := make([]string, 0, len(set))
	for name := range set {
		files = append(files, name)
	}
	sort.Strings(files)
	return files
}

// languageByExtension maps a file extension to a language hint.
var languageByExtension = map[string]string{
	"py":    "python",
	"js":    "javascript",
	"jsx":   "javascript",
	"ts":    "typescript",
	"tsx":   "typescript",
	"java":  "java",
	"go":    "go",
	"rs":    "rust",
	"cpp":   "c++",
	"cc":    "c++",
	"c":     "c",
	"rb":    "ruby",
	"php":   "php",
	"swift": "swift",
	"kt":    "kotlin",
	"scala": "scala",
	"cs":    "csharp",
}

// DetectLanguage guesses the dominant language of a diff from its
// file extensions. Returns "unknown" when no extension is
// recognized.
func DetectLanguage(diff string) string {
	counts := make(map[string]int)
	for _, file := range Files(diff) {
		i := strings.LastIndex(file, ".")
		if i < 0 || i == len(file)-1 {
			continue
		}
		ext := strings.ToLower(file[i+1:])
		counts[ext]++
	}
	if len(counts) == 0 {
		return "unknown"
	}

	best := ""
	for ext, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && ext < best) {
			best = ext
		}
	}

	if lang, ok := languageByExtension[best]; ok {
		return lang
	}
	return "unknown"
}

// maxLineLen caps individual diff lines during sanitization.
const maxLineLen = 1000

// Sanitize strips NUL bytes and truncates pathological line lengths
// before the diff is embedded in prompts or stored.
func Sanitize(diff string) string {
	diff = strings.ReplaceAll(diff, "\x00", "")

	if !longLine(diff) {
		return diff
	}
	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		if len(line) > maxLineLen {
			lines[i] = line[:maxLineLen]
		}
	}
	return strings.Join(lines, "\n")
}

func longLine(diff string) bool {
	start := 0
	for i := 0; i <= len(diff); i++ {
		if i == len(diff) || diff[i] == '\n' {
			if i-start > maxLineLen {
				return true
			}
			start = i + 1
		}
	}
	return false
}
