// Package review implements the multi-agent review pipeline: typed
// findings, role-scoped analyzer tasks, and the fan-out/fan-in
// orchestrator that turns a diff into a structured report.
package review

import (
	"fmt"
	"strings"
)

// Severity is the ordered severity level of a finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRanks orders severities for sorting and comparison.
// Unknown severities rank below low.
var severityRanks = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the numeric order of a severity (higher = more severe).
// Unknown severities return 0.
func (s Severity) Rank() int {
	return severityRanks[s]
}

// Valid reports whether s is a member of the closed severity set.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// ParseSeverity normalizes a raw severity string. Unknown values
// return ("", false) so callers can decide whether to clamp or drop.
func ParseSeverity(raw string) (Severity, bool) {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// Category classifies what aspect of the code a finding concerns.
type Category string

const (
	CategorySecurity        Category = "security"
	CategoryPerformance     Category = "performance"
	CategoryStyle           Category = "style"
	CategoryLogic           Category = "logic"
	CategoryMaintainability Category = "maintainability"
)

var validCategories = map[Category]bool{
	CategorySecurity:        true,
	CategoryPerformance:     true,
	CategoryStyle:           true,
	CategoryLogic:           true,
	CategoryMaintainability: true,
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	return validCategories[c]
}

// ParseCategory normalizes a raw category string.
func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	return c, c.Valid()
}

// Finding is one reported issue in a review.
type Finding struct {
	Category   Category `json:"category"`
	Severity   Severity `json:"severity"`
	File       string   `json:"file,omitempty"`
	Line       int      `json:"line,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Context carries informational request metadata. It is passed
// through to prompts and stored with the review; nothing branches
// on it.
type Context struct {
	Repo      string `json:"repo,omitempty"`
	CommitSHA string `json:"commit_sha,omitempty"`
	PRNumber  int    `json:"pr_number,omitempty"`
	Author    string `json:"author,omitempty"`
	Branch    string `json:"branch,omitempty"`
}

// Request is one code review request.
type Request struct {
	Diff     string  `json:"diff"`
	Language string  `json:"language,omitempty"`
	Context  Context `json:"context,omitempty"`
}

// Metadata describes how a review was executed.
type Metadata struct {
	ExecutionTimeMS   int64    `json:"execution_time_ms"`
	TokensUsed        int      `json:"tokens_used"`
	AgentCount        int      `json:"agent_count"`
	GuardrailsApplied []string `json:"guardrails_applied"`
	FailedAnalyzers   []string `json:"failed_analyzers,omitempty"`
	Model             string   `json:"model"`
}

// Result is the final structured review returned to the caller.
type Result struct {
	Summary  string    `json:"summary"`
	Score    float64   `json:"score"`
	Findings []Finding `json:"findings"`
	Metadata Metadata  `json:"metadata"`
}

// CountBySeverity returns how many findings carry the given severity.
func (r *Result) CountBySeverity(s Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == s {
			n++
		}
	}
	return n
}

// AgentOutput is the intermediate result of one analyzer task. It
// exists only for the duration of one orchestrator run.
type AgentOutput struct {
	Role     string
	Category Category
	Raw      string
	Findings []Finding
	Tokens   int
	Err      error
}

// Markdown renders the review as a GitHub PR comment.
func (r *Result) Markdown() string {
	var b strings.Builder
	b.WriteString("## AI Code Review\n\n")
	fmt.Fprintf(&b, "**Summary:** %s\n", r.Summary)
	fmt.Fprintf(&b, "**Quality Score:** %.1f/10\n\n", r.Score)

	if len(r.Findings) == 0 {
		b.WriteString("No issues found.\n")
		return b.String()
	}

	sections := []struct {
		severity Severity
		title    string
	}{
		{SeverityCritical, "Critical Issues"},
		{SeverityHigh, "High Severity"},
		{SeverityMedium, "Medium Severity"},
		{SeverityLow, "Low Severity"},
	}

	for _, sec := range sections {
		var findings []Finding
		for _, f := range r.Findings {
			if f.Severity == sec.severity {
				findings = append(findings, f)
			}
		}
		if len(findings) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n", sec.title)
		for _, f := range findings {
			location := fmt.Sprintf("`%s`", f.File)
			if f.Line > 0 {
				location = fmt.Sprintf("`%s:%d`", f.File, f.Line)
			}
			fmt.Fprintf(&b, "- **%s** in %s\n", titleCase(string(f.Category)), location)
			fmt.Fprintf(&b, "  > %s\n", f.Message)
			if f.Suggestion != "" {
				fmt.Fprintf(&b, "  > **Suggestion:** %s\n", f.Suggestion)
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b,
		"---\n*Reviewed by %d AI agents using %s in %dms*\n",
		r.Metadata.AgentCount, r.Metadata.Model, r.Metadata.ExecutionTimeMS)

	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
