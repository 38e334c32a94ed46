package review

import (
	"fmt"
	"strings"
)

// TaskSpec is a role-scoped prompt configuration for one analyzer.
// The four analyzers differ only in these fields; there is one
// control flow for all of them.
type TaskSpec struct {
	Role     string
	Goal     string
	Category Category
	Focus    []string
}

// AnalyzerSpecs returns the four parallel analyzer roles. The
// synthesizer is not in this list; it runs after the fan-in.
func AnalyzerSpecs() []TaskSpec {
	return []TaskSpec{
		{
			Role:     "code-analyzer",
			Goal:     "Analyze code structure, complexity patterns, architectural issues, and logical flaws",
			Category: CategoryLogic,
			Focus: []string{
				"logic errors and edge cases",
				"architectural and design problems",
				"unnecessary complexity",
				"maintainability and code organization",
			},
		},
		{
			Role:     "security-reviewer",
			Goal:     "Identify security vulnerabilities, attack vectors, and unsafe coding practices",
			Category: CategorySecurity,
			Focus: []string{
				"injection (SQL, command, template)",
				"XSS, CSRF, and unsafe deserialization",
				"authentication and authorization flaws",
				"hardcoded secrets and credential handling",
				"cryptographic misuse",
			},
		},
		{
			Role:     "performance-reviewer",
			Goal:     "Analyze the diff for performance issues, inefficiencies, and scalability concerns",
			Category: CategoryPerformance,
			Focus: []string{
				"algorithmic complexity",
				"N+1 queries and missing caching",
				"unnecessary allocations or copies",
				"blocking calls on hot paths",
			},
		},
		{
			Role:     "style-reviewer",
			Goal:     "Review the diff for code style, readability, and adherence to best practices",
			Category: CategoryStyle,
			Focus: []string{
				"naming and readability",
				"dead code and unused imports",
				"missing documentation where warranted",
				"idiomatic use of the language",
			},
		},
	}
}

// SynthesizerRole identifies the synthesis task in logs and metadata.
const SynthesizerRole = "review-synthesizer"

// BuildAnalyzerPrompt creates the prompt for one analyzer task.
// Each analyzer is constrained to emit findings only in its
// category, as a bare JSON array.
func BuildAnalyzerPrompt(spec TaskSpec, req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a %s reviewing a code change.\n", spec.Role)
	fmt.Fprintf(&b, "Goal: %s.\n\nFocus areas:\n", spec.Goal)
	for _, f := range spec.Focus {
		fmt.Fprintf(&b, "- %s\n", f)
	}

	b.WriteString("\nRules:\n")
	fmt.Fprintf(&b,
		"- Report only %q findings; other concerns are handled by other reviewers\n",
		spec.Category)
	b.WriteString(
		"- Reference the file path and line number from the diff where possible\n" +
			"- Every finding needs a concrete, actionable suggestion\n" +
			"- If the change is clean in your area, return an empty array\n" +
			"- Respond with a JSON array only, no prose, no markdown fences\n")

	b.WriteString("\nEach finding is an object:\n" +
		`{"category": "` + string(spec.Category) + `", ` +
		`"severity": "low|medium|high|critical", ` +
		`"file": "path", "line": 0, "message": "...", "suggestion": "..."}` + "\n")

	writeRequestContext(&b, req)

	fmt.Fprintf(&b, "\nLanguage: %s\n\nDiff:\n```diff\n%s\n```\n",
		req.Language, req.Diff)

	return b.String()
}

// BuildSynthesisPrompt creates the prompt for the synthesis task
// from the surviving analyzer outputs plus the original diff.
func BuildSynthesisPrompt(outputs []AgentOutput, req Request) string {
	var b strings.Builder

	b.WriteString(
		"You are a principal engineer combining specialist code review " +
			"outputs into one final report.\nRules:\n" +
			"- Deduplicate findings reported by multiple reviewers\n" +
			"- Order findings by severity (critical > high > medium > low)\n" +
			"- Preserve file/line references\n" +
			"- Write a short summary verdict of the overall change\n" +
			"- Assign a quality score from 0 (broken) to 10 (excellent)\n" +
			"- If all reviewers agree the code is clean, say so concisely\n" +
			"- Respond with a single JSON object only, no prose, no markdown fences\n")

	b.WriteString("\nResponse shape:\n" +
		`{"summary": "...", "score": 0.0, "findings": [` +
		`{"category": "...", "severity": "...", "file": "...", ` +
		`"line": 0, "message": "...", "suggestion": "..."}]}` + "\n")

	// Truncate per-analyzer output to avoid blowing the synthesis
	// context window.
	const maxPerOutput = 15000

	for i, out := range outputs {
		fmt.Fprintf(&b, "\n---\n### Reviewer %d: %s", i+1, out.Role)
		if out.Err != nil {
			b.WriteString(" [FAILED]\n(no output - reviewer failed)\n")
			continue
		}
		b.WriteString("\n")
		raw := out.Raw
		if len(raw) > maxPerOutput {
			raw = raw[:maxPerOutput] + "\n...(truncated)"
		}
		b.WriteString(raw)
		b.WriteString("\n")
	}

	writeRequestContext(&b, req)

	fmt.Fprintf(&b, "\nLanguage: %s\n\nOriginal diff:\n```diff\n%s\n```\n",
		req.Language, req.Diff)

	return b.String()
}

func writeRequestContext(b *strings.Builder, req Request) {
	ctx := req.Context
	if ctx.Repo == "" && ctx.CommitSHA == "" && ctx.PRNumber == 0 &&
		ctx.Author == "" && ctx.Branch == "" {
		return
	}
	b.WriteString("\nChange context:\n")
	if ctx.Repo != "" {
		fmt.Fprintf(b, "- Repository: %s\n", ctx.Repo)
	}
	if ctx.PRNumber != 0 {
		fmt.Fprintf(b, "- Pull request: #%d\n", ctx.PRNumber)
	}
	if ctx.CommitSHA != "" {
		fmt.Fprintf(b, "- Commit: %s\n", ctx.CommitSHA)
	}
	if ctx.Branch != "" {
		fmt.Fprintf(b, "- Branch: %s\n", ctx.Branch)
	}
	if ctx.Author != "" {
		fmt.Fprintf(b, "- Author: %s\n", ctx.Author)
	}
}
