package review

import (
	"encoding/json"
	"fmt"
	"strings"
)

// rawFinding mirrors Finding with loose string types so malformed
// model output can be normalized field by field instead of failing
// the whole decode.
type rawFinding struct {
	Category   string  `json:"category"`
	Severity   string  `json:"severity"`
	File       string  `json:"file"`
	Line       float64 `json:"line"`
	Message    string  `json:"message"`
	Suggestion string  `json:"suggestion"`
}

type rawReport struct {
	Summary  *string      `json:"summary"`
	Score    *float64     `json:"score"`
	Findings []rawFinding `json:"findings"`
}

// stripCodeFence removes a surrounding markdown code fence if the
// model wrapped its JSON in one despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
	} else if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+len("```"):]
	}
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// ParseFindings decodes one analyzer's output into findings. The
// analyzer may answer with either a bare array or an object with a
// "findings" key. Findings with no message are dropped here; the
// guardrail layer owns the rest of the normalization.
func ParseFindings(output string) ([]Finding, error) {
	text := stripCodeFence(output)
	if text == "" {
		return nil, nil
	}

	var raws []rawFinding
	if err := json.Unmarshal([]byte(text), &raws); err != nil {
		var report rawReport
		if err2 := json.Unmarshal([]byte(text), &report); err2 != nil {
			return nil, fmt.Errorf("parse analyzer output: %w", err)
		}
		raws = report.Findings
	}

	return normalizeFindings(raws), nil
}

// ParseReport decodes the synthesizer's output into a Result.
// Missing summary/score/findings get safe defaults rather than
// failing the review (the guardrail layer validates content).
func ParseReport(output string) (*Result, error) {
	text := stripCodeFence(output)

	var report rawReport
	if err := json.Unmarshal([]byte(text), &report); err != nil {
		return nil, fmt.Errorf("parse synthesis output: %w", err)
	}

	res := &Result{
		Summary:  "Code review completed",
		Score:    defaultScore,
		Findings: normalizeFindings(report.Findings),
	}
	if report.Summary != nil && strings.TrimSpace(*report.Summary) != "" {
		res.Summary = strings.TrimSpace(*report.Summary)
	}
	if report.Score != nil {
		res.Score = *report.Score
	}
	return res, nil
}

// defaultScore is used when the synthesizer omits a score.
const defaultScore = 8.0

func normalizeFindings(raws []rawFinding) []Finding {
	var findings []Finding
	for _, r := range raws {
		msg := strings.TrimSpace(r.Message)
		if msg == "" {
			continue
		}
		f := Finding{
			File:       strings.TrimSpace(r.File),
			Message:    msg,
			Suggestion: strings.TrimSpace(r.Suggestion),
		}
		if r.Line > 0 {
			f.Line = int(r.Line)
		}
		// Raw category/severity values pass through here; the
		// guardrail pipeline enforces the closed sets.
		f.Category = Category(strings.ToLower(strings.TrimSpace(r.Category)))
		f.Severity = Severity(strings.ToLower(strings.TrimSpace(r.Severity)))
		findings = append(findings, f)
	}
	return findings
}
