package review

import (
	"strings"
	"testing"
)

func TestSeverityRank(t *testing.T) {
	order := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Errorf("expected %s to rank above %s", order[i], order[i-1])
		}
	}
	if Severity("urgent").Rank() != 0 {
		t.Error("unknown severity should rank 0")
	}
}

func TestParseSeverity(t *testing.T) {
	if s, ok := ParseSeverity("  HIGH "); !ok || s != SeverityHigh {
		t.Errorf("ParseSeverity(HIGH) = %q, %v", s, ok)
	}
	if _, ok := ParseSeverity("catastrophic"); ok {
		t.Error("unknown severity should not parse")
	}
}

func TestParseCategory(t *testing.T) {
	if c, ok := ParseCategory("Security"); !ok || c != CategorySecurity {
		t.Errorf("ParseCategory(Security) = %q, %v", c, ok)
	}
	if _, ok := ParseCategory("vibes"); ok {
		t.Error("unknown category should not parse")
	}
}

func TestResultMarkdown(t *testing.T) {
	res := &Result{
		Summary: "One critical issue",
		Score:   4.5,
		Findings: []Finding{
			{
				Category:   CategorySecurity,
				Severity:   SeverityCritical,
				File:       "app/auth.py",
				Line:       24,
				Message:    "SQL injection via string interpolation",
				Suggestion: "Use parameterized queries",
			},
		},
		Metadata: Metadata{AgentCount: 5, Model: "gpt-4o-mini", ExecutionTimeMS: 1200},
	}

	md := res.Markdown()
	for _, want := range []string{
		"Critical Issues",
		"`app/auth.py:24`",
		"SQL injection",
		"4.5/10",
		"5 AI agents",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestResultMarkdown_NoFindings(t *testing.T) {
	res := &Result{Summary: "Clean", Score: 10}
	if !strings.Contains(res.Markdown(), "No issues found") {
		t.Error("expected clean-review message")
	}
}

func TestCountBySeverity(t *testing.T) {
	res := &Result{Findings: []Finding{
		{Severity: SeverityHigh},
		{Severity: SeverityHigh},
		{Severity: SeverityLow},
	}}
	if n := res.CountBySeverity(SeverityHigh); n != 2 {
		t.Errorf("expected 2 high findings, got %d", n)
	}
}
