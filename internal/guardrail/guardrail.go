// Package guardrail post-processes raw model review output: it
// enforces the finding schema, removes duplicates and fabricated
// file references, caps the finding count, and clamps the score.
// Every rule is pure and deterministic; no rule ever fails a review.
package guardrail

import (
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/reviewd-dev/reviewd/internal/review"
)

// Limits configures the pipeline.
type Limits struct {
	// MaxFindings truncates the finding list, keeping the highest
	// severities.
	MaxFindings int

	// ValidFiles restricts finding file references to paths present
	// in the reviewed diff. Empty means the check is skipped.
	ValidFiles []string
}

// rule is one guardrail pass. It mutates res in place and reports
// whether it changed anything.
type rule struct {
	name  string
	apply func(res *review.Result, lim Limits) bool
}

// pipeline order matters: schema cleanup first, the cap last so it
// sees the deduplicated list.
var pipeline = []rule{
	{"completeness", applyCompleteness},
	{"duplicates", applyDeduplication},
	{"file_refs", applyFileValidation},
	{"severity_floor", applySeverityFloor},
	{"max_findings", applyMaxFindings},
	{"score_range", applyScoreRange},
}

// Apply runs every guardrail over res and records the names of the
// rules that altered it in res.Metadata.GuardrailsApplied. Applying
// the pipeline to an already-validated result is a no-op.
func Apply(res *review.Result, lim Limits) []string {
	var applied []string
	for _, r := range pipeline {
		if r.apply(res, lim) {
			applied = append(applied, r.name)
		}
	}
	if res.Metadata.GuardrailsApplied == nil {
		res.Metadata.GuardrailsApplied = []string{}
	}
	res.Metadata.GuardrailsApplied = append(res.Metadata.GuardrailsApplied, applied...)
	if len(applied) > 0 {
		log.Printf("guardrail: applied %s (%d findings remain)",
			strings.Join(applied, ", "), len(res.Findings))
	}
	return applied
}

// minMessageLen drops findings whose message or suggestion is too
// short to be actionable.
const minMessageLen = 10

// applyCompleteness drops findings missing required fields or with
// trivial text, drops unknown categories, and clamps unknown
// severities to low.
func applyCompleteness(res *review.Result, _ Limits) bool {
	changed := false
	kept := res.Findings[:0]
	for _, f := range res.Findings {
		if len(strings.TrimSpace(f.Message)) < minMessageLen {
			changed = true
			continue
		}
		if !f.Category.Valid() {
			changed = true
			continue
		}
		if s := strings.TrimSpace(f.Suggestion); s != "" && len(s) < minMessageLen {
			f.Suggestion = ""
			changed = true
		}
		if !f.Severity.Valid() {
			f.Severity = review.SeverityLow
			changed = true
		}
		kept = append(kept, f)
	}
	res.Findings = kept
	return changed
}

// fingerprintLen bounds how much of the message participates in the
// duplicate fingerprint. Two findings for the same category, file,
// and line whose messages share this prefix are duplicates.
const fingerprintLen = 50

func fingerprint(f review.Finding) string {
	msg := strings.ToLower(strings.TrimSpace(f.Message))
	if len(msg) > fingerprintLen {
		msg = msg[:fingerprintLen]
	}
	return strings.Join([]string{
		string(f.Category), f.File, strconv.Itoa(f.Line), msg,
	}, "\x00")
}

// applyDeduplication collapses duplicate findings onto the
// higher-severity one. On a severity tie the finding with the longer
// suggestion wins; first occurrence wins when that ties too.
func applyDeduplication(res *review.Result, _ Limits) bool {
	index := make(map[string]int)
	kept := make([]review.Finding, 0, len(res.Findings))
	changed := false

	for _, f := range res.Findings {
		fp := fingerprint(f)
		i, seen := index[fp]
		if !seen {
			index[fp] = len(kept)
			kept = append(kept, f)
			continue
		}
		changed = true
		prev := kept[i]
		if f.Severity.Rank() > prev.Severity.Rank() ||
			(f.Severity.Rank() == prev.Severity.Rank() &&
				len(f.Suggestion) > len(prev.Suggestion)) {
			kept[i] = f
		}
	}

	res.Findings = kept
	return changed
}

// applyFileValidation drops findings referencing files absent from
// the diff. Findings with no file (or "unknown") are kept; when no
// valid files are known the check is skipped entirely.
func applyFileValidation(res *review.Result, lim Limits) bool {
	if len(lim.ValidFiles) == 0 {
		return false
	}
	valid := make(map[string]bool, len(lim.ValidFiles))
	for _, f := range lim.ValidFiles {
		valid[f] = true
	}

	changed := false
	kept := res.Findings[:0]
	for _, f := range res.Findings {
		if f.File != "" && f.File != "unknown" && !valid[f.File] {
			changed = true
			continue
		}
		kept = append(kept, f)
	}
	res.Findings = kept
	return changed
}

// seriousKeywords flag security findings that should never sit at
// low severity.
var seriousKeywords = []string{
	"injection", "xss", "sql", "authentication", "authorization",
	"credential", "password", "secret", "token",
}

// applySeverityFloor upgrades low-severity security findings whose
// messages mention serious vulnerability classes to medium.
func applySeverityFloor(res *review.Result, _ Limits) bool {
	changed := false
	for i, f := range res.Findings {
		if f.Category != review.CategorySecurity || f.Severity != review.SeverityLow {
			continue
		}
		msg := strings.ToLower(f.Message)
		for _, kw := range seriousKeywords {
			if strings.Contains(msg, kw) {
				res.Findings[i].Severity = review.SeverityMedium
				changed = true
				break
			}
		}
	}
	return changed
}

// applyMaxFindings truncates to the configured cap, keeping the
// highest-severity findings. The sort is stable so original order
// breaks ties.
func applyMaxFindings(res *review.Result, lim Limits) bool {
	if lim.MaxFindings <= 0 || len(res.Findings) <= lim.MaxFindings {
		// Still order by severity for the caller even when nothing
		// is dropped, but only report a change when sorting moved
		// something.
		return sortBySeverity(res.Findings)
	}
	sortBySeverity(res.Findings)
	res.Findings = res.Findings[:lim.MaxFindings]
	return true
}

func sortBySeverity(findings []review.Finding) bool {
	sorted := sort.SliceIsSorted(findings, func(i, j int) bool {
		return findings[i].Severity.Rank() > findings[j].Severity.Rank()
	})
	if sorted {
		return false
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Rank() > findings[j].Severity.Rank()
	})
	return true
}

// Score bounds for a review.
const (
	MinScore = 0.0
	MaxScore = 10.0
)

// applyScoreRange clamps the score into [MinScore, MaxScore].
func applyScoreRange(res *review.Result, _ Limits) bool {
	switch {
	case res.Score < MinScore:
		res.Score = MinScore
	case res.Score > MaxScore:
		res.Score = MaxScore
	default:
		return false
	}
	return true
}
