package review

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/reviewd-dev/reviewd/internal/llm"
)

// ErrAllAnalyzersFailed is returned by Run when every analyzer task
// failed; no synthesis is attempted in that case.
var ErrAllAnalyzersFailed = errors.New("all analyzer tasks failed")

// AnalysisError wraps ErrAllAnalyzersFailed with per-analyzer detail.
type AnalysisError struct {
	Failures map[string]string // role -> error message
}

func (e *AnalysisError) Error() string {
	roles := make([]string, 0, len(e.Failures))
	for role := range e.Failures {
		roles = append(roles, role)
	}
	return fmt.Sprintf("all analyzer tasks failed (%s)", strings.Join(roles, ", "))
}

func (e *AnalysisError) Unwrap() error { return ErrAllAnalyzersFailed }

// Orchestrator drives one review: four analyzer tasks in parallel,
// then one synthesis task over their combined output.
type Orchestrator struct {
	client llm.Client
}

// NewOrchestrator creates an orchestrator using the given provider
// client for every task.
func NewOrchestrator(client llm.Client) *Orchestrator {
	return &Orchestrator{client: client}
}

// Run executes the two-phase review. Individual analyzer failures
// degrade the review; only total analyzer failure or a synthesis
// failure is an error. Cancellation of ctx aborts all in-flight
// provider calls.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	outputs := o.runAnalyzers(ctx, req)

	var survivors []AgentOutput
	failures := make(map[string]string)
	tokens := 0
	for _, out := range outputs {
		tokens += out.Tokens
		if out.Err != nil {
			failures[out.Role] = out.Err.Error()
			continue
		}
		survivors = append(survivors, out)
	}

	if len(survivors) == 0 {
		// Distinguish deadline expiry from provider failure so the
		// service can answer 504 rather than 500.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &AnalysisError{Failures: failures}
	}

	result, synthTokens, err := o.synthesize(ctx, survivors, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	tokens += synthTokens

	result.Metadata = Metadata{
		ExecutionTimeMS:   time.Since(start).Milliseconds(),
		TokensUsed:        tokens,
		AgentCount:        len(survivors) + 1,
		GuardrailsApplied: []string{},
		FailedAnalyzers:   sortedFailureRoles(failures),
		Model:             o.client.Model(),
	}

	return result, nil
}

// runAnalyzers fans the analyzer tasks out on goroutines and waits
// for all of them to settle. Results land in an indexed slice; there
// is no shared mutable state between tasks.
func (o *Orchestrator) runAnalyzers(ctx context.Context, req Request) []AgentOutput {
	specs := AnalyzerSpecs()
	outputs := make([]AgentOutput, len(specs))

	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(idx int, spec TaskSpec) {
			defer wg.Done()
			outputs[idx] = o.runAnalyzer(ctx, spec, req)
		}(i, spec)
	}
	wg.Wait()

	return outputs
}

func (o *Orchestrator) runAnalyzer(ctx context.Context, spec TaskSpec, req Request) AgentOutput {
	out := AgentOutput{Role: spec.Role, Category: spec.Category}

	prompt := BuildAnalyzerPrompt(spec, req)
	raw, usage, err := o.client.Complete(ctx, prompt)
	out.Tokens = usage.TotalTokens
	if err != nil {
		log.Printf("review: analyzer %s failed: %v", spec.Role, err)
		out.Err = err
		return out
	}

	findings, err := ParseFindings(raw)
	if err != nil {
		// Malformed output degrades this analyzer, same as a
		// provider error.
		log.Printf("review: analyzer %s output unparseable: %v", spec.Role, err)
		out.Err = err
		return out
	}

	out.Raw = raw
	out.Findings = findings
	return out
}

// synthesize runs the sequential synthesis task over the complete
// set of surviving analyzer outputs.
func (o *Orchestrator) synthesize(ctx context.Context, outputs []AgentOutput, req Request) (*Result, int, error) {
	prompt := BuildSynthesisPrompt(outputs, req)

	raw, usage, err := o.client.Complete(ctx, prompt)
	if err != nil {
		return nil, usage.TotalTokens, err
	}

	result, err := ParseReport(raw)
	if err != nil {
		// Fall back to the analyzers' own findings rather than
		// failing a review that produced usable output.
		log.Printf("review: synthesis output unparseable, using raw analyzer findings: %v", err)
		result = fallbackResult(outputs)
	}

	return result, usage.TotalTokens, nil
}

// fallbackResult builds a report directly from analyzer findings
// when the synthesizer's output cannot be decoded.
func fallbackResult(outputs []AgentOutput) *Result {
	res := &Result{
		Summary: "Code review completed (synthesis output unparseable; reporting analyzer findings directly)",
		Score:   defaultScore,
	}
	for _, out := range outputs {
		res.Findings = append(res.Findings, out.Findings...)
	}
	return res
}

func sortedFailureRoles(failures map[string]string) []string {
	if len(failures) == 0 {
		return nil
	}
	roles := make([]string, 0, len(failures))
	for _, spec := range AnalyzerSpecs() {
		if _, ok := failures[spec.Role]; ok {
			roles = append(roles, spec.Role)
		}
	}
	return roles
}
