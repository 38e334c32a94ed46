package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/reviewd-dev/reviewd/internal/review"
)

// Severity colors follow the usual traffic-light convention.
var (
	severityStyles = map[review.Severity]lipgloss.Style{
		review.SeverityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555")).Bold(true),
		review.SeverityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb86c")).Bold(true),
		review.SeverityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("#f1fa8c")),
		review.SeverityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4")),
	}
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8be9fd"))
	locationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#bd93f9"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4"))
)

func reviewCmd() *cobra.Command {
	var (
		language string
		repo     string
		prNumber int
		sha      string
		markdown bool
	)

	cmd := &cobra.Command{
		Use:   "review [diff-file]",
		Short: "Submit a diff for review",
		Long:  "Submits a unified diff (from a file, or stdin when no file is given) to the daemon and renders the review.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			diff, err := readDiff(args)
			if err != nil {
				return err
			}

			req := review.Request{
				Diff:     diff,
				Language: language,
				Context: review.Context{
					Repo:      repo,
					PRNumber:  prNumber,
					CommitSHA: sha,
				},
			}

			var result review.Result
			if err := newClient().do("POST", "/review", req, &result); err != nil {
				return err
			}

			if markdown {
				fmt.Print(result.Markdown())
				return nil
			}
			printResult(&result)
			return nil
		},
	}

	cmd.Flags().StringVar(&language, "language", "", "language hint (auto-detected when empty)")
	cmd.Flags().StringVar(&repo, "repo", "", "repository identifier (org/repo)")
	cmd.Flags().IntVar(&prNumber, "pr", 0, "pull request number")
	cmd.Flags().StringVar(&sha, "commit", "", "commit SHA under review")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print the review as markdown instead of styled output")

	return cmd
}

func readDiff(args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read diff file: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read diff from stdin: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no diff provided (pass a file or pipe one on stdin)")
	}
	return string(data), nil
}

func printResult(res *review.Result) {
	fmt.Println(headerStyle.Render("Review Summary"))
	fmt.Println(res.Summary)
	fmt.Printf("\n%s %.1f/10\n\n", headerStyle.Render("Score:"), res.Score)

	if len(res.Findings) == 0 {
		fmt.Println("No issues found.")
	}
	for _, f := range res.Findings {
		style, ok := severityStyles[f.Severity]
		if !ok {
			style = dimStyle
		}
		location := f.File
		if f.Line > 0 {
			location = fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		fmt.Printf("%s %s %s\n", style.Render(strings.ToUpper(string(f.Severity))),
			dimStyle.Render("["+string(f.Category)+"]"),
			locationStyle.Render(location))
		fmt.Printf("  %s\n", f.Message)
		if f.Suggestion != "" {
			fmt.Printf("  %s %s\n", dimStyle.Render("suggestion:"), f.Suggestion)
		}
		fmt.Println()
	}

	meta := res.Metadata
	fmt.Println(dimStyle.Render(fmt.Sprintf(
		"%d agents | %s | %d tokens | %dms | guardrails: %s",
		meta.AgentCount, meta.Model, meta.TokensUsed, meta.ExecutionTimeMS,
		formatGuardrails(meta.GuardrailsApplied))))
	if len(meta.FailedAnalyzers) > 0 {
		fmt.Println(dimStyle.Render(fmt.Sprintf(
			"degraded: %s did not complete", strings.Join(meta.FailedAnalyzers, ", "))))
	}
}

func formatGuardrails(applied []string) string {
	if len(applied) == 0 {
		return "none"
	}
	return strings.Join(applied, ", ")
}
