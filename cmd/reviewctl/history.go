package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/reviewd-dev/reviewd/internal/storage"
)

func historyCmd() *cobra.Command {
	var (
		repo  string
		limit int
		id    string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past reviews stored by the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()

			if id != "" {
				var record storage.ReviewRecord
				if err := c.do("GET", "/api/reviews?id="+url.QueryEscape(id), nil, &record); err != nil {
					return err
				}
				printRecord(&record, true)
				return nil
			}

			q := url.Values{}
			if repo != "" {
				q.Set("repo", repo)
			}
			q.Set("limit", strconv.Itoa(limit))

			var resp struct {
				Reviews []storage.ReviewRecord `json:"reviews"`
			}
			if err := c.do("GET", "/api/reviews?"+q.Encode(), nil, &resp); err != nil {
				return err
			}

			if len(resp.Reviews) == 0 {
				fmt.Println("No reviews recorded.")
				return nil
			}
			for i := range resp.Reviews {
				printRecord(&resp.Reviews[i], false)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "filter by repository")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum reviews to list")
	cmd.Flags().StringVar(&id, "id", "", "show one review by UUID")

	return cmd
}

func printRecord(r *storage.ReviewRecord, full bool) {
	when := r.CreatedAt.Format("2006-01-02 15:04")
	switch r.Status {
	case storage.StatusFailed:
		fmt.Printf("%s  %s  %s  FAILED: %s\n", when, shortUUID(r.UUID), r.Repo, r.Error)
	default:
		fmt.Printf("%s  %s  %s  score %.1f  %d findings  %dms\n",
			when, shortUUID(r.UUID), r.Repo, r.Score, len(r.Findings), r.ExecutionMS)
	}

	if !full {
		return
	}
	fmt.Printf("\n%s\n\n", r.Summary)
	for _, f := range r.Findings {
		location := f.File
		if f.Line > 0 {
			location = fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		fmt.Printf("- [%s/%s] %s: %s\n", f.Category, f.Severity, location, f.Message)
	}
}

func shortUUID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
