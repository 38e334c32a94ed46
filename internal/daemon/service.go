package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/reviewd-dev/reviewd/internal/config"
	"github.com/reviewd-dev/reviewd/internal/diffscan"
	"github.com/reviewd-dev/reviewd/internal/guardrail"
	"github.com/reviewd-dev/reviewd/internal/review"
	"github.com/reviewd-dev/reviewd/internal/storage"
)

// ValidationError marks a request rejected before any provider work.
type ValidationError struct {
	Msg       string
	Oversized bool
}

func (e *ValidationError) Error() string { return e.Msg }

// ErrTimeout is returned when the end-to-end review deadline fires.
// No partial result accompanies it.
var ErrTimeout = errors.New("review timed out")

// Service is the review entry point: it validates requests, drives
// the orchestrator under the configured deadline, applies guardrails,
// and records the outcome.
type Service struct {
	cfg  *config.Config
	orch *review.Orchestrator
	db   *storage.DB
}

// NewService creates a review service. db may be nil (no history).
func NewService(cfg *config.Config, orch *review.Orchestrator, db *storage.DB) *Service {
	return &Service{cfg: cfg, orch: orch, db: db}
}

// Review executes one review. Validation failures return a
// *ValidationError before any provider call; deadline expiry returns
// ErrTimeout; total analyzer failure returns a *review.AnalysisError.
func (s *Service) Review(ctx context.Context, req review.Request) (*review.Result, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	req.Diff = diffscan.Sanitize(req.Diff)
	if req.Language == "" {
		req.Language = diffscan.DetectLanguage(req.Diff)
	}

	ctx, cancel := context.WithTimeout(ctx,
		time.Duration(s.cfg.RequestTimeoutSeconds)*time.Second)
	defer cancel()

	result, err := s.orch.Run(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %ds", ErrTimeout, s.cfg.RequestTimeoutSeconds)
		}
		s.recordFailure(req, err)
		return nil, err
	}

	guardrail.Apply(result, guardrail.Limits{
		MaxFindings: s.cfg.MaxFindingsPerReview,
		ValidFiles:  diffscan.Files(req.Diff),
	})

	if s.db != nil {
		if id, err := s.db.InsertCompleted(req, result); err != nil {
			log.Printf("service: record review: %v", err)
		} else {
			log.Printf("service: review %s done: %d findings, score %.1f, %dms",
				id, len(result.Findings), result.Score, result.Metadata.ExecutionTimeMS)
		}
	}

	return result, nil
}

func (s *Service) validate(req review.Request) error {
	if req.Diff == "" {
		return &ValidationError{Msg: "diff is required"}
	}
	if len(req.Diff) > s.cfg.MaxDiffSizeBytes {
		return &ValidationError{
			Msg: fmt.Sprintf("diff exceeds maximum size of %d bytes",
				s.cfg.MaxDiffSizeBytes),
			Oversized: true,
		}
	}
	return nil
}

func (s *Service) recordFailure(req review.Request, reviewErr error) {
	if s.db == nil {
		return
	}
	if _, err := s.db.InsertFailed(req, reviewErr); err != nil {
		log.Printf("service: record failed review: %v", err)
	}
}
