// Package storage persists completed reviews for the history API.
// The daemon itself is stateless across requests; this is an audit
// log, not coordination state.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/reviewd-dev/reviewd/internal/config"
	"github.com/reviewd-dev/reviewd/internal/review"
)

const schema = `
CREATE TABLE IF NOT EXISTS reviews (
  id INTEGER PRIMARY KEY,
  uuid TEXT UNIQUE NOT NULL,
  created_at TEXT NOT NULL DEFAULT (datetime('now')),
  repo TEXT NOT NULL DEFAULT '',
  pr_number INTEGER NOT NULL DEFAULT 0,
  commit_sha TEXT NOT NULL DEFAULT '',
  author TEXT NOT NULL DEFAULT '',
  language TEXT NOT NULL DEFAULT '',
  diff_bytes INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL CHECK(status IN ('done','failed')) DEFAULT 'done',
  error TEXT NOT NULL DEFAULT '',
  summary TEXT NOT NULL DEFAULT '',
  score REAL NOT NULL DEFAULT 0,
  findings TEXT NOT NULL DEFAULT '[]',
  guardrails TEXT NOT NULL DEFAULT '[]',
  execution_ms INTEGER NOT NULL DEFAULT 0,
  tokens_used INTEGER NOT NULL DEFAULT 0,
  model TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_reviews_created ON reviews(created_at);
CREATE INDEX IF NOT EXISTS idx_reviews_repo ON reviews(repo);
`

type DB struct {
	*sql.DB
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	return filepath.Join(config.DataDir(), "reviews.db")
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL mode and busy timeout for concurrent request handlers.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// ReviewRecord is one stored review.
type ReviewRecord struct {
	ID          int64            `json:"id"`
	UUID        string           `json:"uuid"`
	CreatedAt   time.Time        `json:"created_at"`
	Repo        string           `json:"repo,omitempty"`
	PRNumber    int              `json:"pr_number,omitempty"`
	CommitSHA   string           `json:"commit_sha,omitempty"`
	Author      string           `json:"author,omitempty"`
	Language    string           `json:"language,omitempty"`
	DiffBytes   int              `json:"diff_bytes"`
	Status      string           `json:"status"`
	Error       string           `json:"error,omitempty"`
	Summary     string           `json:"summary,omitempty"`
	Score       float64          `json:"score"`
	Findings    []review.Finding `json:"findings"`
	Guardrails  []string         `json:"guardrails"`
	ExecutionMS int64            `json:"execution_ms"`
	TokensUsed  int              `json:"tokens_used"`
	Model       string           `json:"model,omitempty"`
}

// Review status values.
const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

// InsertCompleted stores a successful review and returns its UUID.
func (db *DB) InsertCompleted(req review.Request, res *review.Result) (string, error) {
	findings, err := json.Marshal(res.Findings)
	if err != nil {
		return "", fmt.Errorf("marshal findings: %w", err)
	}
	guardrails, err := json.Marshal(res.Metadata.GuardrailsApplied)
	if err != nil {
		return "", fmt.Errorf("marshal guardrails: %w", err)
	}

	id := uuid.NewString()
	_, err = db.Exec(`
		INSERT INTO reviews (uuid, repo, pr_number, commit_sha, author, language,
		                     diff_bytes, status, summary, score, findings, guardrails,
		                     execution_ms, tokens_used, model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, req.Context.Repo, req.Context.PRNumber, req.Context.CommitSHA,
		req.Context.Author, req.Language, len(req.Diff), StatusDone,
		res.Summary, res.Score, string(findings), string(guardrails),
		res.Metadata.ExecutionTimeMS, res.Metadata.TokensUsed, res.Metadata.Model)
	if err != nil {
		return "", fmt.Errorf("insert review: %w", err)
	}
	return id, nil
}

// InsertFailed stores a failed review attempt for diagnostics.
func (db *DB) InsertFailed(req review.Request, reviewErr error) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO reviews (uuid, repo, pr_number, commit_sha, author, language,
		                     diff_bytes, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, req.Context.Repo, req.Context.PRNumber, req.Context.CommitSHA,
		req.Context.Author, req.Language, len(req.Diff), StatusFailed,
		reviewErr.Error())
	if err != nil {
		return "", fmt.Errorf("insert failed review: %w", err)
	}
	return id, nil
}

const reviewColumns = `id, uuid, created_at, repo, pr_number, commit_sha, author,
	language, diff_bytes, status, error, summary, score, findings, guardrails,
	execution_ms, tokens_used, model`

func scanReview(row interface{ Scan(...any) error }) (*ReviewRecord, error) {
	var r ReviewRecord
	var createdAt, findings, guardrails string

	err := row.Scan(&r.ID, &r.UUID, &createdAt, &r.Repo, &r.PRNumber,
		&r.CommitSHA, &r.Author, &r.Language, &r.DiffBytes, &r.Status,
		&r.Error, &r.Summary, &r.Score, &findings, &guardrails,
		&r.ExecutionMS, &r.TokensUsed, &r.Model)
	if err != nil {
		return nil, err
	}

	r.CreatedAt = parseSQLiteTime(createdAt)
	if err := json.Unmarshal([]byte(findings), &r.Findings); err != nil {
		return nil, fmt.Errorf("decode findings for review %s: %w", r.UUID, err)
	}
	if err := json.Unmarshal([]byte(guardrails), &r.Guardrails); err != nil {
		return nil, fmt.Errorf("decode guardrails for review %s: %w", r.UUID, err)
	}
	return &r, nil
}

// GetReviewByUUID finds a stored review.
func (db *DB) GetReviewByUUID(id string) (*ReviewRecord, error) {
	row := db.QueryRow(`SELECT `+reviewColumns+` FROM reviews WHERE uuid = ?`, id)
	return scanReview(row)
}

// ListReviews returns stored reviews newest-first. A repo filter may
// be empty. limit <= 0 means no limit.
func (db *DB) ListReviews(repo string, limit, offset int) ([]ReviewRecord, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews`
	var args []any
	if repo != "" {
		query += ` WHERE repo = ?`
		args = append(args, repo)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ReviewRecord
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// parseSQLiteTime parses the datetime('now') format used by SQLite.
func parseSQLiteTime(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
