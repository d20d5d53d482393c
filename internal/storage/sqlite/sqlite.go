// Package sqlite keeps the history of evaluation runs.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"reviewbench/internal/domain"
	"reviewbench/internal/evaluation"
)

var ErrRunNotFound = errors.New("evaluation run not found")

// Run is one stored evaluation together with its per-category results.
type Run struct {
	ID              string
	Dataset         string
	Candidate       string
	ReferenceKey    string
	CandidateKey    string
	ConfidenceLevel float64
	TotalRecords    int
	ReportPath      string
	CreatedAt       time.Time
	Results         []domain.EvaluationResult
}

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS evaluation_runs (
		id               TEXT PRIMARY KEY,
		dataset          TEXT NOT NULL,
		candidate        TEXT NOT NULL,
		reference_key    TEXT NOT NULL,
		candidate_key    TEXT NOT NULL,
		confidence_level REAL NOT NULL,
		total_records    INTEGER NOT NULL DEFAULT 0,
		report_path      TEXT DEFAULT '',
		created_at       DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON evaluation_runs(created_at);

	CREATE TABLE IF NOT EXISTS evaluation_results (
		run_id         TEXT NOT NULL,
		label          TEXT NOT NULL,
		position       INTEGER NOT NULL,
		total          INTEGER NOT NULL,
		matched        INTEGER NOT NULL,
		match_rate     REAL NOT NULL,
		interval_lower REAL NOT NULL,
		interval_upper REAL NOT NULL,
		dist_negative  INTEGER NOT NULL,
		dist_neutral   INTEGER NOT NULL,
		dist_positive  INTEGER NOT NULL,
		PRIMARY KEY (run_id, position)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// InsertRun stores the run and its results in one transaction and returns the
// new run id.
func InsertRun(db *sql.DB, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.TotalRecords == 0 {
		run.TotalRecords = evaluation.ValidRecords(run.Results)
	}

	tx, err := db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO evaluation_runs (id, dataset, candidate, reference_key, candidate_key, confidence_level, total_records, report_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Dataset, run.Candidate, run.ReferenceKey, run.CandidateKey,
		run.ConfidenceLevel, run.TotalRecords, run.ReportPath, run.CreatedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO evaluation_results (run_id, label, position, total, matched, match_rate, interval_lower, interval_upper, dist_negative, dist_neutral, dist_positive)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for _, r := range run.Results {
		d := r.CandidateDistribution
		_, err := stmt.Exec(
			run.ID, r.Label.String(), int(r.Label), r.Total, r.Matched, r.MatchRate,
			r.IntervalLower, r.IntervalUpper,
			d.Count(domain.Negative), d.Count(domain.Neutral), d.Count(domain.Positive),
		)
		if err != nil {
			return "", fmt.Errorf("insert result %s: %w", r.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.ID, nil
}

func SetReportPath(db *sql.DB, runID, reportPath string) error {
	res, err := db.Exec(`UPDATE evaluation_runs SET report_path = ? WHERE id = ?`, reportPath, runID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// ListRuns returns the most recent runs first, without results.
func ListRuns(db *sql.DB, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(
		`SELECT id, dataset, candidate, reference_key, candidate_key, confidence_level, total_records, report_path, created_at
		 FROM evaluation_runs ORDER BY created_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun loads one run with its results in Negative, Neutral, Positive order.
func GetRun(db *sql.DB, runID string) (Run, error) {
	row := db.QueryRow(
		`SELECT id, dataset, candidate, reference_key, candidate_key, confidence_level, total_records, report_path, created_at
		 FROM evaluation_runs WHERE id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Run{}, err
	}
	run.Results, err = GetRunResults(db, runID)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

func GetRunResults(db *sql.DB, runID string) ([]domain.EvaluationResult, error) {
	rows, err := db.Query(
		`SELECT position, total, matched, match_rate, interval_lower, interval_upper, dist_negative, dist_neutral, dist_positive
		 FROM evaluation_results WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.EvaluationResult
	for rows.Next() {
		var (
			position int
			r        domain.EvaluationResult
			d        domain.Distribution
		)
		err := rows.Scan(
			&position, &r.Total, &r.Matched, &r.MatchRate, &r.IntervalLower, &r.IntervalUpper,
			&d[domain.Negative], &d[domain.Neutral], &d[domain.Positive],
		)
		if err != nil {
			return nil, err
		}
		r.Label = domain.SentimentLabel(position)
		if !r.Label.Valid() {
			return nil, fmt.Errorf("run %s: stored label position %d out of range", runID, position)
		}
		r.CandidateDistribution = d
		results = append(results, r)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (Run, error) {
	var run Run
	err := s.Scan(
		&run.ID, &run.Dataset, &run.Candidate, &run.ReferenceKey, &run.CandidateKey,
		&run.ConfidenceLevel, &run.TotalRecords, &run.ReportPath, &run.CreatedAt,
	)
	return run, err
}
