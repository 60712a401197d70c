package writer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/logflow/conformflow/pkg/conformance"
)

// RunSummary is the per-run acceptance aggregate kept by a DuckDBSink.
type RunSummary struct {
	RunID    string
	Cases    int64
	Accepted int64
	Rate     float64
}

// DuckDBSink stores conformance verdicts of many runs in one DuckDB
// database so they can be compared with SQL. An empty path keeps the
// database in memory.
type DuckDBSink struct {
	cfg  Config
	db   *sql.DB
	stmt *sql.Stmt

	mu      sync.Mutex
	written int64
	closed  bool
}

// OpenDuckDB opens (or creates) the sink database at path.
func OpenDuckDB(path string, cfg Config) (*DuckDBSink, error) {
	cfg = cfg.withDefaults()
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS conformance (
			run_id VARCHAR NOT NULL,
			case_id VARCHAR NOT NULL,
			accepted BOOLEAN NOT NULL,
			final_state VARCHAR,
			consumed BIGINT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	stmt, err := db.Prepare(`
		INSERT INTO conformance (run_id, case_id, accepted, final_state, consumed)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}

	return &DuckDBSink{cfg: cfg, db: db, stmt: stmt}, nil
}

// Append inserts the results of one run. Rows are committed in
// transactions of at most BatchSize rows; a failed batch is rolled back.
func (s *DuckDBSink) Append(ctx context.Context, runID string, rs *conformance.ResultSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("append run %s: sink closed", runID)
	}

	results := rs.Results()
	for start := 0; start < len(results); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(results) {
			end = len(results)
		}
		if err := s.insertBatch(ctx, runID, results[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *DuckDBSink) insertBatch(ctx context.Context, runID string, batch []conformance.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt := tx.StmtContext(ctx, s.stmt)
	for _, r := range batch {
		var final interface{}
		if r.FinalState != "" {
			final = string(r.FinalState)
		}
		if _, err := stmt.ExecContext(ctx, runID, r.CaseID, r.Accepted, final, int64(r.Consumed)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert result %s: %w", r.CaseID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.written += int64(len(batch))
	return nil
}

// Summary returns per-run acceptance counts ordered by run ID.
func (s *DuckDBSink) Summary(ctx context.Context) ([]RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id,
		       COUNT(*) AS cases,
		       COUNT(*) FILTER (WHERE accepted) AS accepted
		FROM conformance
		GROUP BY run_id
		ORDER BY run_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		if err := rows.Scan(&rs.RunID, &rs.Cases, &rs.Accepted); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		if rs.Cases > 0 {
			rs.Rate = float64(rs.Accepted) / float64(rs.Cases)
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// Export copies the whole conformance table to a Parquet file.
func (s *DuckDBSink) Export(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := fmt.Sprintf(`COPY conformance TO '%s' (FORMAT PARQUET, COMPRESSION '%s')`,
		strings.ReplaceAll(path, "'", "''"), s.cfg.Compression.duckdbName())
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to export parquet: %w", err)
	}
	return nil
}

// RowsWritten returns the number of rows inserted through this sink.
func (s *DuckDBSink) RowsWritten() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Close releases the prepared statement and database handle.
func (s *DuckDBSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stmt.Close()
	return s.db.Close()
}
