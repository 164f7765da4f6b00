package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO provenance_log (run_id, site_index, planner, recommendation, action, transition,
		 value0, value1, elapsed_us, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.SiteIndex,
		entry.Planner,
		entry.Recommendation,
		entry.Action,
		entry.Transition,
		entry.Value0,
		entry.Value1,
		entry.ElapsedUs,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region list-decisions
// ListDecisions returns the provenance rows of a run in site order.
func ListDecisions(db *sql.DB, runID string) ([]ProvenanceEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, site_index, planner, recommendation, action, transition,
		        value0, value1, elapsed_us, reason, created_at
		 FROM provenance_log WHERE run_id = ? ORDER BY site_index ASC, id ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var entries []ProvenanceEntry
	for rows.Next() {
		var e ProvenanceEntry
		var v0, v1 sql.NullFloat64
		var elapsed sql.NullInt64
		var reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.SiteIndex, &e.Planner, &e.Recommendation, &e.Action, &e.Transition,
			&v0, &v1, &elapsed, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.Value0, e.Value1 = v0.Float64, v1.Float64
		e.ElapsedUs = elapsed.Int64
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion list-decisions

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
