package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	mode          TEXT NOT NULL,
	settings_json TEXT NOT NULL,
	threats_json  TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS site_records (
	version_id     TEXT PRIMARY KEY,
	parent_id      TEXT,
	run_id         TEXT NOT NULL,
	site_index     INTEGER NOT NULL,
	health         INTEGER NOT NULL,
	time           INTEGER NOT NULL,
	threat_level   REAL NOT NULL,
	threat         INTEGER NOT NULL,
	recommendation INTEGER NOT NULL,
	action         INTEGER NOT NULL,
	performance    INTEGER NOT NULL,
	trust_feedback REAL NOT NULL,
	created_at     TEXT NOT NULL,
	UNIQUE (run_id, site_index),
	FOREIGN KEY (parent_id) REFERENCES site_records(version_id),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS trust_params (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	site_index INTEGER NOT NULL,
	owner      TEXT NOT NULL,
	params     BLOB NOT NULL,
	created_at TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         TEXT NOT NULL,
	site_index     INTEGER NOT NULL,
	planner        TEXT NOT NULL,
	recommendation INTEGER NOT NULL,
	action         INTEGER NOT NULL,
	transition     TEXT NOT NULL,
	value0         REAL,
	value1         REAL,
	elapsed_us     INTEGER,
	reason         TEXT,
	created_at     TEXT NOT NULL
);
`

// timeLayout is RFC 3339 with a fixed nine-digit fraction so stored
// timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #endregion schema

// #region owners
// Owners of stored trust parameter snapshots.
const (
	OwnerHuman = "human"
	OwnerRobot = "robot"
)

// #endregion owners

// #region run
// Run is a persisted mission: its settings and the threat sequence it used.
type Run struct {
	RunID     string
	Mode      string // "team" | "baseline"
	Settings  Settings
	Threats   Threats
	CreatedAt time.Time
}

// #endregion run

// #region store-struct
// Store persists mission runs in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region runs
// CreateRun registers a new mission run and returns it with a fresh ID.
func (s *Store) CreateRun(mode string, settings Settings, threats Threats) (Run, error) {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return Run{}, fmt.Errorf("marshal settings: %w", err)
	}
	threatsJSON, err := json.Marshal(threats)
	if err != nil {
		return Run{}, fmt.Errorf("marshal threats: %w", err)
	}

	run := Run{
		RunID:     uuid.New().String(),
		Mode:      mode,
		Settings:  settings,
		Threats:   threats,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.Exec(
		`INSERT INTO runs (run_id, mode, settings_json, threats_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.RunID, mode, string(settingsJSON), string(threatsJSON), run.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(runID string) (Run, error) {
	row := s.db.QueryRow(
		`SELECT run_id, mode, settings_json, threats_json, created_at FROM runs WHERE run_id = ?`, runID,
	)
	run, err := scanRun(row)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT run_id, mode, settings_json, threats_json, created_at
		 FROM runs ORDER BY rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(r rowScanner) (Run, error) {
	var run Run
	var settingsJSON, threatsJSON, createdStr string
	if err := r.Scan(&run.RunID, &run.Mode, &settingsJSON, &threatsJSON, &createdStr); err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal([]byte(settingsJSON), &run.Settings); err != nil {
		return Run{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := json.Unmarshal([]byte(threatsJSON), &run.Threats); err != nil {
		return Run{}, fmt.Errorf("unmarshal threats: %w", err)
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return run, nil
}

// #endregion runs

// #region commit-site
// CommitSite inserts a site record and the robot's parameter snapshot
// atomically. Records without an estimate, as in baseline runs, store no
// snapshot.
func (s *Store) CommitSite(rec SiteRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	created := rec.CreatedAt.Format(timeLayout)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parentPtr interface{}
	if rec.ParentID != "" {
		parentPtr = rec.ParentID
	}

	_, err = tx.Exec(
		`INSERT INTO site_records (version_id, parent_id, run_id, site_index, health, time, threat_level,
		 threat, recommendation, action, performance, trust_feedback, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, parentPtr, rec.RunID, rec.SiteIndex, rec.Health, rec.Time, rec.ThreatLevel,
		rec.Threat, int(rec.Recommendation), int(rec.Action), rec.Performance, rec.TrustFeedback, created,
	)
	if err != nil {
		return fmt.Errorf("insert site: %w", err)
	}

	if rec.EstimatedParams != (TrustParams{}) {
		_, err = tx.Exec(
			`INSERT INTO trust_params (run_id, site_index, owner, params, created_at) VALUES (?, ?, ?, ?, ?)`,
			rec.RunID, rec.SiteIndex, OwnerRobot, EncodeTrustParams(rec.EstimatedParams), created,
		)
		if err != nil {
			return fmt.Errorf("insert params: %w", err)
		}
	}

	return tx.Commit()
}

// #endregion commit-site

// #region list-sites
// ListSites returns the site records of a run in site order, with the
// robot's parameter snapshot attached.
func (s *Store) ListSites(runID string) ([]SiteRecord, error) {
	rows, err := s.db.Query(
		`SELECT r.version_id, r.parent_id, r.run_id, r.site_index, r.health, r.time, r.threat_level,
		        r.threat, r.recommendation, r.action, r.performance, r.trust_feedback, r.created_at,
		        (SELECT p.params FROM trust_params p
		          WHERE p.run_id = r.run_id AND p.site_index = r.site_index AND p.owner = ?
		          ORDER BY p.id DESC LIMIT 1)
		 FROM site_records r WHERE r.run_id = ? ORDER BY r.site_index ASC`, OwnerRobot, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var records []SiteRecord
	for rows.Next() {
		var rec SiteRecord
		var parentID sql.NullString
		var rec0, act int
		var createdStr string
		var paramsBlob []byte

		if err := rows.Scan(&rec.VersionID, &parentID, &rec.RunID, &rec.SiteIndex, &rec.Health, &rec.Time,
			&rec.ThreatLevel, &rec.Threat, &rec0, &act, &rec.Performance, &rec.TrustFeedback, &createdStr,
			&paramsBlob); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		if parentID.Valid {
			rec.ParentID = parentID.String
		}
		rec.Recommendation = Action(rec0)
		rec.Action = Action(act)
		rec.EstimatedParams = DecodeTrustParams(paramsBlob)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion list-sites

// #region params
// SaveParams stores a trust parameter snapshot for an owner at a site.
func (s *Store) SaveParams(runID string, siteIndex int, owner string, p TrustParams) error {
	_, err := s.db.Exec(
		`INSERT INTO trust_params (run_id, site_index, owner, params, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, siteIndex, owner, EncodeTrustParams(p), time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save params: %w", err)
	}
	return nil
}

// LoadParams returns the latest snapshot stored for an owner at a site.
func (s *Store) LoadParams(runID string, siteIndex int, owner string) (TrustParams, error) {
	var blob []byte
	err := s.db.QueryRow(
		`SELECT params FROM trust_params WHERE run_id = ? AND site_index = ? AND owner = ?
		 ORDER BY id DESC LIMIT 1`, runID, siteIndex, owner,
	).Scan(&blob)
	if err != nil {
		return TrustParams{}, fmt.Errorf("load params %s/%d/%s: %w", runID, siteIndex, owner, err)
	}
	return DecodeTrustParams(blob), nil
}

// #endregion params
