package sim

import (
	"fmt"

	"github.com/danielpatrickdp/trust-planner/internal/logging"
	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// #region recorder
// Recorder persists a mission as it runs.
type Recorder interface {
	// RecordStart stores the starting trust parameters before the first site.
	RecordStart(runID string, human, robot state.TrustParams) error
	// RecordSite stores one completed site and its planner provenance.
	RecordSite(rec state.SiteRecord, entry logging.ProvenanceEntry) error
}

// StoreRecorder writes to a SQLite store.
type StoreRecorder struct {
	Store *state.Store
}

// NewStoreRecorder wraps a store.
func NewStoreRecorder(store *state.Store) *StoreRecorder {
	return &StoreRecorder{Store: store}
}

// RecordStart saves both parameter sets at site -1.
func (r *StoreRecorder) RecordStart(runID string, human, robot state.TrustParams) error {
	if err := r.Store.SaveParams(runID, -1, state.OwnerHuman, human); err != nil {
		return fmt.Errorf("record start: %w", err)
	}
	if err := r.Store.SaveParams(runID, -1, state.OwnerRobot, robot); err != nil {
		return fmt.Errorf("record start: %w", err)
	}
	return nil
}

// RecordSite commits the site record, then its provenance row.
func (r *StoreRecorder) RecordSite(rec state.SiteRecord, entry logging.ProvenanceEntry) error {
	if err := r.Store.CommitSite(rec); err != nil {
		return fmt.Errorf("record site %d: %w", rec.SiteIndex, err)
	}
	if err := logging.LogDecision(r.Store.DB(), entry); err != nil {
		return fmt.Errorf("record site %d: %w", rec.SiteIndex, err)
	}
	return nil
}

// #endregion recorder
