package logging

import "time"

// #region planners
// Planner names recorded in provenance rows.
const (
	PlannerRobot     = "robot"
	PlannerRobotOnly = "robot_only"
)

// #endregion planners

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table: the planner's
// root values for one site and what the human then did.
type ProvenanceEntry struct {
	RunID          string
	SiteIndex      int
	Planner        string // "robot" | "robot_only"
	Recommendation int
	Action         int
	Transition     string // "health_loss" | "time_loss" | "no_loss"
	Value0         float64
	Value1         float64
	ElapsedUs      int64
	Reason         string
	CreatedAt      time.Time
}

// #endregion provenance-entry
