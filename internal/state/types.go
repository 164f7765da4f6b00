package state

import (
	"encoding/binary"
	"math"
	"time"
)

// #region constants
const (
	HealthStep = 10  // health lost when action 0 meets a threat
	TimeStep   = 10  // time spent when action 1 is chosen
	MaxHealth  = 100 // full health

	// MaxSites bounds a mission. The planner's value table holds
	// (sites+1)^4 cells.
	MaxSites = 50
)

// #endregion constants

// #region action
// Action is a site-level choice: 0 skips the protective measure, 1 uses it.
type Action int

const (
	ActionSkip    Action = 0
	ActionProtect Action = 1
)

// Valid reports whether a is one of the two defined actions.
func (a Action) Valid() bool {
	return a == ActionSkip || a == ActionProtect
}

// Other returns the alternative action.
func (a Action) Other() Action {
	return 1 - a
}

// #endregion action

// #region mission-state
// MissionState is the physical state at one decision point.
type MissionState struct {
	Health               int
	Time                 int
	SiteIndex            int
	ThreatLevelPrior     float64
	ThreatLevelPosterior float64
}

// RobotInfo is what the robot sees when planning a recommendation.
type RobotInfo struct {
	Health           int
	Time             int
	SiteIndex        int
	ThreatLevel      float64 // posterior, after scanning the current site
	PriorThreatLevel float64
}

// HumanInfo is what the human sees when deciding.
type HumanInfo struct {
	Health         int
	Time           int
	SiteIndex      int
	ThreatLevel    float64
	Recommendation Action
}

// Observation is the outcome revealed after the human acts.
type Observation struct {
	Threat        int
	Action        Action
	TrustFeedback float64
	HasFeedback   bool
}

// WithFeedback returns a copy of o carrying the given trust feedback.
func (o Observation) WithFeedback(fb float64) Observation {
	o.TrustFeedback = fb
	o.HasFeedback = true
	return o
}

// #endregion mission-state

// #region trust-params
// TrustParams are the four latent parameters of the Beta trust model:
// prior pseudo-counts Alpha0, Beta0 and per-outcome increments Ws, Wf.
type TrustParams struct {
	Alpha0 float64 `json:"alpha0" yaml:"alpha0"`
	Beta0  float64 `json:"beta0" yaml:"beta0"`
	Ws     float64 `json:"ws" yaml:"ws"`
	Wf     float64 `json:"wf" yaml:"wf"`
}

// Validate rejects non-positive or non-finite parameters.
func (p TrustParams) Validate() error {
	names := [4]string{"alpha0", "beta0", "ws", "wf"}
	for i, v := range p.Vector() {
		if !(v > 0) || math.IsInf(v, 0) {
			return &ValidationError{Op: "TrustParams.Validate", Field: names[i], Value: v}
		}
	}
	return nil
}

// Vector returns the parameters in (alpha0, beta0, ws, wf) order.
func (p TrustParams) Vector() [4]float64 {
	return [4]float64{p.Alpha0, p.Beta0, p.Ws, p.Wf}
}

// TrustParamsFromVector is the inverse of Vector.
func TrustParamsFromVector(v []float64) TrustParams {
	return TrustParams{Alpha0: v[0], Beta0: v[1], Ws: v[2], Wf: v[3]}
}

// Offset returns p with d added to every parameter.
func (p TrustParams) Offset(d float64) TrustParams {
	return TrustParams{Alpha0: p.Alpha0 + d, Beta0: p.Beta0 + d, Ws: p.Ws + d, Wf: p.Wf + d}
}

// EncodeTrustParams packs p into 32 little-endian bytes. Bit-exact round trip.
func EncodeTrustParams(p TrustParams) []byte {
	buf := make([]byte, 4*8)
	for i, f := range p.Vector() {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

// DecodeTrustParams unpacks bytes produced by EncodeTrustParams.
func DecodeTrustParams(b []byte) TrustParams {
	var v [4]float64
	for i := range v {
		if i*8+8 <= len(b) {
			v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
		}
	}
	return TrustParamsFromVector(v[:])
}

// #endregion trust-params

// #region threats
// Threats holds the ground truth and post-scan threat levels for every site.
type Threats struct {
	Present   []int     `json:"present" yaml:"present"`
	AfterScan []float64 `json:"after_scan" yaml:"after_scan"`
}

// Len returns the number of sites covered.
func (t Threats) Len() int {
	return len(t.Present)
}

// #endregion threats

// #region settings
// Settings are the fixed parameters of one mission.
type Settings struct {
	NumSites         int     `json:"num_sites" yaml:"num_sites"`
	StartHealth      int     `json:"start_health" yaml:"start_health"`
	StartTime        int     `json:"start_time" yaml:"start_time"`
	PriorThreatLevel float64 `json:"prior_threat_level" yaml:"prior_threat_level"`
	DiscountFactor   float64 `json:"discount_factor" yaml:"discount_factor"`
	ThreatSeed       uint64  `json:"threat_seed" yaml:"threat_seed"`
}

// Validate checks ranges of every field.
func (s Settings) Validate() error {
	const op = "Settings.Validate"
	switch {
	case s.NumSites < 1 || s.NumSites > MaxSites:
		return &ValidationError{Op: op, Field: "num_sites", Value: float64(s.NumSites)}
	case s.StartHealth < 0 || s.StartHealth > MaxHealth:
		return &ValidationError{Op: op, Field: "start_health", Value: float64(s.StartHealth)}
	case s.StartTime < 0:
		return &ValidationError{Op: op, Field: "start_time", Value: float64(s.StartTime)}
	}
	if err := CheckUnit(op, "prior_threat_level", s.PriorThreatLevel); err != nil {
		return err
	}
	return CheckUnit(op, "discount_factor", s.DiscountFactor)
}

// #endregion settings

// #region site-record
// SiteRecord is the versioned snapshot committed after each completed site.
// Records of one run form a chain through ParentID.
type SiteRecord struct {
	VersionID       string
	ParentID        string
	RunID           string
	SiteIndex       int
	Health          int // after the site's transition
	Time            int
	ThreatLevel     float64
	Threat          int
	Recommendation  Action
	Action          Action
	Performance     int
	TrustFeedback   float64
	EstimatedParams TrustParams
	CreatedAt       time.Time
}

// #endregion site-record

// #region history
// History is the per-site record of a mission, one entry appended per site.
// Health and Time additionally hold the starting values at index 0.
type History struct {
	Health          []int
	Time            []int
	Recommendations []Action
	Actions         []Action
	TrustFeedback   []float64
	Threats         []int
	Performance     []int
	EstimatedTrust  []float64
	EstimatedParams []TrustParams
}

// NewHistory seeds a history with the starting health and time.
func NewHistory(startHealth, startTime int) History {
	return History{Health: []int{startHealth}, Time: []int{startTime}}
}

// Sites returns the number of completed sites.
func (h History) Sites() int {
	return len(h.Actions)
}

// #endregion history
