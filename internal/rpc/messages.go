package rpc

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/trust-planner/internal/state"
)

// #region types
// RecommendRequest carries everything needed to plan one site, so the
// server keeps no per-mission state.
type RecommendRequest struct {
	Info      state.RobotInfo
	Settings  state.Settings
	Trust     state.TrustParams
	Successes int
	Failures  int
	Kappa     float64
	Wh        float64
}

// RecommendResult is the planner's answer.
type RecommendResult struct {
	Recommendation state.Action
	Value0         float64
	Value1         float64
	Horizon        int
	ElapsedUs      int64
}

// #endregion types

// #region encode
func encodeRequest(r RecommendRequest) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"health":             r.Info.Health,
		"time":               r.Info.Time,
		"site_index":         r.Info.SiteIndex,
		"threat_level":       r.Info.ThreatLevel,
		"prior_threat_level": r.Info.PriorThreatLevel,
		"num_sites":          r.Settings.NumSites,
		"start_health":       r.Settings.StartHealth,
		"start_time":         r.Settings.StartTime,
		"discount_factor":    r.Settings.DiscountFactor,
		"alpha0":             r.Trust.Alpha0,
		"beta0":              r.Trust.Beta0,
		"ws":                 r.Trust.Ws,
		"wf":                 r.Trust.Wf,
		"successes":          r.Successes,
		"failures":           r.Failures,
		"kappa":              r.Kappa,
		"wh":                 r.Wh,
	})
}

func encodeResult(r RecommendResult) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"recommendation": int(r.Recommendation),
		"value0":         r.Value0,
		"value1":         r.Value1,
		"horizon":        r.Horizon,
		"elapsed_us":     r.ElapsedUs,
	})
}

// #endregion encode

// #region decode
// maxWireInt bounds integer fields; larger counts and clocks are not
// meaningful for a mission.
const maxWireInt = 1 << 31

// fields reads numbers out of a Struct, remembering the first bad key.
type fields struct {
	s       *structpb.Struct
	bad     string
	problem string
}

func (f *fields) fail(key, problem string) {
	if f.bad == "" {
		f.bad, f.problem = key, problem
	}
}

// num rejects missing and non-finite values.
func (f *fields) num(key string) float64 {
	v, ok := f.s.GetFields()[key]
	if !ok {
		f.fail(key, "missing")
		return 0
	}
	n := v.GetNumberValue()
	if math.IsNaN(n) || math.IsInf(n, 0) {
		f.fail(key, "non-finite")
		return 0
	}
	return n
}

// integer additionally rejects fractions and values outside ±maxWireInt.
func (f *fields) integer(key string) int {
	n := f.num(key)
	if n != math.Trunc(n) || math.Abs(n) >= maxWireInt {
		f.fail(key, "non-integral or out of range")
		return 0
	}
	return int(n)
}

func (f *fields) err() error {
	if f.bad != "" {
		return fmt.Errorf("%s field %q: %w", f.problem, f.bad, state.ErrValidation)
	}
	return nil
}

func decodeRequest(s *structpb.Struct) (RecommendRequest, error) {
	f := &fields{s: s}
	r := RecommendRequest{
		Info: state.RobotInfo{
			Health:           f.integer("health"),
			Time:             f.integer("time"),
			SiteIndex:        f.integer("site_index"),
			ThreatLevel:      f.num("threat_level"),
			PriorThreatLevel: f.num("prior_threat_level"),
		},
		Settings: state.Settings{
			NumSites:       f.integer("num_sites"),
			StartHealth:    f.integer("start_health"),
			StartTime:      f.integer("start_time"),
			DiscountFactor: f.num("discount_factor"),
		},
		Trust: state.TrustParams{
			Alpha0: f.num("alpha0"),
			Beta0:  f.num("beta0"),
			Ws:     f.num("ws"),
			Wf:     f.num("wf"),
		},
		Successes: f.integer("successes"),
		Failures:  f.integer("failures"),
		Kappa:     f.num("kappa"),
		Wh:        f.num("wh"),
	}
	r.Settings.PriorThreatLevel = r.Info.PriorThreatLevel
	return r, f.err()
}

func decodeResult(s *structpb.Struct) (RecommendResult, error) {
	f := &fields{s: s}
	r := RecommendResult{
		Recommendation: state.Action(f.integer("recommendation")),
		Value0:         f.num("value0"),
		Value1:         f.num("value1"),
		Horizon:        f.integer("horizon"),
		ElapsedUs:      int64(f.num("elapsed_us")),
	}
	return r, f.err()
}

// #endregion decode
