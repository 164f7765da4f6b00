package rpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/trust-planner/internal/decision"
	"github.com/danielpatrickdp/trust-planner/internal/human"
	"github.com/danielpatrickdp/trust-planner/internal/logging"
	"github.com/danielpatrickdp/trust-planner/internal/performance"
	"github.com/danielpatrickdp/trust-planner/internal/planner"
	"github.com/danielpatrickdp/trust-planner/internal/reward"
	"github.com/danielpatrickdp/trust-planner/internal/state"
	"github.com/danielpatrickdp/trust-planner/internal/trust"
)

// #region server
// Server answers Recommend by building a throwaway robot from the request.
type Server struct {
	cfg    planner.Config
	logger *slog.Logger
}

// NewServer returns a planning server.
func NewServer(cfg planner.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.New("rpc")
	}
	return &Server{cfg: cfg, logger: logger}
}

// Recommend implements PlannerServiceServer.
func (s *Server) Recommend(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.Plan(ctx, req)
	if err != nil {
		s.logger.Warn("recommend failed", "site", req.Info.SiteIndex, "error", err)
		return nil, status.Error(codeFor(err), err.Error())
	}
	out, err := encodeResult(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	s.logger.Info("recommend",
		"site", req.Info.SiteIndex,
		"recommendation", int(res.Recommendation),
		"elapsed_us", res.ElapsedUs)
	return out, nil
}

// Plan replays the trust counts onto a fresh model and plans one site.
func (s *Server) Plan(ctx context.Context, req RecommendRequest) (RecommendResult, error) {
	const op = "rpc.Recommend"
	if req.Successes < 0 || req.Failures < 0 {
		return RecommendResult{}, &state.ValidationError{Op: op, Field: "counts", Value: float64(min(req.Successes, req.Failures))}
	}
	// One outcome per completed site.
	if n := req.Successes + req.Failures; n > req.Info.SiteIndex {
		return RecommendResult{}, &state.ValidationError{Op: op, Field: "counts", Value: float64(n)}
	}
	if err := req.Settings.Validate(); err != nil {
		return RecommendResult{}, err
	}
	tm, err := trust.NewBetaModel(req.Trust, performance.ObservedReward{}, 0)
	if err != nil {
		return RecommendResult{}, err
	}
	if err := tm.Restore(req.Successes, req.Failures); err != nil {
		return RecommendResult{}, err
	}
	dm, err := decision.NewBoundedRationalityDisuse(req.Kappa, 0)
	if err != nil {
		return RecommendResult{}, err
	}
	rs, err := reward.NewConstantWeights(req.Wh)
	if err != nil {
		return RecommendResult{}, err
	}
	robot, err := planner.NewRobot(human.NewModel(tm, dm, nil), rs, req.Settings, s.cfg, s.logger)
	if err != nil {
		return RecommendResult{}, err
	}
	p, err := robot.Plan(ctx, req.Info)
	if err != nil {
		return RecommendResult{}, err
	}
	return RecommendResult{
		Recommendation: p.Recommendation,
		Value0:         p.Value0,
		Value1:         p.Value1,
		Horizon:        p.Horizon,
		ElapsedUs:      p.Elapsed.Microseconds(),
	}, nil
}

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, state.ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, state.ErrNoSitesRemaining):
		return codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

// #endregion server
