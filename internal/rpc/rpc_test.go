package rpc

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/trust-planner/internal/decision"
	"github.com/danielpatrickdp/trust-planner/internal/human"
	"github.com/danielpatrickdp/trust-planner/internal/performance"
	"github.com/danielpatrickdp/trust-planner/internal/planner"
	"github.com/danielpatrickdp/trust-planner/internal/reward"
	"github.com/danielpatrickdp/trust-planner/internal/state"
	"github.com/danielpatrickdp/trust-planner/internal/trust"
)

// #region mock
type mockPlannerService struct {
	resp *structpb.Struct
	err  error
	last *structpb.Struct
}

func (m *mockPlannerService) Recommend(_ context.Context, req *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	m.last = req
	return m.resp, m.err
}

// #endregion mock

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// setupServer starts an in-memory planning server and returns a client for it.
func setupServer(t *testing.T) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterPlannerServiceServer(srv, NewServer(planner.Config{Workers: 2}, quiet()))
	go func() {
		if err := srv.Serve(lis); err != nil {
			t.Logf("server exited: %v", err)
		}
	}()

	c, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Close()
		srv.Stop()
		lis.Close()
	})
	return c
}

func request() RecommendRequest {
	return RecommendRequest{
		Info:      state.RobotInfo{Health: 90, Time: 10, SiteIndex: 2, ThreatLevel: 0.6, PriorThreatLevel: 0.7},
		Settings:  state.Settings{NumSites: 5, StartHealth: 100, PriorThreatLevel: 0.7, DiscountFactor: 0.7},
		Trust:     state.TrustParams{Alpha0: 10, Beta0: 10, Ws: 10, Wf: 20},
		Successes: 1,
		Failures:  1,
		Kappa:     0.2,
		Wh:        0.75,
	}
}

// localPlan runs the same planning call in-process.
func localPlan(t *testing.T, req RecommendRequest) planner.Plan {
	t.Helper()
	tm, err := trust.NewBetaModel(req.Trust, performance.ObservedReward{}, 9)
	require.NoError(t, err)
	require.NoError(t, tm.UpdateFromOutcome(1))
	require.NoError(t, tm.UpdateFromOutcome(0))
	dm, err := decision.NewBoundedRationalityDisuse(req.Kappa, 9)
	require.NoError(t, err)
	rs, err := reward.NewConstantWeights(req.Wh)
	require.NoError(t, err)
	r, err := planner.NewRobot(human.NewModel(tm, dm, nil), rs, req.Settings, planner.DefaultConfig(), quiet())
	require.NoError(t, err)
	p, err := r.Plan(context.Background(), req.Info)
	require.NoError(t, err)
	return p
}

func TestRequestRoundTrip(t *testing.T) {
	req := request()
	s, err := encodeRequest(req)
	require.NoError(t, err)
	got, err := decodeRequest(s)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestDecodeMissingField(t *testing.T) {
	s, err := encodeRequest(request())
	require.NoError(t, err)
	delete(s.Fields, "wh")
	_, err = decodeRequest(s)
	require.ErrorIs(t, err, state.ErrValidation)
	assert.Contains(t, err.Error(), `"wh"`)
}

func TestDecodeRejectsBadNumbers(t *testing.T) {
	cases := map[string]struct {
		key   string
		value float64
	}{
		"nan kappa":          {"kappa", math.NaN()},
		"infinite health":    {"health", math.Inf(1)},
		"fractional count":   {"successes", 1.5},
		"huge site count":    {"num_sites", 1e12},
		"negative huge time": {"time", -1e19},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := encodeRequest(request())
			require.NoError(t, err)
			s.Fields[tc.key] = structpb.NewNumberValue(tc.value)
			_, err = decodeRequest(s)
			require.ErrorIs(t, err, state.ErrValidation)
			assert.Contains(t, err.Error(), `"`+tc.key+`"`)
		})
	}
}

func TestPlanRejectsOversizedMission(t *testing.T) {
	srv := NewServer(planner.DefaultConfig(), quiet())
	req := request()
	req.Settings.NumSites = 1 << 16
	_, err := srv.Plan(context.Background(), req)
	require.ErrorIs(t, err, state.ErrValidation)

	req.Settings.NumSites = state.MaxSites + 1
	_, err = srv.Plan(context.Background(), req)
	require.ErrorIs(t, err, state.ErrValidation)
}

func TestPlanRejectsCountsBeyondSiteIndex(t *testing.T) {
	srv := NewServer(planner.DefaultConfig(), quiet())
	req := request()
	req.Successes = 50_000_000
	_, err := srv.Plan(context.Background(), req)
	require.ErrorIs(t, err, state.ErrValidation)

	req.Successes, req.Failures = 2, 1
	_, err = srv.Plan(context.Background(), req)
	require.ErrorIs(t, err, state.ErrValidation)
}

func TestServerSurvivesRejectedRequests(t *testing.T) {
	c := setupServer(t)

	huge := request()
	huge.Settings.NumSites = 1 << 16
	_, err := c.Recommend(context.Background(), huge)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))

	many := request()
	many.Failures = 1 << 30
	_, err = c.Recommend(context.Background(), many)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))

	_, err = c.Recommend(context.Background(), request())
	require.NoError(t, err)
}

func TestRecommendOverBufconn(t *testing.T) {
	c := setupServer(t)
	req := request()

	got, err := c.Recommend(context.Background(), req)
	require.NoError(t, err)

	want := localPlan(t, req)
	assert.Equal(t, want.Recommendation, got.Recommendation)
	assert.InDelta(t, want.Value0, got.Value0, 1e-12)
	assert.InDelta(t, want.Value1, got.Value1, 1e-12)
	assert.Equal(t, 3, got.Horizon)
}

func TestRecommendErrorCodes(t *testing.T) {
	c := setupServer(t)

	past := request()
	past.Info.SiteIndex = 5
	_, err := c.Recommend(context.Background(), past)
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(errors.Unwrap(err)))

	bad := request()
	bad.Info.ThreatLevel = 1.5
	_, err = c.Recommend(context.Background(), bad)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))

	neg := request()
	neg.Failures = -1
	_, err = c.Recommend(context.Background(), neg)
	assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))
}

func TestClientWithMockService(t *testing.T) {
	resp, err := encodeResult(RecommendResult{Recommendation: state.ActionProtect, Value0: -0.5, Value1: -0.25, Horizon: 2, ElapsedUs: 40})
	require.NoError(t, err)
	mock := &mockPlannerService{resp: resp}
	c := NewClientWithService(mock)

	got, err := c.Recommend(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, RecommendResult{Recommendation: state.ActionProtect, Value0: -0.5, Value1: -0.25, Horizon: 2, ElapsedUs: 40}, got)
	assert.Equal(t, 0.75, mock.last.Fields["wh"].GetNumberValue())
	assert.NoError(t, c.Close())
}

func TestClientPropagatesErrors(t *testing.T) {
	c := NewClientWithService(&mockPlannerService{err: errors.New("unavailable")})
	_, err := c.Recommend(context.Background(), request())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recommend rpc")
}
