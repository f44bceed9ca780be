// Package grpcserver exposes the GlucoKeeper gRPC API handlers.
package grpcserver

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/glucokeeper/internal/convert"
	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/model"
	"github.com/and161185/glucokeeper/internal/service"
)

// AccountService manages account lifecycle.
type AccountService interface {
	Register(ctx context.Context, req service.RegisterRequest) (model.User, model.AccessToken, error)
	Profile(ctx context.Context, u model.User) (service.Profile, error)
	Delete(ctx context.Context, u model.User) (service.DeletedAccount, error)
}

// GoalService manages a user's goals.
type GoalService interface {
	List(ctx context.Context, userID uuid.UUID) ([]model.Goal, error)
	Create(ctx context.Context, userID uuid.UUID, g model.Goal) (model.Goal, error)
	Update(ctx context.Context, userID uuid.UUID, title string, field model.GoalField, value string) (model.Goal, error)
	Delete(ctx context.Context, userID uuid.UUID, title string) (model.Goal, error)
}

// InsightService answers reading queries for a username.
type InsightService interface {
	SamplesOn(ctx context.Context, username string, day time.Time) ([]model.Sample, error)
	Latest(ctx context.Context, username string, n int) ([]model.Sample, error)
	AverageDay(ctx context.Context, username string, hours []model.ClockTime, toleranceMinutes int) ([]model.AverageDayPoint, error)
	HourTrend(ctx context.Context, username string, from, to time.Time, tolerance float64) (model.HourTrend, error)
	DayTrend(ctx context.Context, username string, day1, day2 time.Time, tolerance float64) (model.DayTrend, error)
	MonthTrend(ctx context.Context, username string, m1, y1, m2, y2 int, tolerance float64) (model.MonthTrend, error)
	UserStats(ctx context.Context, username string) (model.Stats, error)
	AllStats(ctx context.Context) (model.Stats, error)
	RawData(ctx context.Context, username string) ([]byte, error)
	PutRawData(ctx context.Context, username string, data []byte) (int, error)
}

// OwnerChecker verifies that a username in a request addresses the caller.
type OwnerChecker interface {
	AssertUsernameMatches(username string, u model.User) error
}

// Server wires services into gRPC handlers.
type Server struct {
	tokens   service.TokenManager
	accounts AccountService
	goals    GoalService
	insights InsightService
	owner    OwnerChecker
	loc      *time.Location
	log      *zap.Logger
}

var _ API = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithLocation sets the zone request dates are read in. Default UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) { s.loc = loc }
}

// WithLogger sets the logger for internal failures.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New constructs a gRPC server with injected services.
func New(tokens service.TokenManager, accounts AccountService, goals GoalService, insights InsightService, owner OwnerChecker, opts ...Option) *Server {
	s := &Server{
		tokens: tokens, accounts: accounts, goals: goals, insights: insights, owner: owner,
		loc: time.UTC, log: zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Server) fail(op string, err error) error {
	if codeOf(err) == codes.Internal {
		s.log.Error(op, zap.Error(err))
	}
	return toStatus(op, err)
}

func (s *Server) reply(op string, fields map[string]any) (*structpb.Struct, error) {
	out, err := convert.Struct(fields)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return out, nil
}

func caller(ctx context.Context) (model.User, error) {
	u, ok := UserFromCtx(ctx)
	if !ok {
		return model.User{}, status.Error(codes.Unauthenticated, "no auth")
	}
	return u, nil
}

// subject returns the caller and the username the request addresses: the optional
// "username" field, which must be the caller's own, or the caller's username.
func (s *Server) subject(ctx context.Context, a convert.Args) (model.User, string, error) {
	u, err := caller(ctx)
	if err != nil {
		return model.User{}, "", err
	}
	name, err := a.OptString("username")
	if err != nil {
		return model.User{}, "", err
	}
	if name == "" {
		return u, u.Username(), nil
	}
	if err := s.owner.AssertUsernameMatches(name, u); err != nil {
		return model.User{}, "", err
	}
	return u, name, nil
}

func remoteAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

// --- accounts & tokens ---

// Register creates an account and returns it with a one-day full-rights token.
func (s *Server) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "register"
	a := convert.NewArgs(req)
	var r service.RegisterRequest
	var err error
	if r.Firstname, err = a.String("firstname"); err != nil {
		return nil, s.fail(op, err)
	}
	if r.Lastname, err = a.String("lastname"); err != nil {
		return nil, s.fail(op, err)
	}
	if r.Password, err = a.String("password"); err != nil {
		return nil, s.fail(op, err)
	}
	if r.Email, err = a.OptString("email"); err != nil {
		return nil, s.fail(op, err)
	}
	if r.AppName, err = a.OptString("app_name"); err != nil {
		return nil, s.fail(op, err)
	}

	u, tok, err := s.accounts.Register(ctx, r)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, map[string]any{"user": convert.User(u), "token": convert.Token(tok)})
}

// IssueToken authenticates "firstname_lastname" + password and issues a scoped token.
func (s *Server) IssueToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "issue token"
	a := convert.NewArgs(req)
	username, err := a.String("username")
	if err != nil {
		return nil, s.fail(op, err)
	}
	first, last, err := service.SplitUsername(username)
	if err != nil {
		return nil, s.fail(op, err)
	}
	password, err := a.String("password")
	if err != nil {
		return nil, s.fail(op, err)
	}
	rights, err := a.Capabilities("scopes")
	if err != nil {
		return nil, s.fail(op, err)
	}
	d, err := a.Duration()
	if err != nil {
		return nil, s.fail(op, err)
	}
	app, err := a.OptString("app_name")
	if err != nil {
		return nil, s.fail(op, err)
	}

	tok, err := s.tokens.Issue(ctx, service.IssueRequest{
		Firstname: first, Lastname: last, Password: password,
		Rights: rights, Duration: d, AppName: app, RemoteAddr: remoteAddr(ctx),
	})
	if err != nil {
		return nil, s.fail(op, err)
	}
	out := convert.Token(tok)
	out["access_token"] = tok.Value
	out["token_type"] = "bearer"
	return s.reply(op, out)
}

// ListTokens returns the caller's tokens.
func (s *Server) ListTokens(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	const op = "list tokens"
	u, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	ts, err := s.tokens.ListForUser(ctx, u.ID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, map[string]any{"tokens": convert.Tokens(ts)})
}

// RevokeTokens deletes every token of the caller, including the one in use.
func (s *Server) RevokeTokens(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	const op = "revoke tokens"
	u, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	ts, err := s.tokens.RevokeAllForUser(ctx, u.ID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, map[string]any{"tokens": convert.Tokens(ts)})
}

// GetProfile returns the caller's account and devices.
func (s *Server) GetProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "get profile"
	u, _, err := s.subject(ctx, convert.NewArgs(req))
	if err != nil {
		return nil, s.fail(op, err)
	}
	p, err := s.accounts.Profile(ctx, u)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, convert.Profile(p.User, p.Devices))
}

// DeleteAccount removes the caller's account, tokens and goals.
func (s *Server) DeleteAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "delete account"
	u, _, err := s.subject(ctx, convert.NewArgs(req))
	if err != nil {
		return nil, s.fail(op, err)
	}
	d, err := s.accounts.Delete(ctx, u)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, convert.DeletedAccount(d.User, d.Tokens, d.Goals))
}

// --- readings ---

// GetSamples returns the readings of "day" (dd/mm/yyyy, default today).
func (s *Server) GetSamples(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "get samples"
	a := convert.NewArgs(req)
	_, name, err := s.subject(ctx, a)
	if err != nil {
		return nil, s.fail(op, err)
	}
	day, err := a.Date("day", s.loc)
	if err != nil {
		return nil, s.fail(op, err)
	}
	ss, err := s.insights.SamplesOn(ctx, name, day)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, map[string]any{"samples": convert.Samples(ss)})
}

// GetLatestSamples returns the last "n" readings.
func (s *Server) GetLatestSamples(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "get latest samples"
	a := convert.NewArgs(req)
	_, name, err := s.subject(ctx, a)
	if err != nil {
		return nil, s.fail(op, err)
	}
	n, err := a.Int("n", 0)
	if err != nil {
		return nil, s.fail(op, err)
	}
	ss, err := s.insights.Latest(ctx, name, n)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, map[string]any{"samples": convert.Samples(ss)})
}

// GetAverageDay averages readings around "hours" (HH:MM) within "error" minutes.
func (s *Server) GetAverageDay(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "get average day"
	a := convert.NewArgs(req)
	_, name, err := s.subject(ctx, a)
	if err != nil {
		return nil, s.fail(op, err)
	}
	hours, err := a.ClockTimes("hours")
	if err != nil {
		return nil, s.fail(op, err)
	}
	tol, err := a.Int("error", 0)
	if err != nil {
		return nil, s.fail(op, err)
	}
	pts, err := s.insights.AverageDay(ctx, name, hours, tol)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, map[string]any{"points": convert.AverageDay(pts)})
}

// GetRawData returns the stored export as text.
func (s *Server) GetRawData(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "get raw data"
	_, name, err := s.subject(ctx, convert.NewArgs(req))
	if err != nil {
		return nil, s.fail(op, err)
	}
	b, err := s.insights.RawData(ctx, name)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, map[string]any{"data": string(b)})
}

// PutRawData validates and replaces the stored export.
func (s *Server) PutRawData(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "put raw data"
	a := convert.NewArgs(req)
	_, name, err := s.subject(ctx, a)
	if err != nil {
		return nil, s.fail(op, err)
	}
	data, err := a.String("data")
	if err != nil {
		return nil, s.fail(op, err)
	}
	n, err := s.insights.PutRawData(ctx, name, []byte(data))
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, map[string]any{"message": "data file updated", "samples": n})
}

// GetHourTrend computes the trend between "from" and "to" (dd/mm/yyyy-HH:MM).
func (s *Server) GetHourTrend(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "get hour trend"
	a := convert.NewArgs(req)
	_, name, err := s.subject(ctx, a)
	if err != nil {
		return nil, s.fail(op, err)
	}
	from, err := a.DateTime("from", s.loc)
	if err != nil {
		return nil, s.fail(op, err)
	}
	to, err := a.DateTime("to", s.loc)
	if err != nil {
		return nil, s.fail(op, err)
	}
	tol, err := a.Float("error", 0)
	if err != nil {
		return nil, s.fail(op, err)
	}
	t, err := s.insights.HourTrend(ctx, name, from, to, tol)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, convert.HourTrend(t))
}

// GetDayTrend computes the trend between "day1" and "day2" (dd/mm/yyyy).
func (s *Server) GetDayTrend(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "get day trend"
	a := convert.NewArgs(req)
	_, name, err := s.subject(ctx, a)
	if err != nil {
		return nil, s.fail(op, err)
	}
	var days [2]time.Time
	for i, key := range []string{"day1", "day2"} {
		if !a.Has(key) {
			return nil, s.fail(op, fmt.Errorf("%s: required: %w", key, errs.ErrInvalidArgument))
		}
		if days[i], err = a.Date(key, s.loc); err != nil {
			return nil, s.fail(op, err)
		}
	}
	tol, err := a.Float("error", 0)
	if err != nil {
		return nil, s.fail(op, err)
	}
	t, err := s.insights.DayTrend(ctx, name, days[0], days[1], tol)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, convert.DayTrend(t))
}

// GetMonthTrend computes the trend over month1/year1 .. month2/year2.
func (s *Server) GetMonthTrend(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "get month trend"
	a := convert.NewArgs(req)
	_, name, err := s.subject(ctx, a)
	if err != nil {
		return nil, s.fail(op, err)
	}
	var v [4]int
	for i, key := range []string{"month1", "year1", "month2", "year2"} {
		if v[i], err = a.RequiredInt(key); err != nil {
			return nil, s.fail(op, err)
		}
	}
	tol, err := a.Float("error", 0)
	if err != nil {
		return nil, s.fail(op, err)
	}
	t, err := s.insights.MonthTrend(ctx, name, v[0], v[1], v[2], v[3], tol)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, convert.MonthTrend(t))
}

// GetUserStats returns statistics of the caller's readings.
func (s *Server) GetUserStats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "get user stats"
	_, name, err := s.subject(ctx, convert.NewArgs(req))
	if err != nil {
		return nil, s.fail(op, err)
	}
	st, err := s.insights.UserStats(ctx, name)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, convert.Stats(st))
}

// GetAllStats returns statistics over every user's readings.
func (s *Server) GetAllStats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	const op = "get all stats"
	st, err := s.insights.AllStats(ctx)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, convert.Stats(st))
}

// --- goals ---

// ListGoals returns the caller's goals.
func (s *Server) ListGoals(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "list goals"
	u, _, err := s.subject(ctx, convert.NewArgs(req))
	if err != nil {
		return nil, s.fail(op, err)
	}
	gs, err := s.goals.List(ctx, u.ID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, map[string]any{"goals": convert.Goals(gs)})
}

// CreateGoal stores a new goal.
func (s *Server) CreateGoal(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "create goal"
	a := convert.NewArgs(req)
	u, _, err := s.subject(ctx, a)
	if err != nil {
		return nil, s.fail(op, err)
	}
	g, err := convert.GoalFrom(a)
	if err != nil {
		return nil, s.fail(op, err)
	}
	created, err := s.goals.Create(ctx, u.ID, g)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, convert.Goal(created))
}

// UpdateGoal sets "field" of the goal "title" to "value".
func (s *Server) UpdateGoal(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "update goal"
	a := convert.NewArgs(req)
	u, _, err := s.subject(ctx, a)
	if err != nil {
		return nil, s.fail(op, err)
	}
	title, err := a.String("title")
	if err != nil {
		return nil, s.fail(op, err)
	}
	rawField, err := a.String("field")
	if err != nil {
		return nil, s.fail(op, err)
	}
	field, err := model.ParseGoalField(rawField)
	if err != nil {
		return nil, s.fail(op, err)
	}
	value, err := a.OptString("value")
	if err != nil {
		return nil, s.fail(op, err)
	}
	g, err := s.goals.Update(ctx, u.ID, title, field, value)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, convert.Goal(g))
}

// DeleteGoal removes the goal "title" and returns it.
func (s *Server) DeleteGoal(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "delete goal"
	a := convert.NewArgs(req)
	u, _, err := s.subject(ctx, a)
	if err != nil {
		return nil, s.fail(op, err)
	}
	title, err := a.String("title")
	if err != nil {
		return nil, s.fail(op, err)
	}
	g, err := s.goals.Delete(ctx, u.ID, title)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return s.reply(op, convert.Goal(g))
}
