package grpcserver

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/glucokeeper/internal/cache"
	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/ingest"
	"github.com/and161185/glucokeeper/internal/model"
	"github.com/and161185/glucokeeper/internal/service"
)

/************ fakes ************/

type fakeTokens struct {
	mu       sync.Mutex
	users    map[uuid.UUID]model.User
	byValue  map[string]model.AccessToken
	password string
	seq      int
	issued   []service.IssueRequest
}

var _ service.TokenManager = (*fakeTokens)(nil)

func newFakeTokens() *fakeTokens {
	return &fakeTokens{users: map[uuid.UUID]model.User{}, byValue: map[string]model.AccessToken{}, password: "pw"}
}

func (f *fakeTokens) mint(u model.User, rights model.Capabilities, d model.TokenDuration, app string) (model.AccessToken, error) {
	n, err := d.Days()
	if err != nil {
		return model.AccessToken{}, err
	}
	f.seq++
	now := time.Now().UTC()
	t := model.AccessToken{
		ID: uuid.Must(uuid.NewV4()), UserID: u.ID, AppName: app, Value: fmt.Sprintf("tok-%d", f.seq),
		CreatedAt: now, ExpiresAt: now.AddDate(0, 0, n), LastUsedAt: now, Rights: rights,
	}
	f.byValue[t.Value] = t
	return t, nil
}

func (f *fakeTokens) Issue(_ context.Context, req service.IssueRequest) (model.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued = append(f.issued, req)
	for _, u := range f.users {
		if u.Firstname == req.Firstname && u.Lastname == req.Lastname && req.Password == f.password {
			return f.mint(u, req.Rights, req.Duration, req.AppName)
		}
	}
	return model.AccessToken{}, errs.ErrUnauthenticated
}

func (f *fakeTokens) IssueForUser(_ context.Context, u model.User, rights model.Capabilities, d model.TokenDuration, app string) (model.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mint(u, rights, d, app)
}

func (f *fakeTokens) Validate(_ context.Context, value string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byValue[value]
	if !ok {
		return model.User{}, errs.ErrNotFound
	}
	u, ok := f.users[t.UserID]
	if !ok {
		return model.User{}, errs.ErrNotFound
	}
	return u, nil
}

func (f *fakeTokens) Touch(_ context.Context, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byValue[value]
	return ok, nil
}

func (f *fakeTokens) Rights(_ context.Context, value string) (model.Capabilities, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byValue[value]
	if !ok {
		return model.Capabilities{}, false, nil
	}
	return t.Rights, true, nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID uuid.UUID) ([]model.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.AccessToken{}
	for v, t := range f.byValue {
		if t.UserID == userID {
			out = append(out, t)
			delete(f.byValue, v)
		}
	}
	return out, nil
}

func (f *fakeTokens) ListForUser(_ context.Context, userID uuid.UUID) ([]model.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.AccessToken{}
	for _, t := range f.byValue {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}

type fakeAccounts struct {
	tokens *fakeTokens
}

var _ AccountService = (*fakeAccounts)(nil)

func (f *fakeAccounts) Register(ctx context.Context, req service.RegisterRequest) (model.User, model.AccessToken, error) {
	f.tokens.mu.Lock()
	for _, u := range f.tokens.users {
		if u.Firstname == req.Firstname && u.Lastname == req.Lastname {
			f.tokens.mu.Unlock()
			return model.User{}, model.AccessToken{}, errs.ErrAlreadyExists
		}
	}
	u := model.User{ID: uuid.Must(uuid.NewV4()), Firstname: req.Firstname, Lastname: req.Lastname, Email: req.Email}
	f.tokens.users[u.ID] = u
	f.tokens.mu.Unlock()

	tok, err := f.tokens.IssueForUser(ctx, u, model.CapabilitiesOf(model.AllCapabilities()...), service.RegistrationToken, req.AppName)
	return u, tok, err
}

func (f *fakeAccounts) Profile(_ context.Context, u model.User) (service.Profile, error) {
	return service.Profile{User: u, Devices: []string{"FreeStyle LibreLink"}}, nil
}

func (f *fakeAccounts) Delete(ctx context.Context, u model.User) (service.DeletedAccount, error) {
	ts, _ := f.tokens.RevokeAllForUser(ctx, u.ID)
	f.tokens.mu.Lock()
	delete(f.tokens.users, u.ID)
	f.tokens.mu.Unlock()
	return service.DeletedAccount{User: u, Tokens: ts, Goals: []model.Goal{}}, nil
}

type fakeGoals struct {
	mu    sync.Mutex
	goals map[string]model.Goal // userID/title
}

var _ GoalService = (*fakeGoals)(nil)

func key(id uuid.UUID, title string) string { return id.String() + "/" + title }

func (f *fakeGoals) List(_ context.Context, userID uuid.UUID) ([]model.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Goal{}
	for _, g := range f.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (f *fakeGoals) Create(_ context.Context, userID uuid.UUID, g model.Goal) (model.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.goals[key(userID, g.Title)]; ok {
		return model.Goal{}, errs.ErrAlreadyExists
	}
	if g.Status == "" {
		g.Status = model.GoalNotStarted
	}
	g.ID, g.UserID = uuid.Must(uuid.NewV4()), userID
	f.goals[key(userID, g.Title)] = g
	return g, nil
}

func (f *fakeGoals) Update(_ context.Context, userID uuid.UUID, title string, field model.GoalField, value string) (model.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[key(userID, title)]
	if !ok {
		return model.Goal{}, errs.ErrNotFound
	}
	if field != model.GoalFieldStatus {
		return model.Goal{}, errs.ErrInvalidArgument
	}
	st, err := model.ParseGoalStatus(value)
	if err != nil {
		return model.Goal{}, err
	}
	g.Status = st
	f.goals[key(userID, title)] = g
	return g, nil
}

func (f *fakeGoals) Delete(_ context.Context, userID uuid.UUID, title string) (model.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[key(userID, title)]
	if !ok {
		return model.Goal{}, errs.ErrNotFound
	}
	delete(f.goals, key(userID, title))
	return g, nil
}

/************ harness ************/

const export = `Glucose data,Generated on,02-04-2023 10:12,Generated by,Ada Lovelace
Device,Serial Number,Device Timestamp,Record Type,Historic Glucose mg/dL,Scan Glucose mg/dL
FreeStyle LibreLink,ABC-123,01-04-2023 08:00,0,98,
FreeStyle LibreLink,ABC-123,01-04-2023 09:15,0,112,
FreeStyle LibreLink,ABC-123,01-04-2023 08:00,0,101,
FreeStyle LibreLink,ABC-123,02-04-2023 07:30,0,140,
`

type harness struct {
	cc     *grpc.ClientConn
	tokens *fakeTokens
	goals  *fakeGoals
	src    *ingest.DirSource
}

const bufSize = 1 << 20

func startBufGRPC(t *testing.T) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)

	src, err := ingest.NewDirSource(t.TempDir())
	if err != nil {
		t.Fatalf("dir source: %v", err)
	}
	if err := src.Put(context.Background(), "ada_lovelace", []byte(export)); err != nil {
		t.Fatalf("seed export: %v", err)
	}
	loader := ingest.NewLoader(src, time.UTC)
	insights := service.NewInsights(cache.New(loader, cache.WithLogger(log)), loader)

	tokens := newFakeTokens()
	goals := &fakeGoals{goals: map[string]model.Goal{}}
	authz := service.NewAuthorizer(tokens, log)
	srv := New(tokens, &fakeAccounts{tokens: tokens}, goals, insights, authz, WithLogger(log))

	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log), AuthUnary(authz)))
	Register(gs, srv)
	healthpb.RegisterHealthServer(gs, health.NewServer())
	go func() { _ = gs.Serve(lis) }()

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() })
	return &harness{cc: cc, tokens: tokens, goals: goals, src: src}
}

func (h *harness) call(t *testing.T, token, method string, fields map[string]any) (map[string]any, error) {
	t.Helper()
	req, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("request %s: %v", method, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}
	resp := &structpb.Struct{}
	if err := h.cc.Invoke(ctx, FullMethod(method), req, resp); err != nil {
		return nil, err
	}
	return resp.AsMap(), nil
}
