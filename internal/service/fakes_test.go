package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/glucose"
	"github.com/and161185/glucokeeper/internal/limiter"
	"github.com/and161185/glucokeeper/internal/model"
	"github.com/and161185/glucokeeper/internal/repository"
)

/************ users ************/

type fakeUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.User

	createErr error
	getErr    error
	byIDErr   error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[uuid.UUID]*model.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, x := range f.byID {
		if x.Firstname == u.Firstname && x.Lastname == u.Lastname {
			return errs.ErrAlreadyExists
		}
	}
	c := *u
	f.byID[u.ID] = &c
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) GetByNames(_ context.Context, first, last string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Firstname == first && u.Lastname == last {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) GetByEmailOrNames(_ context.Context, email, first, last string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if (email != "" && u.Email == email) || (u.Firstname == first && u.Lastname == last) {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return errs.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

/************ tokens ************/

type fakeTokens struct {
	mu      sync.Mutex
	byValue map[string]model.AccessToken

	createConflicts int // number of Create calls answering ErrAlreadyExists
	createCalls     int
	touches         []string
}

var _ repository.TokenRepository = (*fakeTokens)(nil)

func newFakeTokens() *fakeTokens { return &fakeTokens{byValue: map[string]model.AccessToken{}} }

func (f *fakeTokens) GetByValue(_ context.Context, value string) (*model.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byValue[value]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &t, nil
}

func (f *fakeTokens) ListByUser(_ context.Context, userID uuid.UUID) ([]model.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.AccessToken{}
	for _, t := range f.byValue {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeTokens) Create(_ context.Context, t *model.AccessToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createConflicts > 0 {
		f.createConflicts--
		return errs.ErrAlreadyExists
	}
	if _, ok := f.byValue[t.Value]; ok {
		return errs.ErrAlreadyExists
	}
	f.byValue[t.Value] = *t
	return nil
}

func (f *fakeTokens) TouchLastUsed(_ context.Context, value string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches = append(f.touches, value)
	t, ok := f.byValue[value]
	if !ok {
		return false, nil
	}
	t.LastUsedAt = at
	f.byValue[value] = t
	return true, nil
}

func (f *fakeTokens) DeleteByUser(_ context.Context, userID uuid.UUID) ([]model.AccessToken, error) {
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

/************ signatures ************/

type fakeSigRepo struct {
	sigs []model.Signature
}

var _ repository.SignatureRepository = (*fakeSigRepo)(nil)

func (f *fakeSigRepo) Latest(context.Context) (*model.Signature, error) {
	if len(f.sigs) == 0 {
		return nil, errs.ErrNotFound
	}
	s := f.sigs[len(f.sigs)-1]
	return &s, nil
}

func (f *fakeSigRepo) Create(_ context.Context, s *model.Signature) error {
	f.sigs = append(f.sigs, *s)
	return nil
}

type staticSig struct {
	sig *model.Signature
	err error
}

func (s staticSig) Latest(context.Context) (*model.Signature, error) { return s.sig, s.err }

func testSignature() staticSig {
	return staticSig{sig: &model.Signature{ID: uuid.Must(uuid.NewV4()), Secret: []byte("0123456789abcdef0123456789abcdef")}}
}

/************ goals ************/

type fakeGoals struct {
	mu    sync.Mutex
	goals map[uuid.UUID]model.Goal
}

var _ repository.GoalRepository = (*fakeGoals)(nil)

func newFakeGoals() *fakeGoals { return &fakeGoals{goals: map[uuid.UUID]model.Goal{}} }

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

func (f *fakeGoals) find(userID uuid.UUID, title string) (model.Goal, bool) {
	for _, g := range f.goals {
		if g.UserID == userID && g.Title == title {
			return g, true
		}
	}
	return model.Goal{}, false
}

func (f *fakeGoals) Get(_ context.Context, userID uuid.UUID, title string) (*model.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.find(userID, title)
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &g, nil
}

func (f *fakeGoals) Create(_ context.Context, g *model.Goal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.find(g.UserID, g.Title); ok {
		return errs.ErrAlreadyExists
	}
	f.goals[g.ID] = *g
	return nil
}

func (f *fakeGoals) Update(_ context.Context, g *model.Goal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.goals[g.ID]; !ok {
		return errs.ErrNotFound
	}
	if other, ok := f.find(g.UserID, g.Title); ok && other.ID != g.ID {
		return errs.ErrAlreadyExists
	}
	f.goals[g.ID] = *g
	return nil
}

func (f *fakeGoals) Delete(_ context.Context, userID uuid.UUID, title string) (*model.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.find(userID, title)
	if !ok {
		return nil, errs.ErrNotFound
	}
	delete(f.goals, g.ID)
	return &g, nil
}

func (f *fakeGoals) DeleteAll(_ context.Context, userID uuid.UUID) ([]model.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Goal{}
	for id, g := range f.goals {
		if g.UserID == userID {
			out = append(out, g)
			delete(f.goals, id)
		}
	}
	return out, nil
}

/************ limiter ************/

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	successErr  error
	failureErr  error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}

func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}

func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failureErr
}

/************ cache / raw ************/

type fakeCache struct {
	series      map[string]glucose.Series
	invalidated []string
}

var _ SeriesCache = (*fakeCache)(nil)

func (c *fakeCache) Series(_ context.Context, username string) (glucose.Series, error) {
	s, ok := c.series[username]
	if !ok {
		return glucose.Series{}, errs.ErrNotFound
	}
	return s, nil
}

func (c *fakeCache) Stats(ctx context.Context, username string) (model.Stats, error) {
	s, err := c.Series(ctx, username)
	if err != nil {
		return model.Stats{}, err
	}
	if s.Len() == 0 {
		return model.Stats{}, errs.ErrEmptyInput
	}
	return model.Stats{Count: s.Len()}, nil
}

func (c *fakeCache) Invalidate(_ context.Context, username string) {
	c.invalidated = append(c.invalidated, username)
}

type fakeRaw struct {
	files    map[string][]byte
	storeErr error
}

var _ RawStore = (*fakeRaw)(nil)

func (r *fakeRaw) Raw(_ context.Context, username string) ([]byte, error) {
	b, ok := r.files[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return b, nil
}

func (r *fakeRaw) Store(_ context.Context, username string, data []byte) (int, error) {
	if r.storeErr != nil {
		return 0, r.storeErr
	}
	r.files[username] = data
	return 1, nil
}

func (r *fakeRaw) Usernames(context.Context) ([]string, error) {
	out := make([]string, 0, len(r.files))
	for k := range r.files {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}
