package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/castscheduler/internal/database"
	"github.com/iliyamo/castscheduler/internal/model"
	"github.com/iliyamo/castscheduler/internal/neynar"
	"github.com/iliyamo/castscheduler/internal/repository"
)

// memDB is an in-memory stand-in for every repository.  Stores ignore the
// DBTX they are bound to.
type memDB struct {
	mu       sync.Mutex
	nextID   uint64
	users    map[uint64]model.User
	profiles map[uint64]model.UserProfile
	accounts map[uint64]model.LinkedAccount
	casts    map[uint64]model.ScheduledCast
	writes   int
	pages    int
	failOn   string
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[uint64]model.User{},
		profiles: map[uint64]model.UserProfile{},
		accounts: map[uint64]model.LinkedAccount{},
		casts:    map[uint64]model.ScheduledCast{},
	}
}

func (m *memDB) id() uint64 { m.nextID++; return m.nextID }

func (m *memDB) check(op string) error {
	if m.failOn == op {
		return fmt.Errorf("%s: db down", op)
	}
	return nil
}

func (m *memDB) Users(database.DBTX) repository.UserStore       { return memUsers{m} }
func (m *memDB) Profiles(database.DBTX) repository.ProfileStore { return memProfiles{m} }
func (m *memDB) Accounts(database.DBTX) repository.AccountStore { return memAccounts{m} }
func (m *memDB) Casts(database.DBTX) repository.CastStore       { return memCasts{m} }
func (m *memDB) Tokens(database.DBTX) repository.TokenStore     { return nil }

// addProfile gives userID a profile in zone tz.
func (m *memDB) addProfile(userID uint64, tz string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[userID] = model.UserProfile{ID: userID, UserID: userID, DisplayName: "alice",
		FarcasterID: "1234", FarcasterUsername: "alice", Timezone: tz}
}

func (m *memDB) cast(id uint64) model.ScheduledCast {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.casts[id]
}

type memUsers struct{ m *memDB }

func (s memUsers) Create(_ context.Context, name string, image *string) (uint64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.check("users.create"); err != nil {
		return 0, err
	}
	id := s.m.id()
	s.m.users[id] = model.User{ID: id, Name: name, Image: image}
	return id, nil
}

func (s memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s memUsers) UpdateDisplay(_ context.Context, id uint64, name string, image *string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u := s.m.users[id]
	u.ID, u.Name, u.Image = id, name, image
	s.m.users[id] = u
	return nil
}

type memProfiles struct{ m *memDB }

func (s memProfiles) GetByUserID(_ context.Context, userID uint64) (model.UserProfile, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.profiles[userID]
	if !ok {
		return model.UserProfile{}, repository.ErrNotFound
	}
	return p, nil
}

func (s memProfiles) Save(_ context.Context, p model.UserProfile) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if old, ok := s.m.profiles[p.UserID]; ok {
		p.ID = old.ID
	} else {
		p.ID = s.m.id()
	}
	s.m.profiles[p.UserID] = p
	return nil
}

func (s memProfiles) SyncIdentity(_ context.Context, p model.UserProfile) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if old, ok := s.m.profiles[p.UserID]; ok {
		p.ID, p.Timezone = old.ID, old.Timezone
	} else {
		p.ID = s.m.id()
	}
	s.m.profiles[p.UserID] = p
	return nil
}

type memAccounts struct{ m *memDB }

func (s memAccounts) find(match func(model.LinkedAccount) bool) (model.LinkedAccount, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.check("accounts.get"); err != nil {
		return model.LinkedAccount{}, err
	}
	for _, a := range s.m.accounts {
		if match(a) {
			return a, nil
		}
	}
	return model.LinkedAccount{}, repository.ErrNotFound
}

func (s memAccounts) FindByProviderAccount(_ context.Context, provider, accountID string) (model.LinkedAccount, error) {
	return s.find(func(a model.LinkedAccount) bool {
		return a.Provider == provider && a.ProviderAccountID == accountID
	})
}

func (s memAccounts) GetByUserProvider(_ context.Context, userID uint64, provider string) (model.LinkedAccount, error) {
	return s.find(func(a model.LinkedAccount) bool {
		return a.UserID == userID && a.Provider == provider
	})
}

func (s memAccounts) Create(_ context.Context, a model.LinkedAccount) (uint64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, other := range s.m.accounts {
		if other.UserID == a.UserID && other.Provider == a.Provider {
			return 0, repository.ErrConflict
		}
	}
	a.ID = s.m.id()
	s.m.accounts[a.ID] = a
	return a.ID, nil
}

func (s memAccounts) UpdateSecret(_ context.Context, id uint64, secret string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a := s.m.accounts[id]
	a.Secret = secret
	s.m.accounts[id] = a
	return nil
}

type memCasts struct{ m *memDB }

func (s memCasts) Create(_ context.Context, c model.ScheduledCast) (uint64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.check("casts.create"); err != nil {
		return 0, err
	}
	s.m.writes++
	c.ID = s.m.id()
	c.Status = model.CastPending
	c.JobID = nil
	s.m.casts[c.ID] = c
	return c.ID, nil
}

func (s memCasts) GetByID(_ context.Context, id uint64) (model.ScheduledCast, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.check("casts.get"); err != nil {
		return model.ScheduledCast{}, err
	}
	c, ok := s.m.casts[id]
	if !ok {
		return model.ScheduledCast{}, repository.ErrNotFound
	}
	return c, nil
}

func (s memCasts) GetOwned(ctx context.Context, id, userID uint64) (model.ScheduledCast, error) {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return c, err
	}
	if c.UserID != userID {
		return model.ScheduledCast{}, repository.ErrNotFound
	}
	return c, nil
}

func (s memCasts) ListByUser(_ context.Context, userID uint64) ([]model.ScheduledCast, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []model.ScheduledCast
	for _, c := range s.m.casts {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.After(out[j].ScheduledTime) })
	return out, nil
}

func (s memCasts) ListRepairable(_ context.Context, after repository.CastCursor, limit int) ([]model.ScheduledCast, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.check("casts.repairable"); err != nil {
		return nil, err
	}
	s.m.pages++
	var out []model.ScheduledCast
	for _, c := range s.m.casts {
		if c.Status != model.CastPending || c.Publishing() {
			continue
		}
		if after.ID != 0 && (c.ScheduledTime.Before(after.ScheduledTime) ||
			c.ScheduledTime.Equal(after.ScheduledTime) && c.ID <= after.ID) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ScheduledTime.Before(out[j].ScheduledTime)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// transition applies a change to a pending cast when it passes when.  op
// names the call for failOn.
func (s memCasts) transition(op string, id uint64, when func(model.ScheduledCast) bool, apply func(*model.ScheduledCast)) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.check(op); err != nil {
		return false, err
	}
	c, ok := s.m.casts[id]
	if !ok || c.Status != model.CastPending || !when(c) {
		return false, nil
	}
	s.m.writes++
	apply(&c)
	s.m.casts[id] = c
	return true, nil
}

func always(model.ScheduledCast) bool { return true }

func notAttempted(c model.ScheduledCast) bool { return !c.Publishing() }

func (s memCasts) UpdatePending(_ context.Context, next model.ScheduledCast) (bool, error) {
	return s.transition("casts.update", next.ID, func(c model.ScheduledCast) bool { return c.UserID == next.UserID && notAttempted(c) },
		func(c *model.ScheduledCast) {
			c.Content, c.ImageStorageID = next.Content, next.ImageStorageID
			c.ScheduledTime, c.Timezone, c.JobID = next.ScheduledTime, next.Timezone, next.JobID
		})
}

func (s memCasts) SetJob(_ context.Context, id uint64, jobID string) error {
	_, err := s.transition("casts.setJob", id, notAttempted, func(c *model.ScheduledCast) { c.JobID = &jobID })
	return err
}

func (s memCasts) Cancel(_ context.Context, id, userID uint64) (bool, error) {
	return s.transition("casts.cancel", id, func(c model.ScheduledCast) bool { return c.UserID == userID && notAttempted(c) },
		func(c *model.ScheduledCast) { c.Status, c.JobID = model.CastCancelled, nil })
}

func (s memCasts) BeginAttempt(_ context.Context, id uint64, jobID string, at time.Time) (bool, error) {
	return s.transition("casts.begin", id, func(c model.ScheduledCast) bool {
		return notAttempted(c) && (jobID == "" || c.JobID != nil && *c.JobID == jobID)
	}, func(c *model.ScheduledCast) { c.AttemptedAt = &at })
}

func (s memCasts) MarkPosted(_ context.Context, id uint64) (bool, error) {
	return s.transition("casts.markPosted", id, always, func(c *model.ScheduledCast) { c.Status, c.JobID = model.CastPosted, nil })
}

func (s memCasts) MarkFailed(_ context.Context, id uint64, msg string) (bool, error) {
	return s.transition("casts.markFailed", id, always, func(c *model.ScheduledCast) {
		c.Status, c.JobID, c.ErrorMessage = model.CastFailed, nil, &msg
	})
}

// fakeTx runs fn directly; the in-memory stores have no rollback.
type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context, tx database.DBTX) error) error {
	return fn(ctx, nil)
}

type scheduledJob struct {
	castID uint64
	delay  time.Duration
}

type fakeJobs struct {
	mu          sync.Mutex
	seq         int
	live        map[string]scheduledJob
	cancelled   []string
	scheduleErr error
	cancelErr   error
}

func newFakeJobs() *fakeJobs { return &fakeJobs{live: map[string]scheduledJob{}} }

func (f *fakeJobs) Schedule(_ context.Context, delay time.Duration, castID uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduleErr != nil {
		return "", f.scheduleErr
	}
	f.seq++
	id := fmt.Sprintf("job-%d", f.seq)
	f.live[id] = scheduledJob{castID: castID, delay: delay}
	return id, nil
}

func (f *fakeJobs) Cancel(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, jobID)
	delete(f.live, jobID)
	return f.cancelErr
}

func (f *fakeJobs) Exists(_ context.Context, jobID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.live[jobID]
	return ok, nil
}

// liveFor returns the live job ids targeting castID.
func (f *fakeJobs) liveFor(castID uint64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, j := range f.live {
		if j.castID == castID {
			ids = append(ids, id)
		}
	}
	return ids
}

type fakeImages struct {
	url string
	err error
}

func (f fakeImages) PublicURL(context.Context, string) (string, error) { return f.url, f.err }

type fakePoster struct {
	calls []neynar.CastRequest
	err   error
}

func (f *fakePoster) PublishCast(_ context.Context, req neynar.CastRequest) (neynar.CastResult, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return neynar.CastResult{}, f.err
	}
	var res neynar.CastResult
	res.Success = true
	res.Cast.Hash = "0xabc"
	return res, nil
}

type fakeVerifier struct {
	signer neynar.Signer
	err    error
	calls  int
}

func (f *fakeVerifier) LookupSigner(context.Context, string) (neynar.Signer, error) {
	f.calls++
	return f.signer, f.err
}

var errBoom = errors.New("boom")
