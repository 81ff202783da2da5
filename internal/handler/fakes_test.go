package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/castscheduler/internal/middleware"
	"github.com/iliyamo/castscheduler/internal/model"
	"github.com/iliyamo/castscheduler/internal/repository"
	"github.com/iliyamo/castscheduler/internal/service"
)

// as authenticates every request as uid.
func as(uid uint64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			middleware.SetUserID(c, uid)
			return next(c)
		}
	}
}

func call(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type fakeCasts struct {
	mu      sync.Mutex
	casts   map[uint64]model.ScheduledCast
	lastIn  service.CastInput
	lastF   service.ListFilter
	err     error
	deleted []uint64
}

func newFakeCasts() *fakeCasts { return &fakeCasts{casts: map[uint64]model.ScheduledCast{}} }

func (f *fakeCasts) Create(_ context.Context, uid uint64, in service.CastInput) (model.ScheduledCast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastIn = in
	if f.err != nil {
		return model.ScheduledCast{}, f.err
	}
	c := model.ScheduledCast{
		ID: uint64(len(f.casts) + 1), UserID: uid, Content: in.Content,
		ScheduledTime: in.ScheduledTime, Timezone: "Asia/Tokyo", Status: model.CastPending,
	}
	f.casts[c.ID] = c
	return c, nil
}

func (f *fakeCasts) Edit(_ context.Context, uid, id uint64, in service.CastInput) (model.ScheduledCast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastIn = in
	if f.err != nil {
		return model.ScheduledCast{}, f.err
	}
	c, ok := f.casts[id]
	if !ok || c.UserID != uid {
		return model.ScheduledCast{}, service.ErrNotFound
	}
	c.Content = in.Content
	f.casts[id] = c
	return c, nil
}

func (f *fakeCasts) Delete(_ context.Context, uid, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	c, ok := f.casts[id]
	if !ok || c.UserID != uid {
		return service.ErrNotFound
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeCasts) Get(_ context.Context, uid, id uint64) (model.ScheduledCast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.casts[id]
	if !ok || c.UserID != uid {
		return model.ScheduledCast{}, service.ErrNotFound
	}
	return c, nil
}

func (f *fakeCasts) List(_ context.Context, uid uint64, lf service.ListFilter) ([]model.ScheduledCast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastF = lf
	if f.err != nil {
		return nil, f.err
	}
	var out []model.ScheduledCast
	for _, c := range f.casts {
		if c.UserID == uid {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeSignIn struct {
	uid   uint64
	err   error
	claim service.Claim
}

func (f *fakeSignIn) SignIn(_ context.Context, c service.Claim) (uint64, error) {
	f.claim = c
	return f.uid, f.err
}

type fakeUsers struct{ users map[uint64]model.User }

func (f *fakeUsers) Create(context.Context, string, *string) (uint64, error) { return 0, nil }
func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}
func (f *fakeUsers) UpdateDisplay(context.Context, uint64, string, *string) error { return nil }

type storedToken struct {
	uid     uint64
	exp     time.Time
	revoked bool
}

type fakeTokens struct {
	mu     sync.Mutex
	tokens map[string]*storedToken
}

func newFakeTokens() *fakeTokens { return &fakeTokens{tokens: map[string]*storedToken{}} }

func (f *fakeTokens) StoreRefresh(_ context.Context, uid uint64, hash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[hash] = &storedToken{uid: uid, exp: exp}
	return nil
}

func (f *fakeTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[hash]
	if !ok || t.revoked || time.Now().After(t.exp) {
		return 0, repository.ErrNotFound
	}
	return t.uid, nil
}

func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tokens[hash]; ok {
		t.revoked = true
	}
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, uid uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.uid == uid {
			t.revoked = true
		}
	}
	return nil
}

func (f *fakeTokens) active(uid uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tokens {
		if t.uid == uid && !t.revoked {
			n++
		}
	}
	return n
}

type fakeProfiles struct {
	profile *model.UserProfile
	signer  bool
	saved   service.ProfileInput
}

func (f *fakeProfiles) Get(context.Context, uint64) (model.UserProfile, error) {
	if f.profile == nil {
		return model.UserProfile{}, service.ErrNotFound
	}
	return *f.profile, nil
}

func (f *fakeProfiles) Save(_ context.Context, uid uint64, in service.ProfileInput) (model.UserProfile, error) {
	if strings.TrimSpace(in.DisplayName) == "" {
		return model.UserProfile{}, service.ErrInvalidInput
	}
	f.saved = in
	p := model.UserProfile{
		UserID: uid, DisplayName: in.DisplayName, FarcasterID: in.FarcasterID,
		FarcasterUsername: in.FarcasterUsername, ProfileImgURL: in.ProfileImgURL, Timezone: in.Timezone,
	}
	f.profile = &p
	return p, nil
}

func (f *fakeProfiles) HasSigner(context.Context, uint64) (bool, error) { return f.signer, nil }

type fakeUploads struct {
	contentType string
	calls       int
}

func (f *fakeUploads) UploadURL(_ context.Context, ct string) (string, string, error) {
	f.calls++
	f.contentType = ct
	return "casts/2026/10/abc", "https://s3.example/casts/2026/10/abc?sig=1", nil
}
