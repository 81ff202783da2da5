package repository

import (
	"context"
	"time"

	"github.com/iliyamo/castscheduler/internal/database"
	"github.com/iliyamo/castscheduler/internal/model"
	"github.com/iliyamo/castscheduler/internal/utils"
)

// UserStore persists the users table.
type UserStore interface {
	Create(ctx context.Context, name string, image *string) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdateDisplay(ctx context.Context, id uint64, name string, image *string) error
}

// ProfileStore persists user_profiles; at most one row per user.
type ProfileStore interface {
	GetByUserID(ctx context.Context, userID uint64) (model.UserProfile, error)
	// Save inserts or fully overwrites the caller's profile.
	Save(ctx context.Context, p model.UserProfile) error
	// SyncIdentity inserts the profile or refreshes its identity fields,
	// keeping the stored timezone when a row already exists.
	SyncIdentity(ctx context.Context, p model.UserProfile) error
}

// AccountStore persists linked_accounts.
type AccountStore interface {
	FindByProviderAccount(ctx context.Context, provider, providerAccountID string) (model.LinkedAccount, error)
	GetByUserProvider(ctx context.Context, userID uint64, provider string) (model.LinkedAccount, error)
	Create(ctx context.Context, a model.LinkedAccount) (uint64, error)
	UpdateSecret(ctx context.Context, id uint64, secret string) error
}

// CastStore persists scheduled_casts.  Methods returning a bool report
// whether a row changed; transitions out of pending only apply while the
// row is still pending.
type CastStore interface {
	Create(ctx context.Context, c model.ScheduledCast) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.ScheduledCast, error)
	GetOwned(ctx context.Context, id, userID uint64) (model.ScheduledCast, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.ScheduledCast, error)
	ListRepairable(ctx context.Context, after CastCursor, limit int) ([]model.ScheduledCast, error)
	UpdatePending(ctx context.Context, c model.ScheduledCast) (bool, error)
	SetJob(ctx context.Context, id uint64, jobID string) error
	Cancel(ctx context.Context, id, userID uint64) (bool, error)
	BeginAttempt(ctx context.Context, id uint64, jobID string, at time.Time) (bool, error)
	MarkPosted(ctx context.Context, id uint64) (bool, error)
	MarkFailed(ctx context.Context, id uint64, message string) (bool, error)
}

// CastCursor is a keyset position in (scheduled_time, id) order.
type CastCursor struct {
	ScheduledTime time.Time
	ID            uint64
}

// TokenStore persists refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// Manager hands out stores bound to a pool or transaction.
type Manager interface {
	Users(db database.DBTX) UserStore
	Profiles(db database.DBTX) ProfileStore
	Accounts(db database.DBTX) AccountStore
	Casts(db database.DBTX) CastStore
	Tokens(db database.DBTX) TokenStore
}

// MySQLManager is the production Manager.
type MySQLManager struct {
	sealer *utils.Sealer
}

func NewMySQLManager(sealer *utils.Sealer) *MySQLManager {
	return &MySQLManager{sealer: sealer}
}

func (m *MySQLManager) Users(db database.DBTX) UserStore       { return NewUserRepo(db) }
func (m *MySQLManager) Profiles(db database.DBTX) ProfileStore { return NewProfileRepo(db) }
func (m *MySQLManager) Accounts(db database.DBTX) AccountStore { return NewAccountRepo(db, m.sealer) }
func (m *MySQLManager) Casts(db database.DBTX) CastStore       { return NewCastRepo(db) }
func (m *MySQLManager) Tokens(db database.DBTX) TokenStore     { return NewTokenRepo(db) }
