package repository

import (
	"context"
	"fmt"

	"github.com/iliyamo/castscheduler/internal/database"
	"github.com/iliyamo/castscheduler/internal/model"
	"github.com/iliyamo/castscheduler/internal/utils"
)

// AccountRepo stores linked accounts.  The provider secret is sealed with
// the configured key on the way in and opened on the way out.
type AccountRepo struct {
	db     database.DBTX
	sealer *utils.Sealer
}

func NewAccountRepo(db database.DBTX, sealer *utils.Sealer) *AccountRepo {
	return &AccountRepo{db: db, sealer: sealer}
}

const accountColumns = "id,user_id,provider,provider_account_id,secret_sealed,created_at,updated_at"

func (r *AccountRepo) scanOne(ctx context.Context, query string, args ...any) (model.LinkedAccount, error) {
	var (
		a      model.LinkedAccount
		sealed []byte
	)
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&a.ID, &a.UserID, &a.Provider, &a.ProviderAccountID, &sealed, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.LinkedAccount{}, translate(err)
	}
	if len(sealed) > 0 {
		plain, err := r.sealer.Open(sealed)
		if err != nil {
			return model.LinkedAccount{}, fmt.Errorf("open secret for account %d: %w", a.ID, err)
		}
		a.Secret = string(plain)
	}
	return a, nil
}

// FindByProviderAccount looks an account up by the provider's own id (the fid).
func (r *AccountRepo) FindByProviderAccount(ctx context.Context, provider, providerAccountID string) (model.LinkedAccount, error) {
	return r.scanOne(ctx,
		"SELECT "+accountColumns+" FROM linked_accounts WHERE provider=? AND provider_account_id=? LIMIT 1",
		provider, providerAccountID)
}

// GetByUserProvider returns the user's account with provider.
func (r *AccountRepo) GetByUserProvider(ctx context.Context, userID uint64, provider string) (model.LinkedAccount, error) {
	return r.scanOne(ctx,
		"SELECT "+accountColumns+" FROM linked_accounts WHERE user_id=? AND provider=? LIMIT 1",
		userID, provider)
}

func (r *AccountRepo) seal(secret string) ([]byte, error) {
	if secret == "" {
		return nil, nil
	}
	return r.sealer.Seal([]byte(secret))
}

// Create inserts an account and returns its ID.
func (r *AccountRepo) Create(ctx context.Context, a model.LinkedAccount) (uint64, error) {
	sealed, err := r.seal(a.Secret)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO linked_accounts (user_id,provider,provider_account_id,secret_sealed) VALUES (?,?,?,?)",
		a.UserID, a.Provider, a.ProviderAccountID, sealed)
	if err != nil {
		return 0, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// UpdateSecret replaces the stored credential.
func (r *AccountRepo) UpdateSecret(ctx context.Context, id uint64, secret string) error {
	sealed, err := r.seal(secret)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, "UPDATE linked_accounts SET secret_sealed=? WHERE id=?", sealed, id)
	return translate(err)
}
