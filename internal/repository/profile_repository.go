package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/castscheduler/internal/database"
	"github.com/iliyamo/castscheduler/internal/model"
)

type ProfileRepo struct{ db database.DBTX }

func NewProfileRepo(db database.DBTX) *ProfileRepo { return &ProfileRepo{db: db} }

// GetByUserID returns the profile owned by userID or ErrNotFound.
func (r *ProfileRepo) GetByUserID(ctx context.Context, userID uint64) (model.UserProfile, error) {
	var (
		p   model.UserProfile
		img sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id,user_id,display_name,farcaster_id,farcaster_username,profile_img_url,timezone,created_at,updated_at
		 FROM user_profiles WHERE user_id=? LIMIT 1`,
		userID).Scan(&p.ID, &p.UserID, &p.DisplayName, &p.FarcasterID, &p.FarcasterUsername, &img, &p.Timezone, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.UserProfile{}, translate(err)
	}
	p.ProfileImgURL = nullString(img)
	return p, nil
}

// Save inserts the profile or overwrites every editable column.  The unique
// key on user_id keeps it one row per user.
func (r *ProfileRepo) Save(ctx context.Context, p model.UserProfile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id,display_name,farcaster_id,farcaster_username,profile_img_url,timezone)
		 VALUES (?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE display_name=VALUES(display_name), farcaster_id=VALUES(farcaster_id),
		   farcaster_username=VALUES(farcaster_username), profile_img_url=VALUES(profile_img_url), timezone=VALUES(timezone)`,
		p.UserID, p.DisplayName, p.FarcasterID, p.FarcasterUsername, stringOrNil(p.ProfileImgURL), p.Timezone)
	return translate(err)
}

// SyncIdentity is Save without touching an existing timezone.
func (r *ProfileRepo) SyncIdentity(ctx context.Context, p model.UserProfile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id,display_name,farcaster_id,farcaster_username,profile_img_url,timezone)
		 VALUES (?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE display_name=VALUES(display_name), farcaster_id=VALUES(farcaster_id),
		   farcaster_username=VALUES(farcaster_username), profile_img_url=VALUES(profile_img_url)`,
		p.UserID, p.DisplayName, p.FarcasterID, p.FarcasterUsername, stringOrNil(p.ProfileImgURL), p.Timezone)
	return translate(err)
}
