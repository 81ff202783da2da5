package model

import "time"

// User is the local identity record.  Name and Image mirror the Farcaster
// display name and avatar and are refreshed on every sign-in.
type User struct {
	ID        uint64    // users.id
	Name      string    // users.name
	Image     *string   // users.image (nullable)
	CreatedAt time.Time // users.created_at
	UpdatedAt time.Time // users.updated_at
}

// UserProfile is the 1:1 social identity attached to a user.  A user must
// own a profile before scheduling casts.
type UserProfile struct {
	ID                uint64    // user_profiles.id
	UserID            uint64    // user_profiles.user_id (unique)
	DisplayName       string    // user_profiles.display_name
	FarcasterID       string    // user_profiles.farcaster_id
	FarcasterUsername string    // user_profiles.farcaster_username
	ProfileImgURL     *string   // user_profiles.profile_img_url (nullable)
	Timezone          string    // user_profiles.timezone (IANA name)
	CreatedAt         time.Time // user_profiles.created_at
	UpdatedAt         time.Time // user_profiles.updated_at
}

// ProviderNeynar names the only identity provider wired today.
const ProviderNeynar = "neynar"

// LinkedAccount binds a user to an external provider account.  Secret holds
// the provider issued signing credential (signer uuid) in plaintext; the
// repository seals it before it reaches the database.
type LinkedAccount struct {
	ID                uint64    // linked_accounts.id
	UserID            uint64    // linked_accounts.user_id
	Provider          string    // linked_accounts.provider
	ProviderAccountID string    // linked_accounts.provider_account_id (fid)
	Secret            string    // linked_accounts.secret_sealed, opened
	CreatedAt         time.Time // linked_accounts.created_at
	UpdatedAt         time.Time // linked_accounts.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored, only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
