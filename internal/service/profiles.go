package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/castscheduler/internal/database"
	"github.com/iliyamo/castscheduler/internal/model"
	"github.com/iliyamo/castscheduler/internal/repository"
	"github.com/iliyamo/castscheduler/internal/timezones"
)

// ProfileInput is the user editable profile.
type ProfileInput struct {
	DisplayName       string
	FarcasterID       string
	FarcasterUsername string
	ProfileImgURL     *string
	Timezone          string
}

// ProfileService reads and saves the caller's single profile.
type ProfileService struct {
	db    database.DBTX
	repos repository.Manager
}

func NewProfileService(db database.DBTX, repos repository.Manager) *ProfileService {
	return &ProfileService{db: db, repos: repos}
}

// Get returns the caller's profile or ErrNotFound.
func (s *ProfileService) Get(ctx context.Context, callerID uint64) (model.UserProfile, error) {
	if callerID == 0 {
		return model.UserProfile{}, ErrNotAuthenticated
	}
	p, err := s.repos.Profiles(s.db).GetByUserID(ctx, callerID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.UserProfile{}, ErrNotFound
	}
	return p, err
}

// Save creates the caller's profile or updates it in place.
func (s *ProfileService) Save(ctx context.Context, callerID uint64, in ProfileInput) (model.UserProfile, error) {
	if callerID == 0 {
		return model.UserProfile{}, ErrNotAuthenticated
	}
	p := model.UserProfile{
		UserID:            callerID,
		DisplayName:       strings.TrimSpace(in.DisplayName),
		FarcasterID:       strings.TrimSpace(in.FarcasterID),
		FarcasterUsername: strings.TrimSpace(in.FarcasterUsername),
		Timezone:          strings.TrimSpace(in.Timezone),
	}
	if in.ProfileImgURL != nil && strings.TrimSpace(*in.ProfileImgURL) != "" {
		u := strings.TrimSpace(*in.ProfileImgURL)
		p.ProfileImgURL = &u
	}
	if p.DisplayName == "" || p.FarcasterID == "" || p.FarcasterUsername == "" {
		return model.UserProfile{}, invalid(errors.New("display name, farcaster id and username are required"))
	}
	if !timezones.Valid(p.Timezone) {
		return model.UserProfile{}, invalid(fmt.Errorf("unknown timezone %q", p.Timezone))
	}

	profiles := s.repos.Profiles(s.db)
	if err := profiles.Save(ctx, p); err != nil {
		return model.UserProfile{}, err
	}
	return profiles.GetByUserID(ctx, callerID)
}

// HasSigner reports whether the caller has linked a Neynar signer.
func (s *ProfileService) HasSigner(ctx context.Context, callerID uint64) (bool, error) {
	if callerID == 0 {
		return false, ErrNotAuthenticated
	}
	acc, err := s.repos.Accounts(s.db).GetByUserProvider(ctx, callerID, model.ProviderNeynar)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return acc.Secret != "", nil
}
