package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/castscheduler/internal/database"
	"github.com/iliyamo/castscheduler/internal/logging"
	"github.com/iliyamo/castscheduler/internal/model"
	"github.com/iliyamo/castscheduler/internal/neynar"
	"github.com/iliyamo/castscheduler/internal/repository"
	"github.com/iliyamo/castscheduler/internal/timezones"
)

// defaultTimezone is used for new profiles when the client sent none.
const defaultTimezone = "UTC"

// Claim is what the Sign In With Neynar widget hands the client.
type Claim struct {
	FID         string
	SignerUUID  string
	Username    string
	DisplayName string
	PfpURL      string
	Timezone    string
}

// IdentityService turns a verified Neynar claim into a local user.
type IdentityService struct {
	tx       database.Transactor
	repos    repository.Manager
	verifier SignerVerifier
	log      logging.Logger
}

func NewIdentityService(tx database.Transactor, repos repository.Manager, verifier SignerVerifier, log logging.Logger) *IdentityService {
	return &IdentityService{tx: tx, repos: repos, verifier: verifier, log: log}
}

func (c Claim) normalized() Claim {
	c.FID = strings.TrimSpace(c.FID)
	c.SignerUUID = strings.TrimSpace(c.SignerUUID)
	c.Username = strings.TrimSpace(c.Username)
	c.DisplayName = strings.TrimSpace(c.DisplayName)
	c.PfpURL = strings.TrimSpace(c.PfpURL)
	c.Timezone = strings.TrimSpace(c.Timezone)
	if c.DisplayName == "" {
		c.DisplayName = c.Username
	}
	return c
}

// verify confirms with Neynar that the signer is approved for the fid.
func (s *IdentityService) verify(ctx context.Context, c Claim) error {
	signer, err := s.verifier.LookupSigner(ctx, c.SignerUUID)
	if err != nil {
		var apiErr *neynar.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("%w: signer lookup returned %d", ErrVerificationFailed, apiErr.Status)
		}
		return fmt.Errorf("verify signer: %w", err)
	}
	if strconv.FormatUint(signer.FID, 10) != c.FID {
		return fmt.Errorf("%w: fid mismatch", ErrVerificationFailed)
	}
	if signer.Status != neynar.SignerApproved {
		return fmt.Errorf("%w: signer not approved", ErrVerificationFailed)
	}
	return nil
}

// SignIn verifies the claim and creates or refreshes the user, linked
// account and profile.  It returns the local user id.
func (s *IdentityService) SignIn(ctx context.Context, claim Claim) (uint64, error) {
	c := claim.normalized()
	if c.FID == "" || c.SignerUUID == "" || c.Username == "" {
		return 0, ErrMissingFields
	}
	if err := s.verify(ctx, c); err != nil {
		s.log.Warn("neynar verification failed", "fid", c.FID, "err", err)
		return 0, err
	}

	var image *string
	if c.PfpURL != "" {
		image = &c.PfpURL
	}
	profile := model.UserProfile{
		DisplayName:       c.DisplayName,
		FarcasterID:       c.FID,
		FarcasterUsername: c.Username,
		ProfileImgURL:     image,
		Timezone:          defaultTimezone,
	}
	if timezones.Valid(c.Timezone) {
		profile.Timezone = c.Timezone
	}

	var userID uint64
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx database.DBTX) error {
		accounts := s.repos.Accounts(tx)
		existing, err := accounts.FindByProviderAccount(ctx, model.ProviderNeynar, c.FID)
		switch {
		case err == nil:
			userID = existing.UserID
			if err := s.repos.Users(tx).UpdateDisplay(ctx, userID, c.DisplayName, image); err != nil {
				return err
			}
			if err := accounts.UpdateSecret(ctx, existing.ID, c.SignerUUID); err != nil {
				return err
			}
		case errors.Is(err, repository.ErrNotFound):
			userID, err = s.repos.Users(tx).Create(ctx, c.DisplayName, image)
			if err != nil {
				return err
			}
			if _, err := accounts.Create(ctx, model.LinkedAccount{
				UserID:            userID,
				Provider:          model.ProviderNeynar,
				ProviderAccountID: c.FID,
				Secret:            c.SignerUUID,
			}); err != nil {
				return err
			}
		default:
			return err
		}
		profile.UserID = userID
		return s.repos.Profiles(tx).SyncIdentity(ctx, profile)
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("neynar sign-in", "user_id", userID, "fid", c.FID)
	return userID, nil
}
