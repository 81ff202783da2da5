// Package service holds the cast scheduling use cases: the scheduled cast
// store and its state machine, the publisher run by fired jobs, the
// Neynar identity bridge and the profile store.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/castscheduler/internal/neynar"
)

// JobScheduler arranges a deferred publish of a cast and cancels it.
// Cancel of an unknown or already fired job is a no-op.
type JobScheduler interface {
	Schedule(ctx context.Context, delay time.Duration, castID uint64) (string, error)
	Cancel(ctx context.Context, jobID string) error
	Exists(ctx context.Context, jobID string) (bool, error)
}

// ImageStore resolves a storage id to a public URL, "" when nothing was
// uploaded under it.
type ImageStore interface {
	PublicURL(ctx context.Context, storageID string) (string, error)
}

// CastPoster submits a cast to Farcaster.
type CastPoster interface {
	PublishCast(ctx context.Context, cast neynar.CastRequest) (neynar.CastResult, error)
}

// SignerVerifier looks up a Neynar signer.
type SignerVerifier interface {
	LookupSigner(ctx context.Context, signerUUID string) (neynar.Signer, error)
}
