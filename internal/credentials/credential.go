package credentials

import (
	"context"
	"time"
)

// Credential links an Instagram business account to its current long-lived token and profile snapshot.
type Credential struct {
	ID                  string
	PlatformID          string
	Username            string
	DisplayName         string
	AccessToken         string
	ProfileImageURL     string
	CreatedAt           time.Time
	LastAuthenticatedAt time.Time
}

// Profile is the mutable snapshot written on every login or profile refresh.
type Profile struct {
	PlatformID      string
	Username        string
	DisplayName     string
	ProfileImageURL string
}

// Store persists one Credential per platform identity.
type Store interface {
	// Upsert creates the Credential for profile.PlatformID or updates it in place,
	// overwriting the access token and profile fields and advancing LastAuthenticatedAt.
	Upsert(ctx context.Context, profile Profile, accessToken string, authenticatedAt time.Time) (Credential, error)
	// FindByAccessToken resolves a bearer token by exact match.
	FindByAccessToken(ctx context.Context, accessToken string) (Credential, error)
	// RefreshProfile updates the profile fields and LastAuthenticatedAt of an existing Credential.
	RefreshProfile(ctx context.Context, platformID string, profile Profile, refreshedAt time.Time) (Credential, error)
}
