package credentials

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewCredential builds the record written on first login.
func NewCredential(profile Profile, accessToken string, authenticatedAt time.Time) Credential {
	return Credential{
		ID:                  uuid.NewString(),
		PlatformID:          profile.PlatformID,
		Username:            profile.Username,
		DisplayName:         profile.DisplayName,
		AccessToken:         accessToken,
		ProfileImageURL:     profile.ProfileImageURL,
		CreatedAt:           authenticatedAt,
		LastAuthenticatedAt: authenticatedAt,
	}
}

// ApplyRefresh merges a live profile into an existing record.
// Empty username and display name keep the stored values.
func ApplyRefresh(existing Credential, profile Profile, refreshedAt time.Time) Credential {
	if strings.TrimSpace(profile.Username) != "" {
		existing.Username = profile.Username
	}
	if strings.TrimSpace(profile.DisplayName) != "" {
		existing.DisplayName = profile.DisplayName
	}
	existing.ProfileImageURL = profile.ProfileImageURL
	existing.LastAuthenticatedAt = refreshedAt
	return existing
}

func validateUpsert(profile Profile, accessToken string) error {
	if strings.TrimSpace(profile.PlatformID) == "" {
		return ErrEmptyPlatformID
	}
	if strings.TrimSpace(accessToken) == "" {
		return ErrEmptyAccessToken
	}
	return nil
}
