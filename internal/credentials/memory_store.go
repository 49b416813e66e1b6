package credentials

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store intended for tests and dev.
type MemoryStore struct {
	mutex      sync.Mutex
	byPlatform map[string]*Credential
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byPlatform: make(map[string]*Credential)}
}

// Upsert creates or updates the credential keyed by profile.PlatformID.
func (store *MemoryStore) Upsert(ctx context.Context, profile Profile, accessToken string, authenticatedAt time.Time) (Credential, error) {
	if err := validateUpsert(profile, accessToken); err != nil {
		return Credential{}, fmt.Errorf("credential_store.upsert.memory: %w", err)
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, ok := store.byPlatform[profile.PlatformID]
	if !ok {
		created := NewCredential(profile, accessToken, authenticatedAt)
		store.byPlatform[profile.PlatformID] = &created
		return created, nil
	}
	record.AccessToken = accessToken
	record.Username = profile.Username
	record.DisplayName = profile.DisplayName
	record.ProfileImageURL = profile.ProfileImageURL
	record.LastAuthenticatedAt = authenticatedAt
	return *record, nil
}

// FindByAccessToken returns the credential whose token matches exactly.
func (store *MemoryStore) FindByAccessToken(ctx context.Context, accessToken string) (Credential, error) {
	if strings.TrimSpace(accessToken) == "" {
		return Credential{}, fmt.Errorf("credential_store.find.memory: %w", ErrEmptyAccessToken)
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()

	for _, record := range store.byPlatform {
		if record.AccessToken == accessToken {
			return *record, nil
		}
	}
	return Credential{}, fmt.Errorf("credential_store.find.memory: %w", ErrCredentialNotFound)
}

// RefreshProfile merges a live profile into the stored credential.
func (store *MemoryStore) RefreshProfile(ctx context.Context, platformID string, profile Profile, refreshedAt time.Time) (Credential, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, ok := store.byPlatform[platformID]
	if !ok {
		return Credential{}, fmt.Errorf("credential_store.refresh.memory: %w", ErrCredentialNotFound)
	}
	*record = ApplyRefresh(*record, profile, refreshedAt)
	return *record, nil
}

// Len reports the number of stored credentials.
func (store *MemoryStore) Len() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return len(store.byPlatform)
}
