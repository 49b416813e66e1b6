// Package credentialstest holds the behavioural contract every credentials.Store must satisfy.
package credentialstest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tyemirov/instagate/internal/credentials"
)

// ExerciseStore runs the shared Store contract against an empty store.
// It writes the platform ids "biz1" and "biz2" and expects neither to exist beforehand.
func ExerciseStore(t *testing.T, store credentials.Store) {
	t.Helper()
	ctx := context.Background()
	firstLogin := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	secondLogin := firstLogin.Add(2 * time.Hour)

	created, createErr := store.Upsert(ctx, credentials.Profile{
		PlatformID:      "biz1",
		Username:        "alice",
		DisplayName:     "Alice",
		ProfileImageURL: "https://cdn.example/alice.jpg",
	}, "long1", firstLogin)
	if createErr != nil {
		t.Fatalf("first upsert error: %v", createErr)
	}
	if created.ID == "" {
		t.Fatalf("expected generated credential id")
	}
	if created.AccessToken != "long1" || created.Username != "alice" {
		t.Fatalf("unexpected created credential: %+v", created)
	}
	if !created.CreatedAt.Equal(firstLogin) || !created.LastAuthenticatedAt.Equal(firstLogin) {
		t.Fatalf("expected timestamps at first login, got %+v", created)
	}

	updated, updateErr := store.Upsert(ctx, credentials.Profile{
		PlatformID:  "biz1",
		Username:    "alice_renamed",
		DisplayName: "Alice R",
	}, "long2", secondLogin)
	if updateErr != nil {
		t.Fatalf("second upsert error: %v", updateErr)
	}
	if updated.ID != created.ID {
		t.Fatalf("expected id %s to survive upsert, got %s", created.ID, updated.ID)
	}
	if !updated.CreatedAt.Equal(firstLogin) {
		t.Fatalf("expected createdAt unchanged, got %v", updated.CreatedAt)
	}
	if !updated.LastAuthenticatedAt.Equal(secondLogin) {
		t.Fatalf("expected lastAuthenticatedAt advanced, got %v", updated.LastAuthenticatedAt)
	}
	if updated.AccessToken != "long2" || updated.Username != "alice_renamed" || updated.ProfileImageURL != "" {
		t.Fatalf("unexpected updated credential: %+v", updated)
	}

	if _, err := store.FindByAccessToken(ctx, "long1"); !errors.Is(err, credentials.ErrCredentialNotFound) {
		t.Fatalf("expected superseded token to be unknown, got %v", err)
	}
	found, findErr := store.FindByAccessToken(ctx, "long2")
	if findErr != nil {
		t.Fatalf("find error: %v", findErr)
	}
	if found.PlatformID != "biz1" {
		t.Fatalf("expected biz1, got %s", found.PlatformID)
	}
	if _, err := store.FindByAccessToken(ctx, "  "); !errors.Is(err, credentials.ErrEmptyAccessToken) {
		t.Fatalf("expected credentials.ErrEmptyAccessToken, got %v", err)
	}

	refreshedAt := secondLogin.Add(time.Hour)
	refreshed, refreshErr := store.RefreshProfile(ctx, "biz1", credentials.Profile{
		PlatformID:      "biz1",
		Username:        "alice_live",
		ProfileImageURL: "https://cdn.example/new.jpg",
	}, refreshedAt)
	if refreshErr != nil {
		t.Fatalf("refresh error: %v", refreshErr)
	}
	if refreshed.Username != "alice_live" || refreshed.DisplayName != "Alice R" {
		t.Fatalf("unexpected refreshed names: %+v", refreshed)
	}
	if refreshed.AccessToken != "long2" || !refreshed.LastAuthenticatedAt.Equal(refreshedAt) {
		t.Fatalf("unexpected refreshed credential: %+v", refreshed)
	}
	reloaded, reloadErr := store.FindByAccessToken(ctx, "long2")
	if reloadErr != nil {
		t.Fatalf("reload error: %v", reloadErr)
	}
	if reloaded.ProfileImageURL != "https://cdn.example/new.jpg" || !reloaded.CreatedAt.Equal(firstLogin) {
		t.Fatalf("refresh not persisted: %+v", reloaded)
	}

	if _, err := store.RefreshProfile(ctx, "missing", credentials.Profile{}, refreshedAt); !errors.Is(err, credentials.ErrCredentialNotFound) {
		t.Fatalf("expected credentials.ErrCredentialNotFound for unknown platform id, got %v", err)
	}
	if _, err := store.Upsert(ctx, credentials.Profile{PlatformID: ""}, "token", refreshedAt); !errors.Is(err, credentials.ErrEmptyPlatformID) {
		t.Fatalf("expected credentials.ErrEmptyPlatformID, got %v", err)
	}
	if _, err := store.Upsert(ctx, credentials.Profile{PlatformID: "biz2"}, "", refreshedAt); !errors.Is(err, credentials.ErrEmptyAccessToken) {
		t.Fatalf("expected credentials.ErrEmptyAccessToken, got %v", err)
	}
}
